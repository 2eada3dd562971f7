/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/usersvc/pkg/config"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the users table if it does not exist",
	Long: `Create the users table in the database named by DATABASE_URL.
The statement is idempotent; serve runs it on every start as well.

Example:
  DATABASE_URL=sqlite://./users.db usersvc migrate`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return config.ErrMissingDatabaseURL
		}
		if container == nil {
			return errors.New("dependency container not initialized")
		}

		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		cmd.Println("users table ready")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
