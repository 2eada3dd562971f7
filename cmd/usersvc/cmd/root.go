/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/usersvc/pkg/config"
	"github.com/ssargent/usersvc/pkg/di"
)

var container *di.Container

// SetContainer injects the dependency container used by the commands.
func SetContainer(c *di.Container) {
	container = c
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "usersvc",
	Short: "usersvc - user records over a minimal text protocol",
	Long: `usersvc stores user records (id, name, email) in a SQL database and
serves list, read, create, update and delete over a minimal
HTTP-shaped protocol on TCP, one request per connection.

The database is chosen by DATABASE_URL (postgres:// or sqlite://).`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: ~/.config/usersvc/config.yaml if present)")
}

// loadConfig resolves the configuration for cmd: defaults, then the config
// file, then the environment. It also returns the file it read, if any.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, _ := cmd.Flags().GetString("config")
	explicit := configPath != ""
	if !explicit {
		configPath = config.GetDefaultConfigPath()
	}

	var cfg *config.Config
	switch {
	case config.ConfigExists(configPath):
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, "", err
		}
		cfg = loaded
	case explicit:
		return nil, "", errors.Errorf("config file does not exist: %s", configPath)
	default:
		cfg = config.DefaultConfig()
		configPath = ""
	}

	if err := config.ApplyEnv(cfg); err != nil {
		return nil, "", err
	}
	return cfg, configPath, nil
}
