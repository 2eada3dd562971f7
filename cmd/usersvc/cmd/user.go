/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/usersvc/pkg/client"
	"github.com/ssargent/usersvc/pkg/model"
)

// userCmd represents the user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users on a running server",
	Long: `Send list, get, create, update and delete requests to a running
usersvc server. The address defaults to the configured bind and port.

Examples:
  usersvc user list
  usersvc user create "Ann" ann@example.com
  usersvc user update 1 "Ann B" annb@example.com --addr 10.0.0.5:8080`,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		users, err := c.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, u := range users {
			if err := printUser(cmd, u); err != nil {
				return err
			}
		}
		return nil
	},
}

var userGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		u, err := c.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printUser(cmd, u)
	},
}

var userCreateCmd = &cobra.Command{
	Use:   "create <name> <email>",
	Short: "Create a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := c.Create(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "User created")
		return nil
	},
}

var userUpdateCmd = &cobra.Command{
	Use:   "update <id> <name> <email>",
	Short: "Update a user",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := c.Update(cmd.Context(), id, args[1], args[2]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "User updated")
		return nil
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if err := c.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "User deleted")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.PersistentFlags().String("addr", "", "Server address (default: configured bind:port)")

	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userGetCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userUpdateCmd)
	userCmd.AddCommand(userDeleteCmd)
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		addr = cfg.Addr()
	}
	return client.New(addr), nil
}

func parseUserID(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, errors.Errorf("invalid user id %q", s)
	}
	return int32(n), nil
}

func printUser(cmd *cobra.Command, u model.User) error {
	line, err := model.EncodeUser(u)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), line)
	return err
}
