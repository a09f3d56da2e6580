// Package config implements the configuration file subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration file management",
	Long: `Manage the rolesync configuration file.

Subcommands:
  init      Write a default configuration with a fresh API secret
  validate  Validate the configuration file
  show      Display the effective configuration`,
}

func init() {
	Cmd.AddCommand(initCmd)
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(showCmd)
}

// configPath reads the root --config flag.
func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}
