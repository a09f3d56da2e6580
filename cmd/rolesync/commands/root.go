// Package commands implements the rolesync command line: the bot itself
// (start) and the management commands that talk to its REST API.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
	configcmd "github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/commands/config"
	mappingcmd "github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/commands/mapping"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "rolesync",
	Short: "rolesync - cross-community role synchronization bot",
	Long: `rolesync mirrors roles that members hold in source communities onto a
target community, according to a table of role mappings.

"rolesync start" runs the bot. The other commands manage a running bot
through its REST API; point them at it with --server and --token, the
ROLESYNC_SERVER and ROLESYNC_TOKEN variables, or "rolesync login".

Use "rolesync [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdutil.Flags.ConfigFile, _ = cmd.Flags().GetString("config")
		cmdutil.Flags.ServerURL, _ = cmd.Flags().GetString("server")
		cmdutil.Flags.Token, _ = cmd.Flags().GetString("token")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: $XDG_CONFIG_HOME/rolesync/config.yaml)")
	rootCmd.PersistentFlags().String("server", "", "API server URL (overrides stored context)")
	rootCmd.PersistentFlags().String("token", "", "API bearer token (overrides stored context)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(autoSyncCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(configcmd.Cmd)
	rootCmd.AddCommand(mappingcmd.Cmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
