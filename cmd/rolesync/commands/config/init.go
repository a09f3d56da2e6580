package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file with default values and a randomly generated
API signing secret. Set platform.target_community_id and the bot token
before starting.

Examples:
  rolesync config init
  rolesync config init --config /etc/rolesync/config.yaml --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath(cmd)
		if path == "" {
			path = config.GetDefaultConfigPath()
		}
		if err := config.InitConfigToPath(path, initForce); err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", path)
		fmt.Println("\nNext steps:")
		fmt.Println("  1. Set platform.target_community_id")
		fmt.Println("  2. Export ROLESYNC_PLATFORM_TOKEN or set platform.token")
		fmt.Println("  3. rolesync start")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing file")
}
