package mapping

import (
	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a role mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		m, err := client.GetMapping(args[0])
		if err != nil {
			return err
		}
		return printMapping(cmd, m)
	},
}
