package mapping

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
)

var enableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a role mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args[0], true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a role mapping without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args[0], false)
	},
}

func setEnabled(cmd *cobra.Command, id string, enabled bool) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	m, err := client.SetMappingEnabled(id, enabled)
	if err != nil {
		return err
	}

	p, err := cmdutil.Printer()
	if err != nil {
		return err
	}
	state := "disabled"
	if m.Enabled {
		state = "enabled"
	}
	p.Success(fmt.Sprintf("Mapping %s %s", m.ID, state))
	return printMapping(cmd, m)
}
