package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
	"github.com/ambnuf14-max/saes-discord-bot/internal/cli/output"
)

var autoSyncCmd = &cobra.Command{
	Use:   "auto-sync [on|off]",
	Short: "Show or toggle automatic reconciliation",
	Long: `Without an argument, show whether role changes on source communities are
reconciled automatically. With "on" or "off", change it. The setting is
persisted and survives restarts.

Manual reconciliations and sweeps are not affected.`,
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE:      runAutoSync,
}

func runAutoSync(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	p, err := cmdutil.Printer()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		st, err := client.AutoSync()
		if err != nil {
			return err
		}
		if p.Format() != output.FormatTable {
			return p.Print(st)
		}
		return output.PrintKeyValues(cmd.OutOrStdout(), [][2]string{
			{"Auto sync", output.YesNo(st.Enabled)},
			{"Dropped changes", fmt.Sprint(st.Dropped)},
		})
	}

	st, err := client.SetAutoSync(args[0] == "on")
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(st)
	}
	if st.Enabled {
		p.Success("Auto sync enabled")
	} else {
		p.Success("Auto sync disabled")
	}
	return nil
}
