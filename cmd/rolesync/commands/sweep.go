package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
	"github.com/ambnuf14-max/saes-discord-bot/internal/cli/output"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/apiclient"
)

var (
	sweepYes    bool
	sweepStatus bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reconcile every member of the target community",
	Long: `Start a full sweep on the bot. The sweep runs in the background; progress
is logged by the bot and the outcome appears in "rolesync stats".

Examples:
  rolesync sweep --status
  rolesync sweep --yes`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().BoolVarP(&sweepYes, "yes", "y", false, "Start without confirmation")
	sweepCmd.Flags().BoolVar(&sweepStatus, "status", false, "Only show whether a sweep is running")
}

func runSweep(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	p, err := cmdutil.Printer()
	if err != nil {
		return err
	}

	if sweepStatus {
		st, err := client.SweepStatus()
		if err != nil {
			return err
		}
		if p.Format() != output.FormatTable {
			return p.Print(st)
		}
		return output.PrintKeyValues(cmd.OutOrStdout(), [][2]string{
			{"Enabled", output.YesNo(st.Enabled)},
			{"Running", output.YesNo(st.Running)},
		})
	}

	ok, err := cmdutil.Confirm("Reconcile every member of the target community?", sweepYes)
	if err != nil || !ok {
		return err
	}
	st, err := client.StartSweep()
	if apiclient.IsUnavailable(err) {
		return fmt.Errorf("bot is shutting down, start the sweep after it restarts: %w", err)
	}
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(st)
	}
	p.Success("Sweep started")
	return nil
}
