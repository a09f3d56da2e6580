package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
	"github.com/ambnuf14-max/saes-discord-bot/internal/cli/output"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/trigger"
)

var queueForce bool

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show members waiting for a debounced reconciliation",
	RunE:  runQueue,
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every pending reconciliation",
	RunE:  runQueueClear,
}

func init() {
	queueClearCmd.Flags().BoolVarP(&queueForce, "force", "f", false, "Skip confirmation")
	queueCmd.AddCommand(queueClearCmd)
}

type pendingList []trigger.PendingEntry

func (l pendingList) Headers() []string { return []string{"Subject", "Last change", "Waiting"} }

func (l pendingList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, e := range l {
		rows = append(rows, []string{
			fmt.Sprint(e.Subject),
			output.Time(e.ChangedAt),
			time.Since(e.ChangedAt).Round(time.Second).String(),
		})
	}
	return rows
}

func runQueue(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	p, err := cmdutil.Printer()
	if err != nil {
		return err
	}
	q, err := client.Queue()
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(q)
	}
	return p.PrintOrEmpty(pendingList(q.Entries), q.Pending == 0, "Queue is empty.")
}

func runQueueClear(cmd *cobra.Command, args []string) error {
	ok, err := cmdutil.Confirm("Drop every pending reconciliation?", queueForce)
	if err != nil || !ok {
		return err
	}
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	p, err := cmdutil.Printer()
	if err != nil {
		return err
	}
	n, err := client.ClearQueue()
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(map[string]int{"cleared": n})
	}
	p.Success(fmt.Sprintf("Cleared %d pending reconciliation(s)", n))
	return nil
}
