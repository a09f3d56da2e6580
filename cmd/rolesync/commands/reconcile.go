package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
	"github.com/ambnuf14-max/saes-discord-bot/internal/cli/output"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/apiclient"
)

var reconcileDryRun bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <subject-id>",
	Short: "Reconcile one member now",
	Long: `Compute the roles a member should hold on the target community from their
source community roles, and apply the difference.

Examples:
  # Preview the changes without applying them
  rolesync reconcile 123456789012345678 --dry-run

  # Apply
  rolesync reconcile 123456789012345678`,
	Args: cobra.ExactArgs(1),
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "Show the planned changes without applying them")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	subject, err := cmdutil.ParseSnowflake("subject", args[0])
	if err != nil {
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

	res, err := client.Reconcile(subject, reconcileDryRun)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return fmt.Errorf("member %d is not on the target community", subject)
		}
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(res)
	}

	if err := output.PrintKeyValues(cmd.OutOrStdout(), resultPairs(res)); err != nil {
		return err
	}
	switch {
	case !res.Success:
		p.Warning("Reconciliation failed")
	case res.DryRun:
		p.Info("Dry run: no roles were changed")
	case res.TotalChanges() == 0:
		p.Success("Already in sync")
	default:
		p.Success(fmt.Sprintf("Applied %d change(s)", res.TotalChanges()))
	}
	return nil
}

func resultPairs(res *apiclient.SyncResult) [][2]string {
	added, removed := "Added", "Removed"
	if res.DryRun {
		added, removed = "Would add", "Would remove"
	}
	pairs := [][2]string{
		{"Subject", fmt.Sprint(res.SubjectID)},
		{"Session", output.EmptyOr(res.SessionID, "-")},
		{"State", string(res.State)},
		{added, output.Snowflakes(res.RolesAdded)},
		{removed, output.Snowflakes(res.RolesRemoved)},
		{"Failed", output.Snowflakes(res.RolesFailed)},
		{"Sources", output.Snowflakes(res.SourceCommunities)},
		{"Duration", res.Duration.String()},
	}
	if res.ErrorKind != "" {
		pairs = append(pairs, [2]string{"Error kind", res.ErrorKind})
	}
	if len(res.Errors) > 0 {
		pairs = append(pairs, [2]string{"Errors", strings.Join(res.Errors, "; ")})
	}
	return pairs
}
