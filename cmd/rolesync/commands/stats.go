package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
	"github.com/ambnuf14-max/saes-discord-bot/internal/cli/output"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

var (
	statsDays  int
	statsDaily bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show reconciliation statistics",
	Long: `Show reconciliation counters for the last N days (UTC).

Examples:
  rolesync stats
  rolesync stats --days 30 --daily`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 7, "Number of days, including today")
	statsCmd.Flags().BoolVar(&statsDaily, "daily", false, "One row per day")
}

type dailyList []models.DailyStatistic

func (l dailyList) Headers() []string {
	return []string{"Date", "Total", "OK", "Failed", "Auto", "Manual", "Sweep", "API", "Added", "Removed"}
}

func (l dailyList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, d := range l {
		rows = append(rows, []string{
			d.Date,
			fmt.Sprint(d.TotalSyncs),
			fmt.Sprint(d.SuccessfulSyncs),
			fmt.Sprint(d.FailedSyncs),
			fmt.Sprint(d.AutoSyncs),
			fmt.Sprint(d.ManualSyncs),
			fmt.Sprint(d.SweepSyncs),
			fmt.Sprint(d.APISyncs),
			fmt.Sprint(d.RolesAdded),
			fmt.Sprint(d.RolesRemoved),
		})
	}
	return rows
}

func summaryPairs(s *models.StatsSummary) [][2]string {
	return [][2]string{
		{"Period", s.From + " .. " + s.To},
		{"Reconciliations", fmt.Sprint(s.TotalSyncs)},
		{"Successful", fmt.Sprint(s.SuccessfulSyncs)},
		{"Failed", fmt.Sprint(s.FailedSyncs)},
		{"Success rate", output.Percent(int(s.SuccessfulSyncs), int(s.TotalSyncs))},
		{"By trigger", fmt.Sprintf("auto %d, manual %d, sweep %d, api %d", s.AutoSyncs, s.ManualSyncs, s.SweepSyncs, s.APISyncs)},
		{"Roles added", fmt.Sprint(s.RolesAdded)},
		{"Roles removed", fmt.Sprint(s.RolesRemoved)},
		{"Members", fmt.Sprint(s.UniqueSubjects)},
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	p, err := cmdutil.Printer()
	if err != nil {
		return err
	}

	if statsDaily {
		days, err := client.DailyStats(statsDays)
		if err != nil {
			return err
		}
		return p.PrintOrEmpty(dailyList(days), len(days) == 0, "No statistics recorded.")
	}

	summary, err := client.StatsSummary(statsDays)
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(summary)
	}
	return output.PrintKeyValues(cmd.OutOrStdout(), summaryPairs(summary))
}
