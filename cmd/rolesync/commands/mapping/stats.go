package mapping

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
	"github.com/ambnuf14-max/saes-discord-bot/internal/cli/output"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/mapping"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show mapping table statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		stats, err := client.MappingStats()
		if err != nil {
			return err
		}

		p, err := cmdutil.Printer()
		if err != nil {
			return err
		}
		if p.Format() != output.FormatTable {
			return p.Print(stats)
		}
		return output.PrintKeyValues(cmd.OutOrStdout(), statsPairs(stats))
	},
}

func statsPairs(s *mapping.Stats) [][2]string {
	return [][2]string{
		{"Total", fmt.Sprint(s.Total)},
		{"Enabled", fmt.Sprint(s.Enabled)},
		{"Disabled", fmt.Sprint(s.Disabled)},
		{"Source communities", fmt.Sprint(s.SourceCommunities)},
		{"Target roles", fmt.Sprint(s.TargetRoles)},
		{"Overridden", fmt.Sprint(s.Overridden)},
	}
}
