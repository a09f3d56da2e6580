// Package mapping implements the role mapping management commands.
package mapping

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
	"github.com/ambnuf14-max/saes-discord-bot/internal/cli/output"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/apiclient"
)

// Cmd is the mapping subcommand.
var Cmd = &cobra.Command{
	Use:     "mapping",
	Aliases: []string{"mappings", "map"},
	Short:   "Manage role mappings",
	Long: `Manage the mappings from source community roles to target community roles.

Changes take effect immediately on the running bot; members are only
re-evaluated on their next trigger or sweep.

Examples:
  rolesync mapping list
  rolesync mapping add --source-community 111 --source-role 222 --target-role 333
  rolesync mapping disable 5f0c...
  rolesync mapping import mappings.json`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(updateCmd)
	Cmd.AddCommand(removeCmd)
	Cmd.AddCommand(enableCmd)
	Cmd.AddCommand(disableCmd)
	Cmd.AddCommand(importCmd)
	Cmd.AddCommand(statsCmd)
}

// mappingList renders mappings as a table.
type mappingList []apiclient.Mapping

func (l mappingList) Headers() []string {
	return []string{"ID", "Source community", "Source role", "Target role", "Enabled", "Description"}
}

func (l mappingList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, m := range l {
		rows = append(rows, []string{
			m.ID,
			fmt.Sprint(m.SourceCommunityID),
			fmt.Sprint(m.SourceRoleID),
			fmt.Sprint(m.TargetRoleID),
			output.YesNo(m.Enabled),
			output.EmptyOr(m.Description, "-"),
		})
	}
	return rows
}

func mappingPairs(m *apiclient.Mapping) [][2]string {
	return [][2]string{
		{"ID", m.ID},
		{"Source community", fmt.Sprint(m.SourceCommunityID)},
		{"Source role", fmt.Sprint(m.SourceRoleID)},
		{"Target community", fmt.Sprint(m.TargetCommunityID)},
		{"Target role", fmt.Sprint(m.TargetRoleID)},
		{"Enabled", output.YesNo(m.Enabled)},
		{"Description", output.EmptyOr(m.Description, "-")},
		{"Created", output.Time(m.CreatedAt)},
		{"Updated", output.Time(m.UpdatedAt)},
	}
}

// printMapping prints a single mapping in the selected format.
func printMapping(cmd *cobra.Command, m *apiclient.Mapping) error {
	p, err := cmdutil.Printer()
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable {
		return output.PrintKeyValues(cmd.OutOrStdout(), mappingPairs(m))
	}
	return p.Print(m)
}
