package mapping

import (
	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
)

var listSource string

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List role mappings",
	Long: `List role mappings, optionally only those reading from one source community.

Examples:
  rolesync mapping list
  rolesync mapping list --source 111111111111111111 -o json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listSource, "source", "", "Only mappings from this source community")
}

func runList(cmd *cobra.Command, args []string) error {
	var source uint64
	if listSource != "" {
		id, err := cmdutil.ParseSnowflake("source community", listSource)
		if err != nil {
			return err
		}
		source = id
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	mappings, err := client.ListMappings(source)
	if err != nil {
		return err
	}

	p, err := cmdutil.Printer()
	if err != nil {
		return err
	}
	return p.PrintOrEmpty(mappingList(mappings), len(mappings) == 0, "No mappings configured.")
}
