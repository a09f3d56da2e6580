package mapping

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
	"github.com/ambnuf14-max/saes-discord-bot/internal/cli/output"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/mapping"
)

var importForce bool

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace all mappings with the content of a mapping file",
	Long: `Upload a JSON mapping file and replace the whole mapping table with it.
The file is parsed locally first so malformed entries are reported before
anything is sent.

Examples:
  rolesync mapping import mappings.json
  rolesync mapping import mappings.json --force`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVarP(&importForce, "force", "f", false, "Skip confirmation")
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	parsed, err := mapping.Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	ok, err := cmdutil.Confirm(fmt.Sprintf("Replace all mappings with %d from %s", len(parsed), args[0]), importForce)
	if err != nil {
		return cmdutil.HandleAbort(err)
	}
	if !ok {
		fmt.Println("Aborted.")
		return nil
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	res, err := client.ImportMappings(data)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	p, err := cmdutil.Printer()
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(res)
	}
	p.Success(fmt.Sprintf("Imported %d mappings", res.Imported))
	return output.PrintKeyValues(cmd.OutOrStdout(), statsPairs(&res.Stats))
}
