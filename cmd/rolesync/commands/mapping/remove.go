package mapping

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
)

var removeForce bool

var removeCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm", "delete"},
	Short:   "Delete a role mapping",
	Long: `Delete a mapping. Target roles it granted are removed from members on
their next reconciliation unless another mapping still justifies them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := cmdutil.Confirm(fmt.Sprintf("Delete mapping %s", args[0]), removeForce)
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
		if err := client.DeleteMapping(args[0]); err != nil {
			return fmt.Errorf("failed to delete mapping: %w", err)
		}

		p, err := cmdutil.Printer()
		if err != nil {
			return err
		}
		p.Success(fmt.Sprintf("Mapping %s deleted", args[0]))
		return nil
	},
}

func init() {
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "Skip confirmation")
}
