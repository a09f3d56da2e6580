package mapping

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a role mapping",
	Long: `Change one or more fields of an existing mapping. Only the flags given
are changed.

Examples:
  rolesync mapping update lspd-officer --target-role 444
  rolesync mapping update lspd-officer --description "LSPD sworn officer"`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	f := updateCmd.Flags()
	f.String("source-community", "", "New source community id")
	f.String("source-role", "", "New source role id")
	f.String("target-community", "", "New target community id")
	f.String("target-role", "", "New target role id")
	f.String("description", "", "New description")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	upd, err := buildUpdate(cmd)
	if err != nil {
		return err
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	m, err := client.UpdateMapping(args[0], upd)
	if err != nil {
		return fmt.Errorf("failed to update mapping: %w", err)
	}
	return printMapping(cmd, m)
}

// buildUpdate collects the changed flags into a partial update.
func buildUpdate(cmd *cobra.Command) (*models.MappingUpdate, error) {
	upd := &models.MappingUpdate{}
	changed := false

	ids := []struct {
		flag string
		dst  **uint64
	}{
		{"source-community", &upd.SourceCommunityID},
		{"source-role", &upd.SourceRoleID},
		{"target-community", &upd.TargetCommunityID},
		{"target-role", &upd.TargetRoleID},
	}
	for _, f := range ids {
		if !cmd.Flags().Changed(f.flag) {
			continue
		}
		raw, _ := cmd.Flags().GetString(f.flag)
		id, err := cmdutil.ParseSnowflake(f.flag, raw)
		if err != nil {
			return nil, err
		}
		*f.dst = &id
		changed = true
	}

	if cmd.Flags().Changed("description") {
		desc, _ := cmd.Flags().GetString("description")
		upd.Description = &desc
		changed = true
	}

	if !changed {
		return nil, errors.New("nothing to update; pass at least one field flag")
	}
	return upd, nil
}
