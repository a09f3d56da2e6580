package mapping

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
	"github.com/ambnuf14-max/saes-discord-bot/internal/cli/prompt"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/apiclient"
)

var (
	addID              string
	addSourceCommunity string
	addSourceRole      string
	addTargetCommunity string
	addTargetRole      string
	addDescription     string
	addDisabled        bool
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a role mapping",
	Long: `Create a mapping from a source community role to a target community role.

Missing ids are prompted for interactively. The target community defaults
to the bot's configured target community.

Examples:
  rolesync mapping add --source-community 111 --source-role 222 --target-role 333
  rolesync mapping add --id lspd-officer --source-community 111 --source-role 222 \
      --target-role 333 --description "LSPD officer"`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addID, "id", "", "Mapping id (generated when empty)")
	addCmd.Flags().StringVar(&addSourceCommunity, "source-community", "", "Source community id")
	addCmd.Flags().StringVar(&addSourceRole, "source-role", "", "Source role id")
	addCmd.Flags().StringVar(&addTargetCommunity, "target-community", "", "Target community id (default: the bot's target)")
	addCmd.Flags().StringVar(&addTargetRole, "target-role", "", "Target role id")
	addCmd.Flags().StringVar(&addDescription, "description", "", "Free-form description")
	addCmd.Flags().BoolVar(&addDisabled, "disabled", false, "Create the mapping disabled")
}

func runAdd(cmd *cobra.Command, args []string) error {
	req := &apiclient.CreateMappingRequest{
		ID:          addID,
		Description: addDescription,
	}

	var err error
	if req.SourceCommunityID, err = snowflakeOrPrompt("source community", addSourceCommunity, "Source community ID"); err != nil {
		return cmdutil.HandleAbort(err)
	}
	if req.SourceRoleID, err = snowflakeOrPrompt("source role", addSourceRole, "Source role ID"); err != nil {
		return cmdutil.HandleAbort(err)
	}
	if req.TargetRoleID, err = snowflakeOrPrompt("target role", addTargetRole, "Target role ID"); err != nil {
		return cmdutil.HandleAbort(err)
	}
	if addTargetCommunity != "" {
		if req.TargetCommunityID, err = cmdutil.ParseSnowflake("target community", addTargetCommunity); err != nil {
			return err
		}
	}
	if addDisabled {
		enabled := false
		req.Enabled = &enabled
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	m, err := client.CreateMapping(req)
	if err != nil {
		return fmt.Errorf("failed to create mapping: %w", err)
	}

	p, err := cmdutil.Printer()
	if err != nil {
		return err
	}
	p.Success(fmt.Sprintf("Mapping %s created", m.ID))
	return printMapping(cmd, m)
}

// snowflakeOrPrompt parses value, or asks for it when it is empty.
func snowflakeOrPrompt(name, value, label string) (uint64, error) {
	if value != "" {
		return cmdutil.ParseSnowflake(name, value)
	}
	return prompt.Snowflake(label)
}
