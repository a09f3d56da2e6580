package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
	"github.com/ambnuf14-max/saes-discord-bot/internal/cli/output"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

var (
	sessionsLimit       int
	sessionsAssignments bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [subject-id]",
	Short: "Show recent reconciliation sessions",
	Long: `List recent reconciliation sessions, newest first, for one member or for
everyone.

Examples:
  rolesync sessions
  rolesync sessions 123456789012345678 --limit 5
  rolesync sessions 123456789012345678 --assignments`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Maximum number of sessions")
	sessionsCmd.Flags().BoolVar(&sessionsAssignments, "assignments", false, "Show which source roles justify the member's target roles instead")
}

type sessionList []models.SyncSession

func (l sessionList) Headers() []string {
	return []string{"Started", "Subject", "Trigger", "State", "OK", "Added", "Removed", "Failed", "Duration"}
}

func (l sessionList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, s := range l {
		trig := s.TriggerType
		if s.DryRun {
			trig += " (dry)"
		}
		rows = append(rows, []string{
			output.Time(s.StartedAt),
			fmt.Sprint(s.SubjectID),
			trig,
			s.State,
			output.YesNo(s.Success),
			output.Snowflakes(s.RolesAdded),
			output.Snowflakes(s.RolesRemoved),
			output.Snowflakes(s.RolesFailed),
			fmt.Sprintf("%dms", s.DurationMs),
		})
	}
	return rows
}

type assignmentList []models.RoleAssignment

func (l assignmentList) Headers() []string {
	return []string{"Target role", "Source community", "Source role", "Assigned"}
}

func (l assignmentList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, a := range l {
		rows = append(rows, []string{
			fmt.Sprint(a.TargetRoleID),
			fmt.Sprint(a.SourceCommunityID),
			fmt.Sprint(a.SourceRoleID),
			output.Time(a.AssignedAt),
		})
	}
	return rows
}

func runSessions(cmd *cobra.Command, args []string) error {
	var subject uint64
	if len(args) == 1 {
		var err error
		if subject, err = cmdutil.ParseSnowflake("subject", args[0]); err != nil {
			return err
		}
	}
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	p, err := cmdutil.Printer()
	if err != nil {
		return err
	}

	if sessionsAssignments {
		if subject == 0 {
			return fmt.Errorf("--assignments needs a subject id")
		}
		assignments, err := client.Assignments(subject)
		if err != nil {
			return err
		}
		return p.PrintOrEmpty(assignmentList(assignments), len(assignments) == 0, "No mapped roles assigned.")
	}

	sessions, err := client.Sessions(subject, sessionsLimit)
	if err != nil {
		return err
	}
	return p.PrintOrEmpty(sessionList(sessions), len(sessions) == 0, "No sessions recorded.")
}
