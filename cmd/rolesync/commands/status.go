package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
	"github.com/ambnuf14-max/saes-discord-bot/internal/cli/output"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/apiclient"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bot status",
	Long: `Query the health endpoints of a running bot. No token is needed.

Examples:
  rolesync status --server http://localhost:8080
  rolesync status -o json`,
	RunE: runStatus,
}

// BotStatus is the combined liveness and readiness view.
type BotStatus struct {
	Server          string `json:"server"`
	Status          string `json:"status"`
	Ready           bool   `json:"ready"`
	StartedAt       string `json:"started_at,omitempty"`
	Uptime          string `json:"uptime,omitempty"`
	DBLatency       string `json:"db_latency,omitempty"`
	TargetCommunity uint64 `json:"target_community,omitempty,string"`
	Mappings        int    `json:"mappings"`
	AutoSync        bool   `json:"auto_sync"`
	SweepRunning    bool   `json:"sweep_running"`
	Error           string `json:"error,omitempty"`
}

func (s BotStatus) pairs() [][2]string {
	pairs := [][2]string{
		{"Server", s.Server},
		{"Status", s.Status},
		{"Ready", output.YesNo(s.Ready)},
	}
	if s.Uptime != "" {
		pairs = append(pairs, [2]string{"Uptime", output.Uptime(s.Uptime)})
	}
	if s.Ready {
		pairs = append(pairs,
			[2]string{"Target community", fmt.Sprint(s.TargetCommunity)},
			[2]string{"Enabled mappings", fmt.Sprint(s.Mappings)},
			[2]string{"Auto sync", output.YesNo(s.AutoSync)},
			[2]string{"Sweep running", output.YesNo(s.SweepRunning)},
		)
	}
	if s.Error != "" {
		pairs = append(pairs, [2]string{"Error", s.Error})
	}
	return pairs
}

func runStatus(cmd *cobra.Command, args []string) error {
	server, _, err := cmdutil.ResolveServer()
	if err != nil {
		return err
	}
	client := apiclient.New(server)

	status := BotStatus{Server: server, Status: "unreachable"}
	if h, err := client.Health(); err != nil {
		status.Error = err.Error()
	} else {
		status.Status = h.Status
		status.StartedAt = h.Data.StartedAt
		status.Uptime = h.Data.Uptime
		status.DBLatency = h.Data.DBLatency
		status.Error = h.Error
		if r, err := client.Readiness(); err == nil {
			status.Ready = r.Status == "healthy"
			status.TargetCommunity = r.Data.TargetCommunity
			status.Mappings = r.Data.Mappings
			status.AutoSync = r.Data.AutoSync
			status.SweepRunning = r.Data.SweepRunning
			if !status.Ready && status.Error == "" {
				status.Error = r.Error
			}
		}
	}

	p, err := cmdutil.Printer()
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(status)
	}
	return output.PrintKeyValues(cmd.OutOrStdout(), status.pairs())
}
