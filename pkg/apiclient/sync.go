package apiclient

import (
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/reconcile"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/trigger"
)

// SyncResult is the outcome of one reconciliation.
type SyncResult = reconcile.SyncResult

// SweepStatus reports whether sweeps are enabled and one is running.
type SweepStatus struct {
	Enabled bool `json:"enabled"`
	Running bool `json:"running"`
}

// Queue is the debounce queue content.
type Queue struct {
	Pending int                    `json:"pending"`
	Entries []trigger.PendingEntry `json:"entries"`
}

// AutoSync reports the auto-sync toggle.
type AutoSync struct {
	Enabled bool  `json:"enabled"`
	Dropped int64 `json:"dropped"`
}

// Reconcile reconciles one subject now. With dryRun the plan is returned
// without changing roles.
func (c *Client) Reconcile(subject uint64, dryRun bool) (*SyncResult, error) {
	path := resourcePath("/api/v1/subjects/%d/reconcile", subject)
	if dryRun {
		path += "?dry_run=true"
	}
	return createResource[SyncResult](c, path, nil)
}

// Sessions returns the latest sessions of a subject, or of every subject when
// subject is zero.
func (c *Client) Sessions(subject uint64, limit int) ([]models.SyncSession, error) {
	path := "/api/v1/sessions"
	if subject != 0 {
		path = resourcePath("/api/v1/subjects/%d/sessions", subject)
	}
	if limit > 0 {
		path += resourcePath("?limit=%d", limit)
	}
	return listResources[models.SyncSession](c, path)
}

// Assignments returns the role assignment provenance of a subject.
func (c *Client) Assignments(subject uint64) ([]models.RoleAssignment, error) {
	return listResources[models.RoleAssignment](c, resourcePath("/api/v1/subjects/%d/assignments", subject))
}

// SweepStatus returns the sweep status.
func (c *Client) SweepStatus() (*SweepStatus, error) {
	return getResource[SweepStatus](c, "/api/v1/sweep")
}

// StartSweep starts a full sweep on the server.
func (c *Client) StartSweep() (*SweepStatus, error) {
	return createResource[SweepStatus](c, "/api/v1/sweep", nil)
}

// Queue returns the debounce queue.
func (c *Client) Queue() (*Queue, error) {
	return getResource[Queue](c, "/api/v1/queue")
}

// ClearQueue drops every pending subject and returns how many were dropped.
func (c *Client) ClearQueue() (int, error) {
	var resp struct {
		Cleared int `json:"cleared"`
	}
	if err := c.delete("/api/v1/queue", &resp); err != nil {
		return 0, err
	}
	return resp.Cleared, nil
}

// AutoSync returns the auto-sync toggle.
func (c *Client) AutoSync() (*AutoSync, error) {
	return getResource[AutoSync](c, "/api/v1/settings/auto-sync")
}

// SetAutoSync turns automatic reconciliation on or off.
func (c *Client) SetAutoSync(enabled bool) (*AutoSync, error) {
	return updateResource[AutoSync](c, "/api/v1/settings/auto-sync", map[string]bool{"enabled": enabled})
}

// StatsSummary aggregates the last days days.
func (c *Client) StatsSummary(days int) (*models.StatsSummary, error) {
	return getResource[models.StatsSummary](c, resourcePath("/api/v1/stats?days=%d", days))
}

// DailyStats returns per-day counters for the last days days.
func (c *Client) DailyStats(days int) ([]models.DailyStatistic, error) {
	return listResources[models.DailyStatistic](c, resourcePath("/api/v1/stats/daily?days=%d", days))
}
