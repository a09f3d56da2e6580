// Package store provides the control plane persistence layer.
//
// It holds the role mapping table, the append-only reconciliation audit trail
// (sessions and log lines), per-subject sync state, role assignment provenance,
// daily statistics and runtime settings.
//
// Two backends are supported:
//   - SQLite (single-node, default)
//   - PostgreSQL
package store

import (
	"context"
	"time"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

// MappingStore is the durable role mapping table.
type MappingStore interface {
	// GetMapping returns a mapping by id.
	// Returns models.ErrMappingNotFound if it doesn't exist.
	GetMapping(ctx context.Context, id string) (*models.RoleMapping, error)

	// ListMappings returns all mappings, enabled or not, ordered by creation.
	ListMappings(ctx context.Context) ([]*models.RoleMapping, error)

	// CreateMapping inserts a mapping. An empty ID is replaced by a UUID.
	// Returns models.ErrDuplicateMapping if the id is taken.
	CreateMapping(ctx context.Context, m *models.RoleMapping) (string, error)

	// UpdateMapping overwrites an existing mapping.
	// Returns models.ErrMappingNotFound if it doesn't exist.
	UpdateMapping(ctx context.Context, m *models.RoleMapping) error

	// DeleteMapping removes a mapping.
	// Returns models.ErrMappingNotFound if it doesn't exist.
	DeleteMapping(ctx context.Context, id string) error

	// ReplaceMappings atomically swaps the whole table for the given set.
	ReplaceMappings(ctx context.Context, mappings []*models.RoleMapping) error
}

// SyncStore is the reconciliation audit trail.
type SyncStore interface {
	// RecordSync persists one reconciliation in a single transaction.
	RecordSync(ctx context.Context, rec *models.SyncRecord) error

	// FlushBatch persists many reconciliations in a single transaction.
	FlushBatch(ctx context.Context, recs []*models.SyncRecord) error

	// GetSession returns a session by id.
	// Returns models.ErrSessionNotFound if it doesn't exist.
	GetSession(ctx context.Context, id string) (*models.SyncSession, error)

	// ListSessions returns the most recent sessions, newest first.
	// A zero subject lists sessions for every subject.
	ListSessions(ctx context.Context, subject uint64, limit int) ([]*models.SyncSession, error)

	// ListSyncLogs returns the most recent audit lines for a subject, newest first.
	ListSyncLogs(ctx context.Context, subject uint64, limit int) ([]*models.SyncLog, error)

	// GetSyncState returns the aggregate state of a subject on a target community.
	// Returns models.ErrSyncStateNotFound if the subject was never reconciled.
	GetSyncState(ctx context.Context, subject, target uint64) (*models.SyncState, error)

	// ListAssignments returns the role assignment provenance of a subject.
	ListAssignments(ctx context.Context, subject uint64) ([]*models.RoleAssignment, error)
}

// StatsStore exposes the daily statistics counters.
type StatsStore interface {
	// ListDailyStats returns daily rows in [from, to], oldest first.
	ListDailyStats(ctx context.Context, from, to time.Time) ([]*models.DailyStatistic, error)

	// GetStatsSummary aggregates the last days days, today included.
	GetStatsSummary(ctx context.Context, days int) (*models.StatsSummary, error)
}

// SettingsStore is a small key-value table for runtime toggles.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
	ListSettings(ctx context.Context) ([]*models.Setting, error)
}

// Store provides the complete control plane persistence interface.
//
// Thread Safety: implementations must be safe for concurrent use from multiple
// goroutines.
type Store interface {
	MappingStore
	SyncStore
	StatsStore
	SettingsStore

	// Healthcheck verifies the database is reachable.
	Healthcheck(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}
