package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging. Use these consistently so log
// aggregation can query reconciliations across triggers.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Reconciliation
	KeySubject    = "subject"
	KeyCommunity  = "community"
	KeyTarget     = "target_community"
	KeyRole       = "role"
	KeyRoles      = "roles"
	KeyTrigger    = "trigger"
	KeyState      = "state"
	KeySessionID  = "session_id"
	KeyAdded      = "added"
	KeyRemoved    = "removed"
	KeyFailed     = "failed"
	KeyDryRun     = "dry_run"
	KeyErrorKind  = "error_kind"
	KeyMappingID  = "mapping_id"
	KeyMappings   = "mappings"
	KeyPending    = "pending"
	KeyProcessed  = "processed"
	KeyTotal      = "total"
	KeyDurationMs = "duration_ms"

	// Errors
	KeyError = "error"

	// Infrastructure
	KeyPath      = "path"
	KeyStoreType = "store_type"
	KeyBackend   = "backend"
	KeyAddr      = "addr"
	KeyInterval  = "interval"
)

// Subject returns a slog.Attr for the subject id
func Subject(id uint64) slog.Attr {
	return slog.Uint64(KeySubject, id)
}

// Community returns a slog.Attr for a community id
func Community(id uint64) slog.Attr {
	return slog.Uint64(KeyCommunity, id)
}

// Role returns a slog.Attr for a single role id
func Role(id uint64) slog.Attr {
	return slog.Uint64(KeyRole, id)
}

// Roles returns a slog.Attr for a role id list
func Roles(ids []uint64) slog.Attr {
	return slog.Any(KeyRoles, ids)
}

// Trigger returns a slog.Attr for the trigger kind
func Trigger(kind string) slog.Attr {
	return slog.String(KeyTrigger, kind)
}

// State returns a slog.Attr for a reconciler state
func State(name string) slog.Attr {
	return slog.String(KeyState, name)
}

// MappingID returns a slog.Attr for a mapping identifier
func MappingID(id string) slog.Attr {
	return slog.String(KeyMappingID, id)
}

// DurationMs returns a slog.Attr with the elapsed milliseconds since start
func DurationMs(start time.Time) slog.Attr {
	return slog.Float64(KeyDurationMs, Duration(start))
}

// Err returns a slog.Attr for an error; nil errors produce an empty attr
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
