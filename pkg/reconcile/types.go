package reconcile

import (
	"context"
	"time"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/mapping"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/metrics"
)

// Trigger names what started a reconciliation.
type Trigger string

const (
	TriggerAuto   Trigger = models.TriggerAuto
	TriggerManual Trigger = models.TriggerManual
	TriggerSweep  Trigger = models.TriggerSweep
	TriggerAPI    Trigger = models.TriggerAPI
)

// State is a step of the reconcile state machine.
type State string

const (
	StateStart         State = "start"
	StateFetchTarget   State = "fetch_target"
	StateFetchSources  State = "fetch_sources"
	StateComputeTarget State = "compute_target"
	StateDiff          State = "diff"
	StateApply         State = "apply"
	StateRecord        State = "record"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Member is one community member as returned by a Directory listing.
type Member struct {
	ID    uint64
	Bot   bool
	Roles []uint64
}

// Snapshot is the set of roles observed for one subject, keyed by source
// community. The target community and default roles are never included.
type Snapshot map[uint64][]uint64

// Pairs flattens the snapshot into source pairs.
func (s Snapshot) Pairs() []mapping.Pair {
	var out []mapping.Pair
	for c, roles := range s {
		for _, r := range roles {
			out = append(out, mapping.Pair{Community: c, Role: r})
		}
	}
	return out
}

// Op is the kind of a per-role mutation.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// RoleAction is the outcome of one per-role mutation, kept for the audit log.
type RoleAction struct {
	Op    Op
	Role  uint64
	Error string
}

// OK reports whether the action succeeded.
func (a RoleAction) OK() bool { return a.Error == "" }

// SyncResult is the immutable outcome of one reconciliation.
type SyncResult struct {
	SessionID         string    `json:"session_id"`
	SubjectID         uint64    `json:"subject_id,string"`
	TargetCommunityID uint64    `json:"target_community_id,string"`
	Trigger           Trigger   `json:"trigger"`
	DryRun            bool      `json:"dry_run"`
	Success           bool      `json:"success"`
	State             State     `json:"state"`
	ErrorKind         string    `json:"error_kind,omitempty"`
	RolesAdded        []uint64  `json:"roles_added"`
	RolesRemoved      []uint64  `json:"roles_removed"`
	RolesFailed       []uint64  `json:"roles_failed"`
	Errors            []string  `json:"errors"`
	SourceCommunities []uint64  `json:"source_communities"`
	Timestamp         time.Time `json:"timestamp"`

	SourceRoles         Snapshot      `json:"-"`
	SourceRolesFound    int           `json:"source_roles_found"`
	TargetRolesComputed int           `json:"target_roles_computed"`
	CurrentRoles        []uint64      `json:"current_roles"`
	Duration            time.Duration `json:"duration"`

	// Actions lists every attempted per-role mutation in order.
	Actions []RoleAction `json:"-"`
	// Provenance maps each target role the subject holds through a mapping
	// to the source pairs that justify it.
	Provenance map[uint64][]mapping.Pair `json:"-"`
}

// TotalChanges returns added plus removed roles.
func (r *SyncResult) TotalChanges() int {
	return len(r.RolesAdded) + len(r.RolesRemoved)
}

// Changed reports whether the reconciliation modified the subject.
func (r *SyncResult) Changed() bool { return r.TotalChanges() > 0 }

// Outcome classifies the result for metrics and sweep statistics.
func (r *SyncResult) Outcome() string {
	switch {
	case r.ErrorKind == KindSubjectNotFound:
		return metrics.OutcomeSkipped
	case !r.Success:
		return metrics.OutcomeFailed
	case r.Changed():
		return metrics.OutcomeSuccess
	default:
		return metrics.OutcomeNoChanges
	}
}

// Directory reads community membership from the hosting platform.
type Directory interface {
	// Communities lists every community the automation can see.
	Communities(ctx context.Context) ([]uint64, error)
	// MemberRoles returns the subject's roles on community, or ErrNotMember.
	MemberRoles(ctx context.Context, community, subject uint64) ([]uint64, error)
	// Members lists every member of community with their roles.
	Members(ctx context.Context, community uint64) ([]Member, error)
}

// SourceProvider is the slice of Directory used to read source roles. The
// batch sweep substitutes a prefetched implementation.
type SourceProvider interface {
	Communities(ctx context.Context) ([]uint64, error)
	MemberRoles(ctx context.Context, community, subject uint64) ([]uint64, error)
}

// Mutator changes roles on the target community. Bulk calls may return a
// *PartialFailure or wrap ErrRoleMutationForbidden.
type Mutator interface {
	AddRoles(ctx context.Context, community, subject uint64, roles []uint64) error
	RemoveRoles(ctx context.Context, community, subject uint64, roles []uint64) error
}

// Oracle decides which roles the automation is able to mutate.
type Oracle interface {
	PartitionManageable(ctx context.Context, community uint64, roles []uint64) (manageable, unmanageable []uint64, err error)
}

// Recorder persists results.
type Recorder interface {
	RecordResult(ctx context.Context, res *SyncResult) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, res *SyncResult) error

func (f RecorderFunc) RecordResult(ctx context.Context, res *SyncResult) error { return f(ctx, res) }

// Mappings is the read side of the mapping store.
type Mappings interface {
	Snapshot() *mapping.Index
}
