package reconcile

import (
	"context"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

// SyncWriter is the store method used by StoreRecorder.
type SyncWriter interface {
	RecordSync(ctx context.Context, rec *models.SyncRecord) error
}

// StoreRecorder persists each result in its own transaction.
type StoreRecorder struct {
	store SyncWriter
}

func NewStoreRecorder(store SyncWriter) *StoreRecorder {
	return &StoreRecorder{store: store}
}

func (s *StoreRecorder) RecordResult(ctx context.Context, res *SyncResult) error {
	if err := s.store.RecordSync(ctx, BuildRecord(res)); err != nil {
		return &PersistenceError{Op: "record_sync", Err: err}
	}
	return nil
}

// BuildRecord converts a result into the rows written for it: the session,
// one audit line per role action plus a closing line, the provenance of held
// roles and the list of revoked roles.
func BuildRecord(res *SyncResult) *models.SyncRecord {
	started := res.Timestamp.UTC()
	completed := started.Add(res.Duration)
	trigger := string(res.Trigger)

	rec := &models.SyncRecord{
		Session: models.SyncSession{
			ID:                  res.SessionID,
			SubjectID:           res.SubjectID,
			TargetCommunityID:   res.TargetCommunityID,
			TriggerType:         trigger,
			Success:             res.Success,
			DryRun:              res.DryRun,
			State:               string(res.State),
			ErrorKind:           res.ErrorKind,
			RolesAdded:          nonNil(res.RolesAdded),
			RolesRemoved:        nonNil(res.RolesRemoved),
			RolesFailed:         nonNil(res.RolesFailed),
			SourceCommunities:   nonNil(res.SourceCommunities),
			Errors:              res.Errors,
			SourceRolesFound:    res.SourceRolesFound,
			TargetRolesComputed: res.TargetRolesComputed,
			DurationMs:          res.Duration.Milliseconds(),
			StartedAt:           started,
			CompletedAt:         completed,
		},
	}
	if rec.Session.Errors == nil {
		rec.Session.Errors = []string{}
	}

	target := res.TargetCommunityID
	for _, a := range res.Actions {
		role := a.Role
		rec.Logs = append(rec.Logs, models.SyncLog{
			SessionID:    res.SessionID,
			SubjectID:    res.SubjectID,
			ActionType:   actionType(a),
			TriggerType:  trigger,
			RoleID:       &role,
			CommunityID:  &target,
			Success:      a.OK(),
			ErrorMessage: a.Error,
			CreatedAt:    completed,
		})
	}

	closing := models.SyncLog{
		SessionID:   res.SessionID,
		SubjectID:   res.SubjectID,
		ActionType:  models.ActionSyncSuccess,
		TriggerType: trigger,
		Success:     res.Success,
		CreatedAt:   completed,
	}
	if !res.Success {
		closing.ActionType = models.ActionSyncFailed
		if n := len(res.Errors); n > 0 {
			closing.ErrorMessage = res.Errors[n-1]
		}
	}
	rec.Logs = append(rec.Logs, closing)

	if res.DryRun {
		return rec
	}

	for role, sources := range res.Provenance {
		for _, p := range sources {
			rec.Assignments = append(rec.Assignments, models.RoleAssignment{
				SubjectID:         res.SubjectID,
				TargetCommunityID: target,
				TargetRoleID:      role,
				SourceCommunityID: p.Community,
				SourceRoleID:      p.Role,
				AssignedAt:        completed,
			})
		}
	}
	rec.Revoked = append(rec.Revoked, res.RolesRemoved...)
	return rec
}

func actionType(a RoleAction) string {
	switch {
	case !a.OK():
		return models.ActionRoleFailed
	case a.Op == OpRemove:
		return models.ActionRoleRemoved
	default:
		return models.ActionRoleAdded
	}
}

func nonNil(ids []uint64) []uint64 {
	if ids == nil {
		return []uint64{}
	}
	return ids
}
