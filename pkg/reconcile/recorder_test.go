package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/mapping"
)

func sampleResult() *SyncResult {
	return &SyncResult{
		SessionID:         "0b8f6c3e-2d7a-4a47-9df2-3a3f5a1e0c11",
		SubjectID:         42,
		TargetCommunityID: 9000,
		Trigger:           TriggerAuto,
		State:             StateDone,
		RolesAdded:        []uint64{9001},
		RolesRemoved:      []uint64{9002},
		RolesFailed:       []uint64{9003},
		Errors:            []string{"add role 9003: role is not manageable"},
		SourceCommunities: []uint64{100},
		Timestamp:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:          250 * time.Millisecond,
		Actions: []RoleAction{
			{Op: OpAdd, Role: 9003, Error: "role is not manageable"},
			{Op: OpAdd, Role: 9001},
			{Op: OpRemove, Role: 9002},
		},
		Provenance: map[uint64][]mapping.Pair{
			9001: {{Community: 100, Role: 101}},
		},
	}
}

func TestBuildRecord(t *testing.T) {
	rec := BuildRecord(sampleResult())

	s := rec.Session
	assert.Equal(t, "auto", s.TriggerType)
	assert.False(t, s.Success)
	assert.Equal(t, "done", s.State)
	assert.Equal(t, int64(250), s.DurationMs)
	assert.Equal(t, s.StartedAt.Add(250*time.Millisecond), s.CompletedAt)

	require.Len(t, rec.Logs, 4)
	assert.Equal(t, models.ActionRoleFailed, rec.Logs[0].ActionType)
	assert.Equal(t, models.ActionRoleAdded, rec.Logs[1].ActionType)
	assert.Equal(t, models.ActionRoleRemoved, rec.Logs[2].ActionType)
	assert.Equal(t, models.ActionSyncFailed, rec.Logs[3].ActionType)
	assert.Equal(t, uint64(9001), *rec.Logs[1].RoleID)
	assert.Nil(t, rec.Logs[3].RoleID)

	require.Len(t, rec.Assignments, 1)
	assert.Equal(t, uint64(101), rec.Assignments[0].SourceRoleID)
	assert.Equal(t, []uint64{9002}, rec.Revoked)
}

func TestBuildRecordDryRun(t *testing.T) {
	res := sampleResult()
	res.DryRun = true
	res.Success = true
	res.Errors = nil

	rec := BuildRecord(res)
	assert.True(t, rec.Session.DryRun)
	assert.NotNil(t, rec.Session.Errors)
	assert.Equal(t, models.ActionSyncSuccess, rec.Logs[len(rec.Logs)-1].ActionType)
	assert.Empty(t, rec.Assignments)
	assert.Empty(t, rec.Revoked)
}

type writerFunc func(context.Context, *models.SyncRecord) error

func (f writerFunc) RecordSync(ctx context.Context, rec *models.SyncRecord) error { return f(ctx, rec) }

func TestStoreRecorderWrapsErrors(t *testing.T) {
	boom := errors.New("disk full")
	r := NewStoreRecorder(writerFunc(func(context.Context, *models.SyncRecord) error { return boom }))

	err := r.RecordResult(context.Background(), sampleResult())

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "record_sync", pe.Op)
	assert.ErrorIs(t, err, boom)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, KindSubjectNotFound, ErrorKind(ErrSubjectNotFound))
	assert.Equal(t, KindTargetUnavailable, ErrorKind(errors.Join(ErrTargetUnavailable, errors.New("x"))))
	assert.Equal(t, KindSourceFetch, ErrorKind(&SourceFetchError{Community: 1, Err: errors.New("x")}))
	assert.Equal(t, KindPartialFailure, ErrorKind(&PartialFailure{Roles: []uint64{1}, Err: ErrRoleMutationForbidden}))
	assert.Equal(t, KindInternal, ErrorKind(errors.New("other")))
}
