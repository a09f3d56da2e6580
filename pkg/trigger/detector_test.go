package trigger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/mapping"
)

const (
	target  uint64 = 9000
	srcA    uint64 = 100
	srcB    uint64 = 200
	roleA   uint64 = 101
	roleB   uint64 = 201
	subject uint64 = 42
)

type staticIndex struct{ idx *mapping.Index }

func (s staticIndex) Snapshot() *mapping.Index { return s.idx }

type recordingQueue struct {
	queued  []uint64
	removed []uint64
	err     error
}

func (q *recordingQueue) Enqueue(_ context.Context, s uint64) error {
	if q.err != nil {
		return q.err
	}
	q.queued = append(q.queued, s)
	return nil
}

func (q *recordingQueue) Remove(_ context.Context, s uint64) (bool, error) {
	q.removed = append(q.removed, s)
	return true, nil
}

func newTestDetector(t *testing.T) (*Detector, *recordingQueue) {
	t.Helper()
	idx := mapping.BuildIndex([]*models.RoleMapping{
		{ID: "a", SourceCommunityID: srcA, SourceRoleID: roleA, TargetCommunityID: target, TargetRoleID: 9001, Enabled: true},
		{ID: "b", SourceCommunityID: srcB, SourceRoleID: roleB, TargetCommunityID: target, TargetRoleID: 9002, Enabled: false},
	}, target)
	q := &recordingQueue{}
	return NewDetector(target, staticIndex{idx}, q, nil), q
}

func TestClassify(t *testing.T) {
	d, _ := newTestDetector(t)

	tests := []struct {
		name   string
		change RoleChange
		want   Decision
	}{
		{"mapped role gained", RoleChange{Community: srcA, Subject: subject, After: []uint64{roleA}}, DecisionQueued},
		{"mapped role lost", RoleChange{Community: srcA, Subject: subject, Before: []uint64{roleA, 5}, After: []uint64{5}}, DecisionQueued},
		{"unmapped role", RoleChange{Community: srcA, Subject: subject, Before: []uint64{roleA}, After: []uint64{roleA, 5}}, DecisionIgnoredUnmapped},
		{"disabled mapping", RoleChange{Community: srcB, Subject: subject, After: []uint64{roleB}}, DecisionIgnoredUnmapped},
		{"bot", RoleChange{Community: srcA, Subject: subject, Bot: true, After: []uint64{roleA}}, DecisionIgnoredBot},
		{"target community", RoleChange{Community: target, Subject: subject, After: []uint64{9001}}, DecisionIgnoredTarget},
		{"no change", RoleChange{Community: srcA, Subject: subject, Before: []uint64{roleA}, After: []uint64{roleA}}, DecisionIgnoredUnmapped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Classify(tt.change))
		})
	}
}

func TestOnRoleChangeQueues(t *testing.T) {
	d, q := newTestDetector(t)
	ctx := context.Background()

	dec, err := d.OnRoleChange(ctx, RoleChange{Community: srcA, Subject: subject, After: []uint64{roleA}})
	require.NoError(t, err)
	assert.Equal(t, DecisionQueued, dec)

	dec, err = d.OnRoleChange(ctx, RoleChange{Community: srcA, Subject: 43, After: []uint64{7}})
	require.NoError(t, err)
	assert.Equal(t, DecisionIgnoredUnmapped, dec)

	assert.Equal(t, []uint64{subject}, q.queued)
}

func TestAutoSyncOffDropsAndCounts(t *testing.T) {
	d, q := newTestDetector(t)
	ctx := context.Background()
	require.True(t, d.AutoSync())

	d.SetAutoSync(false)
	for range 3 {
		dec, err := d.OnRoleChange(ctx, RoleChange{Community: srcA, Subject: subject, After: []uint64{roleA}})
		require.NoError(t, err)
		assert.Equal(t, DecisionDropped, dec)
	}
	// Ignored events are not counted as dropped.
	_, _ = d.OnRoleChange(ctx, RoleChange{Community: srcA, Subject: subject, Bot: true, After: []uint64{roleA}})

	assert.Empty(t, q.queued)
	assert.Equal(t, int64(3), d.Dropped())

	d.SetAutoSync(true)
	_, err := d.OnRoleChange(ctx, RoleChange{Community: srcA, Subject: subject, After: []uint64{roleA}})
	require.NoError(t, err)
	assert.Equal(t, []uint64{subject}, q.queued)
}

func TestOnRoleChangeQueueError(t *testing.T) {
	d, q := newTestDetector(t)
	q.err = errors.New("redis down")

	_, err := d.OnRoleChange(context.Background(), RoleChange{Community: srcA, Subject: subject, After: []uint64{roleA}})
	assert.ErrorIs(t, err, q.err)
}

func TestOnMemberLeave(t *testing.T) {
	d, q := newTestDetector(t)
	ctx := context.Background()

	dec, err := d.OnMemberLeave(ctx, MemberLeave{Community: target, Subject: subject})
	require.NoError(t, err)
	assert.Equal(t, DecisionDequeued, dec)
	assert.Equal(t, []uint64{subject}, q.removed)

	dec, err = d.OnMemberLeave(ctx, MemberLeave{Community: srcA, Subject: subject})
	require.NoError(t, err)
	assert.Equal(t, DecisionQueued, dec)

	dec, err = d.OnMemberLeave(ctx, MemberLeave{Community: 555, Subject: subject})
	require.NoError(t, err)
	assert.Equal(t, DecisionIgnoredUnmapped, dec)

	d.SetAutoSync(false)
	dec, err = d.OnMemberLeave(ctx, MemberLeave{Community: srcA, Subject: subject})
	require.NoError(t, err)
	assert.Equal(t, DecisionDropped, dec)

	assert.Equal(t, []uint64{subject}, q.queued)
}

func TestDetectorOnEvent(t *testing.T) {
	d, q := newTestDetector(t)
	ctx := context.Background()

	var manual []uint64
	d.Handle(KindManualRequest, func(_ context.Context, ev Event) error {
		manual = append(manual, ev.Manual.Subject)
		return nil
	})

	require.NoError(t, d.OnEvent(ctx, NewRoleChange(RoleChange{Community: srcA, Subject: subject, After: []uint64{roleA}})))
	require.NoError(t, d.OnEvent(ctx, NewManualRequest(ManualRequest{Subject: 7})))
	assert.ErrorIs(t, d.OnEvent(ctx, NewSweepRequest(SweepRequest{})), ErrUnknownEvent)
	assert.ErrorIs(t, d.OnEvent(ctx, Event{Kind: KindMemberLeave}), ErrInvalidEvent)

	assert.Equal(t, []uint64{subject}, q.queued)
	assert.Equal(t, []uint64{7}, manual)
}
