package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambnuf14-max/saes-discord-bot/internal/platform/fake"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/mapping"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/reconcile"
)

const (
	target   uint64 = 9000
	commA    uint64 = 100
	commB    uint64 = 200
	subject  uint64 = 42
	roleR1   uint64 = 101
	roleR2   uint64 = 201
	roleT1   uint64 = 9001
	roleT2   uint64 = 9002
	roleT9   uint64 = 9009
	errFetch        = constErr("gateway timeout")
)

type constErr string

func (e constErr) Error() string { return string(e) }

type harness struct {
	platform *fake.Platform
	store    *mapping.Store
	rec      *reconcile.Reconciler
	recorded []*reconcile.SyncResult
}

func newHarness(t *testing.T, cfg reconcile.Config, mappings ...*models.RoleMapping) *harness {
	t.Helper()

	h := &harness{platform: fake.New(), store: mapping.NewStore(nil)}
	h.platform.AddCommunity(target)
	h.platform.AddCommunity(commA)
	h.platform.AddCommunity(commB)
	h.store.Load(mappings)

	cfg.TargetCommunity = target
	r, err := reconcile.New(cfg, reconcile.Deps{
		Mappings:  h.store,
		Directory: h.platform,
		Mutator:   h.platform,
		Oracle:    h.platform,
		Recorder: reconcile.RecorderFunc(func(_ context.Context, res *reconcile.SyncResult) error {
			h.recorded = append(h.recorded, res)
			return nil
		}),
	})
	require.NoError(t, err)
	h.rec = r
	return h
}

func (h *harness) reconcile(opts ...reconcile.Options) *reconcile.SyncResult {
	var o reconcile.Options
	if len(opts) > 0 {
		o = opts[0]
	}
	return h.rec.Reconcile(context.Background(), subject, reconcile.TriggerManual, o)
}

func rm(id string, community, role, targetRole uint64) *models.RoleMapping {
	return &models.RoleMapping{
		ID:                id,
		SourceCommunityID: community,
		SourceRoleID:      role,
		TargetCommunityID: target,
		TargetRoleID:      targetRole,
		Enabled:           true,
	}
}

func assertDisjoint(t *testing.T, res *reconcile.SyncResult) {
	t.Helper()
	for _, r := range res.RolesAdded {
		assert.NotContains(t, res.RolesFailed, r)
	}
}

func TestNewValidatesDeps(t *testing.T) {
	_, err := reconcile.New(reconcile.Config{}, reconcile.Deps{})
	assert.Error(t, err)

	p := fake.New()
	_, err = reconcile.New(reconcile.Config{TargetCommunity: target}, reconcile.Deps{
		Mappings: mapping.NewStore(nil), Directory: p, Mutator: p,
	})
	assert.Error(t, err, "oracle is required")
}

func TestReconcileAddsMappedRole(t *testing.T) {
	h := newHarness(t, reconcile.Config{}, rm("m1", commA, roleR1, roleT1))
	h.platform.SetMember(commA, subject, roleR1)
	h.platform.SetMember(target, subject)

	res := h.reconcile()

	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, reconcile.StateDone, res.State)
	assert.Equal(t, []uint64{roleT1}, res.RolesAdded)
	assert.Empty(t, res.RolesRemoved)
	assert.Empty(t, res.RolesFailed)
	assert.Equal(t, []uint64{commA}, res.SourceCommunities)
	assert.Equal(t, 1, res.SourceRolesFound)
	assert.Equal(t, 1, res.TargetRolesComputed)
	assert.Equal(t, []uint64{roleT1}, h.platform.Roles(target, subject))
	assert.Equal(t, []mapping.Pair{{Community: commA, Role: roleR1}}, res.Provenance[roleT1])
	assert.NotEmpty(t, res.SessionID)
	require.Len(t, h.recorded, 1)
	assert.Same(t, res, h.recorded[0])
}

func TestReconcileRemovesUnjustifiedRole(t *testing.T) {
	h := newHarness(t, reconcile.Config{}, rm("m1", commA, roleR1, roleT1))
	h.platform.SetMember(commA, subject)
	h.platform.SetMember(target, subject, roleT1)

	res := h.reconcile()

	assert.True(t, res.Success)
	assert.Equal(t, []uint64{roleT1}, res.RolesRemoved)
	assert.Empty(t, res.RolesAdded)
	assert.Empty(t, h.platform.Roles(target, subject))
}

func TestReconcileNeverTouchesUnmappedRole(t *testing.T) {
	h := newHarness(t, reconcile.Config{}, rm("m1", commA, roleR1, roleT1))
	h.platform.SetMember(target, subject, roleT1, roleT9)

	for _, sourceRoles := range [][]uint64{nil, {roleR1}, {roleR1, 555}} {
		h.platform.SetMember(commA, subject, sourceRoles...)
		res := h.reconcile()
		assert.NotContains(t, res.RolesRemoved, roleT9)
		assert.Contains(t, h.platform.Roles(target, subject), roleT9)
	}
}

func TestReconcileTotalFetchFailure(t *testing.T) {
	h := newHarness(t, reconcile.Config{}, rm("m1", commA, roleR1, roleT1))
	h.platform.SetMember(target, subject, roleT1)
	h.platform.FailCommunity(commA, errFetch)
	h.platform.FailCommunity(commB, errFetch)

	res := h.reconcile()

	assert.False(t, res.Success)
	assert.Equal(t, reconcile.StateFailed, res.State)
	assert.Equal(t, reconcile.KindSourcesUnavailable, res.ErrorKind)
	assert.Empty(t, res.RolesAdded)
	assert.Empty(t, res.RolesRemoved)
	assert.NotEmpty(t, res.Errors)
	assert.Empty(t, h.platform.AddCalls())
	assert.Empty(t, h.platform.RemoveCalls())
	assert.Equal(t, []uint64{roleT1}, h.platform.Roles(target, subject))
	require.Len(t, h.recorded, 1, "failed reconciliations are recorded too")
}

func TestReconcilePartialFetchFailure(t *testing.T) {
	h := newHarness(t, reconcile.Config{}, rm("m1", commA, roleR1, roleT1))
	h.platform.SetMember(commA, subject, roleR1)
	h.platform.SetMember(target, subject)
	h.platform.FailCommunity(commB, errFetch)

	res := h.reconcile()

	assert.Equal(t, reconcile.StateDone, res.State)
	assert.False(t, res.Success, "a failed source read downgrades success")
	assert.Equal(t, reconcile.KindSourceFetch, res.ErrorKind)
	assert.Equal(t, []uint64{roleT1}, res.RolesAdded)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "community 200")
}

func TestReconcileNotMemberOfSourcesIsNotFailure(t *testing.T) {
	h := newHarness(t, reconcile.Config{}, rm("m1", commA, roleR1, roleT1))
	h.platform.SetMember(target, subject, roleT1)

	res := h.reconcile()

	assert.True(t, res.Success)
	assert.Equal(t, []uint64{roleT1}, res.RolesRemoved)
	assert.Empty(t, res.SourceCommunities)
}

func TestReconcileSubjectNotFound(t *testing.T) {
	h := newHarness(t, reconcile.Config{}, rm("m1", commA, roleR1, roleT1))
	h.platform.SetMember(commA, subject, roleR1)

	res := h.reconcile()

	assert.False(t, res.Success)
	assert.Equal(t, reconcile.StateFailed, res.State)
	assert.Equal(t, reconcile.KindSubjectNotFound, res.ErrorKind)
	assert.Zero(t, h.platform.Reads(commA), "sources are not read for an absent subject")
}

func TestReconcileTargetUnavailable(t *testing.T) {
	h := newHarness(t, reconcile.Config{}, rm("m1", commA, roleR1, roleT1))
	h.platform.FailCommunity(target, errFetch)

	res := h.reconcile()

	assert.Equal(t, reconcile.KindTargetUnavailable, res.ErrorKind)
	assert.Equal(t, reconcile.StateFailed, res.State)
}

func TestReconcileOracleFailureIsTerminal(t *testing.T) {
	h := newHarness(t, reconcile.Config{}, rm("m1", commA, roleR1, roleT1))
	h.platform.SetMember(commA, subject, roleR1)
	h.platform.SetMember(target, subject)
	h.platform.FailOracle(errors.New("guild cache cold"))

	res := h.reconcile()

	assert.Equal(t, reconcile.KindTargetUnavailable, res.ErrorKind)
	assert.Empty(t, h.platform.AddCalls())
}

func TestReconcileIsIdempotent(t *testing.T) {
	h := newHarness(t, reconcile.Config{},
		rm("m1", commA, roleR1, roleT1),
		rm("m2", commB, roleR2, roleT2))
	h.platform.SetMember(commA, subject, roleR1)
	h.platform.SetMember(commB, subject)
	h.platform.SetMember(target, subject, roleT2)

	first := h.reconcile()
	require.True(t, first.Success)
	assert.Equal(t, []uint64{roleT1}, first.RolesAdded)
	assert.Equal(t, []uint64{roleT2}, first.RolesRemoved)

	second := h.reconcile()
	assert.True(t, second.Success)
	assert.Empty(t, second.RolesAdded)
	assert.Empty(t, second.RolesRemoved)
	assert.False(t, second.Changed())
	assert.Len(t, h.platform.AddCalls(), 1)
	assert.Len(t, h.platform.RemoveCalls(), 1)
}

func TestReconcileBulkRejectionFallsBackPerRole(t *testing.T) {
	h := newHarness(t, reconcile.Config{},
		rm("m1", commA, roleR1, roleT1),
		rm("m2", commB, roleR2, roleT2))
	h.platform.SetMember(commA, subject, roleR1)
	h.platform.SetMember(commB, subject, roleR2)
	h.platform.SetMember(target, subject)
	h.platform.SetForbidden(roleT2)

	res := h.reconcile()

	assert.False(t, res.Success)
	assert.Equal(t, reconcile.KindPartialFailure, res.ErrorKind)
	assert.Equal(t, []uint64{roleT1}, res.RolesAdded)
	assert.Equal(t, []uint64{roleT2}, res.RolesFailed)
	assertDisjoint(t, res)

	calls := h.platform.AddCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, []uint64{roleT1, roleT2}, calls[0])
	assert.Equal(t, []uint64{roleT1}, calls[1])
	assert.Equal(t, []uint64{roleT2}, calls[2])
	assert.Equal(t, []uint64{roleT1}, h.platform.Roles(target, subject))

	var failed []reconcile.RoleAction
	for _, a := range res.Actions {
		if !a.OK() {
			failed = append(failed, a)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, roleT2, failed[0].Role)
}

func TestReconcileUnmanageableRolesAreNotAttempted(t *testing.T) {
	h := newHarness(t, reconcile.Config{},
		rm("m1", commA, roleR1, roleT1),
		rm("m2", commB, roleR2, roleT2))
	h.platform.SetMember(commA, subject, roleR1)
	h.platform.SetMember(commB, subject, roleR2)
	h.platform.SetMember(target, subject)
	h.platform.SetUnmanageable(roleT2)

	res := h.reconcile()

	assert.Equal(t, []uint64{roleT1}, res.RolesAdded)
	assert.Equal(t, []uint64{roleT2}, res.RolesFailed)
	assert.False(t, res.Success)
	require.Len(t, h.platform.AddCalls(), 1)
	assert.Equal(t, []uint64{roleT1}, h.platform.AddCalls()[0])
	assertDisjoint(t, res)
}

func TestReconcileRemovalFailurePolicy(t *testing.T) {
	setup := func(strict bool) *harness {
		h := newHarness(t, reconcile.Config{StrictRemovals: strict}, rm("m1", commA, roleR1, roleT1))
		h.platform.SetMember(commA, subject)
		h.platform.SetMember(target, subject, roleT1)
		h.platform.SetForbidden(roleT1)
		return h
	}

	t.Run("lenient", func(t *testing.T) {
		res := setup(false).reconcile()
		assert.True(t, res.Success)
		assert.Empty(t, res.RolesRemoved)
		assert.Empty(t, res.RolesFailed)
		assert.NotEmpty(t, res.Errors)
	})

	t.Run("strict", func(t *testing.T) {
		res := setup(true).reconcile()
		assert.False(t, res.Success)
		assert.Equal(t, []uint64{roleT1}, res.RolesFailed)
	})
}

func TestReconcileDryRun(t *testing.T) {
	h := newHarness(t, reconcile.Config{},
		rm("m1", commA, roleR1, roleT1),
		rm("m2", commB, roleR2, roleT2))
	h.platform.SetMember(commA, subject, roleR1)
	h.platform.SetMember(commB, subject)
	h.platform.SetMember(target, subject, roleT2)

	res := h.reconcile(reconcile.Options{DryRun: true})

	assert.True(t, res.DryRun)
	assert.True(t, res.Success)
	assert.Equal(t, []uint64{roleT1}, res.RolesAdded)
	assert.Equal(t, []uint64{roleT2}, res.RolesRemoved)
	assert.Empty(t, h.platform.AddCalls())
	assert.Empty(t, h.platform.RemoveCalls())
	assert.Equal(t, []uint64{roleT2}, h.platform.Roles(target, subject))
}

func TestReconcileDisabledMappingMakesRoleRemovable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, reconcile.Config{},
		rm("m1", commA, roleR1, roleT1),
		rm("m2", commB, roleR2, roleT1))
	h.platform.SetMember(commA, subject, roleR1)
	h.platform.SetMember(commB, subject)
	h.platform.SetMember(target, subject, roleT1)

	res := h.reconcile()
	require.True(t, res.Success)
	assert.Empty(t, res.RolesRemoved, "R1 still justifies T1")

	off := false
	_, found, err := h.store.Update(ctx, "m1", models.MappingUpdate{Enabled: &off})
	require.NoError(t, err)
	require.True(t, found)

	res = h.reconcile()
	assert.True(t, res.Success)
	assert.Equal(t, []uint64{roleT1}, res.RolesRemoved)
}

func TestReconcileRoleOfFullyDisabledMappingIsLeftAlone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, reconcile.Config{}, rm("m1", commA, roleR1, roleT1))
	h.platform.SetMember(commA, subject, roleR1)
	h.platform.SetMember(target, subject, roleT1)

	off := false
	_, _, err := h.store.Update(ctx, "m1", models.MappingUpdate{Enabled: &off})
	require.NoError(t, err)

	res := h.reconcile()
	assert.Empty(t, res.RolesRemoved)
	assert.Equal(t, []uint64{roleT1}, h.platform.Roles(target, subject))
}

func TestReconcileUsesPrefetchedSources(t *testing.T) {
	h := newHarness(t, reconcile.Config{}, rm("m1", commA, roleR1, roleT1))
	h.platform.SetMember(target, subject)

	src := staticSources{commA: {subject: {roleR1}}}
	res := h.reconcile(reconcile.Options{Sources: src})

	assert.Equal(t, []uint64{roleT1}, res.RolesAdded)
	assert.Zero(t, h.platform.Reads(commA))
}

func TestReconcileRecorderOverrideAndFailure(t *testing.T) {
	h := newHarness(t, reconcile.Config{}, rm("m1", commA, roleR1, roleT1))
	h.platform.SetMember(commA, subject, roleR1)
	h.platform.SetMember(target, subject)

	res := h.reconcile(reconcile.Options{
		Recorder: reconcile.RecorderFunc(func(context.Context, *reconcile.SyncResult) error {
			return errors.New("database is locked")
		}),
	})

	assert.True(t, res.Success, "persistence failures do not change the outcome")
	assert.Equal(t, []uint64{roleT1}, res.RolesAdded)
	assert.Empty(t, h.recorded)
}

func TestReconcileCanceledContext(t *testing.T) {
	h := newHarness(t, reconcile.Config{}, rm("m1", commA, roleR1, roleT1))
	h.platform.SetMember(target, subject)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := h.rec.Reconcile(ctx, subject, reconcile.TriggerAuto, reconcile.Options{})

	assert.Equal(t, reconcile.StateFailed, res.State)
	assert.Equal(t, reconcile.KindCanceled, res.ErrorKind)
}

func TestReconcileCanceledContextIsStillRecorded(t *testing.T) {
	h := newHarness(t, reconcile.Config{}, rm("m1", commA, roleR1, roleT1))
	h.platform.SetMember(target, subject)

	// Behaves like a database driver: refuses to write on a dead context.
	var stored []*reconcile.SyncResult
	rec := reconcile.RecorderFunc(func(ctx context.Context, res *reconcile.SyncResult) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stored = append(stored, res)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := h.rec.Reconcile(ctx, subject, reconcile.TriggerAPI, reconcile.Options{Recorder: rec})

	assert.Equal(t, reconcile.StateFailed, res.State)
	require.Len(t, stored, 1)
	assert.Equal(t, res.SessionID, stored[0].SessionID)
}

type staticSources map[uint64]map[uint64][]uint64

func (s staticSources) Communities(context.Context) ([]uint64, error) {
	out := make([]uint64, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	return out, nil
}

func (s staticSources) MemberRoles(_ context.Context, community, subject uint64) ([]uint64, error) {
	roles, ok := s[community][subject]
	if !ok {
		return nil, reconcile.ErrNotMember
	}
	return roles, nil
}
