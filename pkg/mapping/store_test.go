package mapping

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

const (
	srcA   uint64 = 1001
	srcB   uint64 = 1002
	target uint64 = 9000
	other  uint64 = 9100
)

type memRepo struct {
	mu   sync.Mutex
	rows map[string]*models.RoleMapping
	fail error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]*models.RoleMapping)}
}

func (r *memRepo) ListMappings(context.Context) ([]*models.RoleMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	out := make([]*models.RoleMapping, 0, len(r.rows))
	for _, m := range r.rows {
		c := *m
		out = append(out, &c)
	}
	return out, nil
}

func (r *memRepo) CreateMapping(_ context.Context, m *models.RoleMapping) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return "", r.fail
	}
	if _, ok := r.rows[m.ID]; ok {
		return "", models.ErrDuplicateMapping
	}
	c := *m
	r.rows[m.ID] = &c
	return m.ID, nil
}

func (r *memRepo) UpdateMapping(_ context.Context, m *models.RoleMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	if _, ok := r.rows[m.ID]; !ok {
		return models.ErrMappingNotFound
	}
	c := *m
	r.rows[m.ID] = &c
	return nil
}

func (r *memRepo) DeleteMapping(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	if _, ok := r.rows[id]; !ok {
		return models.ErrMappingNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memRepo) ReplaceMappings(_ context.Context, mappings []*models.RoleMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.rows = make(map[string]*models.RoleMapping, len(mappings))
	for _, m := range mappings {
		c := *m
		r.rows[m.ID] = &c
	}
	return nil
}

func mapping(id string, srcCommunity, srcRole, targetRole uint64) *models.RoleMapping {
	return &models.RoleMapping{
		ID:                id,
		SourceCommunityID: srcCommunity,
		SourceRoleID:      srcRole,
		TargetCommunityID: target,
		TargetRoleID:      targetRole,
		Enabled:           true,
	}
}

func TestIndexLookups(t *testing.T) {
	idx := BuildIndex([]*models.RoleMapping{
		mapping("m1", srcA, 11, 501),
		mapping("m2", srcB, 21, 501),
		mapping("m3", srcB, 22, 502),
	}, 0)

	r, ok := idx.TargetRoleFor(srcA, 11)
	assert.True(t, ok)
	assert.Equal(t, uint64(501), r)

	_, ok = idx.TargetRoleFor(srcA, 99)
	assert.False(t, ok)

	got := idx.TargetRolesFor([]Pair{{srcA, 11}, {srcB, 21}, {srcB, 22}, {srcB, 23}})
	assert.Equal(t, []uint64{501, 502}, got.Sorted())

	assert.True(t, idx.IsTargetRole(501))
	assert.False(t, idx.IsTargetRole(11))
	assert.True(t, idx.IsSourceRole(srcB, 22))
	assert.True(t, idx.IsSourceCommunity(srcA))
	assert.False(t, idx.IsSourceCommunity(target))
	assert.Equal(t, 3, idx.Len())

	sources := idx.SourcesOf(501, []Pair{{srcB, 21}, {srcA, 11}, {srcA, 12}})
	assert.Equal(t, []Pair{{srcA, 11}, {srcB, 21}}, sources)
}

func TestIndexSkipsDisabledAndForeignTargets(t *testing.T) {
	disabled := mapping("off", srcA, 11, 501)
	disabled.Enabled = false

	foreign := mapping("foreign", srcA, 12, 777)
	foreign.TargetCommunityID = other

	idx := BuildIndex([]*models.RoleMapping{disabled, foreign, nil}, target)

	assert.Equal(t, 0, idx.Len())
	assert.False(t, idx.IsTargetRole(501))
	assert.False(t, idx.IsTargetRole(777))
	assert.Empty(t, idx.TargetRolesFor([]Pair{{srcA, 11}, {srcA, 12}}))

	unfiltered := BuildIndex([]*models.RoleMapping{foreign}, 0)
	assert.True(t, unfiltered.IsTargetRole(777))
}

func TestIndexLastMappingWins(t *testing.T) {
	idx := BuildIndex([]*models.RoleMapping{
		mapping("first", srcA, 11, 501),
		mapping("second", srcA, 11, 502),
	}, 0)

	r, ok := idx.TargetRoleFor(srcA, 11)
	require.True(t, ok)
	assert.Equal(t, uint64(502), r)
	assert.Equal(t, []string{"first"}, idx.Overridden())
	assert.False(t, idx.IsTargetRole(501))
}

func TestRoleSetOperations(t *testing.T) {
	a := NewRoleSet(1, 2, 3, 3)
	b := NewRoleSet(2, 4)

	assert.Equal(t, 3, a.Len())
	assert.Equal(t, []uint64{1, 3}, a.Minus(b).Sorted())
	assert.Equal(t, []uint64{4}, b.Minus(a).Sorted())
	assert.Equal(t, []uint64{2}, a.Filter(b.Has).Sorted())
	assert.Empty(t, NewRoleSet().Sorted())
}

func TestStoreReload(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	repo.rows["m1"] = mapping("m1", srcA, 11, 501)

	var hooks int
	s := NewStore(repo, WithLoadHook(func(*Index) { hooks++ }))
	require.NoError(t, s.Reload(ctx))

	assert.True(t, s.IsTargetRole(501))
	assert.Equal(t, 2, hooks, "construction and reload both publish")
	assert.False(t, s.LoadedAt().IsZero())

	repo.fail = errors.New("db down")
	err := s.Reload(ctx)
	require.Error(t, err)
	assert.True(t, s.IsTargetRole(501), "failed reload keeps the previous index")
}

func TestStoreAdd(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	s := NewStore(repo)

	added, err := s.Add(ctx, mapping("m1", srcA, 11, 501))
	require.NoError(t, err)
	assert.Equal(t, "m1", added.ID)
	assert.False(t, added.CreatedAt.IsZero())

	r, ok := s.TargetRoleFor(srcA, 11)
	require.True(t, ok)
	assert.Equal(t, uint64(501), r)
	assert.Contains(t, repo.rows, "m1")

	_, err = s.Add(ctx, mapping("m1", srcB, 21, 502))
	assert.ErrorIs(t, err, models.ErrDuplicateMapping)
	assert.False(t, s.IsSourceRole(srcB, 21))

	generated, err := s.Add(ctx, mapping("", srcB, 21, 502))
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)

	_, err = s.Add(ctx, &models.RoleMapping{ID: "bad", SourceCommunityID: target, SourceRoleID: 1,
		TargetCommunityID: target, TargetRoleID: 2, Enabled: true})
	assert.ErrorIs(t, err, models.ErrInvalidMapping)
}

func TestStoreAddRepositoryFailureLeavesIndex(t *testing.T) {
	repo := newMemRepo()
	s := NewStore(repo)
	repo.fail = errors.New("disk full")

	_, err := s.Add(context.Background(), mapping("m1", srcA, 11, 501))
	require.Error(t, err)
	assert.False(t, s.IsTargetRole(501))
	assert.Empty(t, s.List())
}

func TestStoreRemove(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemRepo())
	_, err := s.Add(ctx, mapping("m1", srcA, 11, 501))
	require.NoError(t, err)

	removed, err := s.Remove(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = s.Remove(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, s.IsTargetRole(501))
}

func TestStoreDisableRemovesEligibility(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemRepo())
	_, err := s.Add(ctx, mapping("m1", srcA, 11, 501))
	require.NoError(t, err)
	require.True(t, s.IsTargetRole(501))

	off := false
	updated, found, err := s.Update(ctx, "m1", models.MappingUpdate{Enabled: &off})
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, updated.Enabled)

	assert.False(t, s.IsTargetRole(501))
	assert.False(t, s.IsSourceRole(srcA, 11))

	m, ok := s.Get("m1")
	require.True(t, ok)
	assert.False(t, m.Enabled)

	_, found, err = s.Update(ctx, "missing", models.MappingUpdate{Enabled: &off})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreSnapshotIsStable(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)
	_, err := s.Add(ctx, mapping("m1", srcA, 11, 501))
	require.NoError(t, err)

	snap := s.Snapshot()
	_, err = s.Remove(ctx, "m1")
	require.NoError(t, err)

	assert.True(t, snap.IsTargetRole(501), "held snapshot is never mutated")
	assert.False(t, s.IsTargetRole(501))
}

func TestStoreCopiesAreIsolated(t *testing.T) {
	s := NewStore(nil)
	in := mapping("m1", srcA, 11, 501)
	s.Load([]*models.RoleMapping{in})

	in.TargetRoleID = 999
	assert.True(t, s.IsTargetRole(501))

	got, _ := s.Get("m1")
	got.Enabled = false
	assert.True(t, s.IsSourceRole(srcA, 11))
}

func TestStoreImport(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	s := NewStore(repo)
	_, err := s.Add(ctx, mapping("old", srcA, 11, 501))
	require.NoError(t, err)

	err = s.Import(ctx, []*models.RoleMapping{mapping("new", srcB, 21, 502)})
	require.NoError(t, err)
	assert.False(t, s.IsTargetRole(501))
	assert.True(t, s.IsTargetRole(502))
	assert.NotContains(t, repo.rows, "old")

	err = s.Import(ctx, []*models.RoleMapping{{ID: "broken"}})
	assert.ErrorIs(t, err, models.ErrInvalidMapping)
	assert.True(t, s.IsTargetRole(502))
}

func TestStoreTargetFilter(t *testing.T) {
	foreign := mapping("foreign", srcA, 12, 777)
	foreign.TargetCommunityID = other

	s := NewStore(nil, WithTargetCommunity(target))
	s.Load([]*models.RoleMapping{mapping("m1", srcA, 11, 501), foreign})

	assert.True(t, s.IsTargetRole(501))
	assert.False(t, s.IsTargetRole(777))
	assert.Len(t, s.List(), 2, "list shows every stored mapping")
}

func TestStoreStatsAndForCommunity(t *testing.T) {
	off := mapping("m3", srcB, 22, 503)
	off.Enabled = false

	s := NewStore(nil)
	s.Load([]*models.RoleMapping{
		mapping("m1", srcA, 11, 501),
		mapping("m2", srcA, 12, 501),
		off,
		mapping("m4", srcA, 11, 502),
	})

	st := s.Stats()
	assert.Equal(t, Stats{
		Total:             4,
		Enabled:           3,
		Disabled:          1,
		SourceCommunities: 1,
		TargetRoles:       2,
		Overridden:        1,
	}, st)

	assert.Len(t, s.ForCommunity(srcA), 3)
	assert.Len(t, s.ForCommunity(srcB), 1)
	assert.Empty(t, s.ForCommunity(target))
}

func TestStoreConcurrentReadersDuringWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Snapshot()
				// A role is a target iff its source pair is present in the same snapshot.
				if snap.IsTargetRole(501) {
					_, ok := snap.TargetRoleFor(srcA, 11)
					assert.True(t, ok)
				}
			}
		}()
	}

	for range 200 {
		_, err := s.Add(ctx, mapping("m1", srcA, 11, 501))
		require.NoError(t, err)
		_, err = s.Remove(ctx, "m1")
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}
