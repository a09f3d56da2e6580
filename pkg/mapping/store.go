// Package mapping owns the role mapping table and the lookup index derived
// from it.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

// Repository is the durable side of the mapping table.
type Repository interface {
	ListMappings(ctx context.Context) ([]*models.RoleMapping, error)
	CreateMapping(ctx context.Context, m *models.RoleMapping) (string, error)
	UpdateMapping(ctx context.Context, m *models.RoleMapping) error
	DeleteMapping(ctx context.Context, id string) error
	ReplaceMappings(ctx context.Context, mappings []*models.RoleMapping) error
}

// Stats summarizes the mapping table.
type Stats struct {
	Total             int `json:"total"`
	Enabled           int `json:"enabled"`
	Disabled          int `json:"disabled"`
	SourceCommunities int `json:"source_communities"`
	TargetRoles       int `json:"target_roles"`
	Overridden        int `json:"overridden"`
}

// Store keeps the mapping list mirrored in memory and publishes an immutable
// Index built from it. Lookups are lock-free; writers are serialized and only
// publish a new snapshot after the durable write succeeded.
type Store struct {
	repo   Repository
	target uint64

	writeMu  sync.Mutex
	mappings atomic.Pointer[[]*models.RoleMapping]
	index    atomic.Pointer[Index]
	loadedAt atomic.Int64

	onLoad []func(*Index)
}

// Option configures a Store.
type Option func(*Store)

// WithTargetCommunity restricts the index to mappings feeding target.
func WithTargetCommunity(target uint64) Option {
	return func(s *Store) { s.target = target }
}

// WithLoadHook registers fn to run after every published index.
func WithLoadHook(fn func(*Index)) Option {
	return func(s *Store) { s.onLoad = append(s.onLoad, fn) }
}

// NewStore creates an empty Store. A nil repo keeps the table in memory only.
func NewStore(repo Repository, opts ...Option) *Store {
	s := &Store{repo: repo}
	for _, opt := range opts {
		opt(s)
	}
	s.publish(nil)
	return s
}

// Load atomically replaces the mapping list and the index.
func (s *Store) Load(mappings []*models.RoleMapping) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.publish(mappings)
}

// Reload re-reads every mapping from the repository and publishes a new index.
func (s *Store) Reload(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	mappings, err := s.repo.ListMappings(ctx)
	if err != nil {
		return fmt.Errorf("list mappings: %w", err)
	}
	s.publish(mappings)
	return nil
}

// Import replaces the whole durable table with mappings, then reloads.
func (s *Store) Import(ctx context.Context, mappings []*models.RoleMapping) error {
	for _, m := range mappings {
		if err := m.Validate(); err != nil {
			return err
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.repo != nil {
		if err := s.repo.ReplaceMappings(ctx, mappings); err != nil {
			return fmt.Errorf("replace mappings: %w", err)
		}
	}
	s.publish(mappings)
	return nil
}

// publish must be called with writeMu held (or during construction).
func (s *Store) publish(mappings []*models.RoleMapping) {
	list := make([]*models.RoleMapping, 0, len(mappings))
	for _, m := range mappings {
		if m != nil {
			c := *m
			list = append(list, &c)
		}
	}
	idx := BuildIndex(list, s.target)

	s.mappings.Store(&list)
	s.index.Store(idx)
	s.loadedAt.Store(time.Now().UnixNano())

	if n := len(idx.Overridden()); n > 0 {
		logger.Warn("Duplicate source role mappings, later mapping wins",
			"overridden", idx.Overridden())
	}
	logger.Debug("Mapping index published", logger.KeyMappings, idx.Len())

	for _, fn := range s.onLoad {
		fn(idx)
	}
}

// Snapshot returns the current index. Callers that need several lookups to
// agree with each other should take one snapshot and use it throughout.
func (s *Store) Snapshot() *Index {
	return s.index.Load()
}

// TargetRoleFor returns the target role mapped from a source pair.
func (s *Store) TargetRoleFor(community, role uint64) (uint64, bool) {
	return s.Snapshot().TargetRoleFor(community, role)
}

// TargetRolesFor maps pairs to the deduplicated set of target roles.
func (s *Store) TargetRolesFor(pairs []Pair) RoleSet {
	return s.Snapshot().TargetRolesFor(pairs)
}

// IsTargetRole reports whether role may be managed by reconciliation.
func (s *Store) IsTargetRole(role uint64) bool {
	return s.Snapshot().IsTargetRole(role)
}

// IsSourceRole reports whether the pair feeds an enabled mapping.
func (s *Store) IsSourceRole(community, role uint64) bool {
	return s.Snapshot().IsSourceRole(community, role)
}

// LoadedAt returns when the current index was published.
func (s *Store) LoadedAt() time.Time {
	return time.Unix(0, s.loadedAt.Load())
}

func (s *Store) list() []*models.RoleMapping {
	return *s.mappings.Load()
}

// List returns copies of every mapping, enabled or not.
func (s *Store) List() []*models.RoleMapping {
	cur := s.list()
	out := make([]*models.RoleMapping, len(cur))
	for i, m := range cur {
		c := *m
		out[i] = &c
	}
	return out
}

// Get returns a copy of the mapping with the given id.
func (s *Store) Get(id string) (*models.RoleMapping, bool) {
	for _, m := range s.list() {
		if m.ID == id {
			c := *m
			return &c, true
		}
	}
	return nil, false
}

// ForCommunity returns copies of the mappings reading from a source community.
func (s *Store) ForCommunity(community uint64) []*models.RoleMapping {
	var out []*models.RoleMapping
	for _, m := range s.list() {
		if m.SourceCommunityID == community {
			c := *m
			out = append(out, &c)
		}
	}
	return out
}

// Add persists a new mapping and rebuilds the index. An empty id gets a UUID.
// Returns models.ErrDuplicateMapping if the id is already taken.
func (s *Store) Add(ctx context.Context, m *models.RoleMapping) (*models.RoleMapping, error) {
	c := *m
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.list()
	if slices.ContainsFunc(cur, func(x *models.RoleMapping) bool { return x.ID == c.ID }) {
		return nil, models.ErrDuplicateMapping
	}

	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	if s.repo != nil {
		if _, err := s.repo.CreateMapping(ctx, &c); err != nil {
			return nil, fmt.Errorf("create mapping: %w", err)
		}
	}

	s.publish(append(slices.Clone(cur), &c))
	logger.Info("Mapping added", logger.MappingID(c.ID), "mapping", c.String())

	out := c
	return &out, nil
}

// Remove deletes a mapping and rebuilds the index. It reports false, with no
// error, when the id is unknown.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.list()
	i := slices.IndexFunc(cur, func(x *models.RoleMapping) bool { return x.ID == id })
	if i < 0 {
		return false, nil
	}

	if s.repo != nil {
		if err := s.repo.DeleteMapping(ctx, id); err != nil {
			if errors.Is(err, models.ErrMappingNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("delete mapping: %w", err)
		}
	}

	s.publish(slices.Delete(slices.Clone(cur), i, i+1))
	logger.Info("Mapping removed", logger.MappingID(id))
	return true, nil
}

// Update applies upd to a mapping and rebuilds the index. It reports false,
// with no error, when the id is unknown.
func (s *Store) Update(ctx context.Context, id string, upd models.MappingUpdate) (*models.RoleMapping, bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.list()
	i := slices.IndexFunc(cur, func(x *models.RoleMapping) bool { return x.ID == id })
	if i < 0 {
		return nil, false, nil
	}

	c := *cur[i]
	upd.Apply(&c)
	if err := c.Validate(); err != nil {
		return nil, true, err
	}
	c.UpdatedAt = time.Now()

	if s.repo != nil {
		if err := s.repo.UpdateMapping(ctx, &c); err != nil {
			if errors.Is(err, models.ErrMappingNotFound) {
				return nil, false, nil
			}
			return nil, true, fmt.Errorf("update mapping: %w", err)
		}
	}

	next := slices.Clone(cur)
	next[i] = &c
	s.publish(next)
	logger.Info("Mapping updated", logger.MappingID(id), "enabled", c.Enabled)

	out := c
	return &out, true, nil
}

// Stats summarizes the current table.
func (s *Store) Stats() Stats {
	cur := s.list()
	idx := s.Snapshot()

	st := Stats{Total: len(cur), TargetRoles: idx.targets.Len(), Overridden: len(idx.Overridden())}
	sources := make(map[uint64]struct{})
	for _, m := range cur {
		if m.Enabled {
			st.Enabled++
			sources[m.SourceCommunityID] = struct{}{}
		} else {
			st.Disabled++
		}
	}
	st.SourceCommunities = len(sources)
	return st
}
