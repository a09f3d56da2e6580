// Package fake is an in-memory platform used by tests and local dry runs.
// It implements reconcile.Directory, reconcile.Mutator and reconcile.Oracle.
package fake

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/reconcile"
)

type member struct {
	bot   bool
	roles map[uint64]struct{}
}

// Platform holds communities, their members and failure injections.
type Platform struct {
	mu          sync.Mutex
	communities map[uint64]map[uint64]*member

	fetchErr     map[uint64]error
	listErr      error
	unmanageable map[uint64]struct{}
	forbidden    map[uint64]struct{}
	oracleErr    error

	addCalls    [][]uint64
	removeCalls [][]uint64
	reads       map[uint64]int
}

func New() *Platform {
	return &Platform{
		communities:  make(map[uint64]map[uint64]*member),
		fetchErr:     make(map[uint64]error),
		unmanageable: make(map[uint64]struct{}),
		forbidden:    make(map[uint64]struct{}),
		reads:        make(map[uint64]int),
	}
}

// AddCommunity registers an empty community.
func (p *Platform) AddCommunity(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.communities[id]; !ok {
		p.communities[id] = make(map[uint64]*member)
	}
}

// SetMember places subject on community holding roles, replacing any
// previous role set.
func (p *Platform) SetMember(community, subject uint64, roles ...uint64) {
	p.setMember(community, subject, false, roles)
}

// SetBot places a bot account on community.
func (p *Platform) SetBot(community, subject uint64, roles ...uint64) {
	p.setMember(community, subject, true, roles)
}

func (p *Platform) setMember(community, subject uint64, bot bool, roles []uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.communities[community]
	if !ok {
		c = make(map[uint64]*member)
		p.communities[community] = c
	}
	m := &member{bot: bot, roles: make(map[uint64]struct{}, len(roles))}
	for _, r := range roles {
		m.roles[r] = struct{}{}
	}
	c[subject] = m
}

// RemoveMember takes subject off community.
func (p *Platform) RemoveMember(community, subject uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.communities[community], subject)
}

// FailCommunity makes reads of community return err. A nil err clears it.
func (p *Platform) FailCommunity(community uint64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.fetchErr, community)
		return
	}
	p.fetchErr[community] = err
}

// FailCommunityList makes Communities return err.
func (p *Platform) FailCommunityList(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listErr = err
}

// SetUnmanageable marks roles the oracle refuses.
func (p *Platform) SetUnmanageable(roles ...uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range roles {
		p.unmanageable[r] = struct{}{}
	}
}

// SetForbidden marks roles whose mutation is rejected although the oracle
// reports them manageable.
func (p *Platform) SetForbidden(roles ...uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range roles {
		p.forbidden[r] = struct{}{}
	}
}

// FailOracle makes PartitionManageable return err.
func (p *Platform) FailOracle(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.oracleErr = err
}

// Roles returns subject's sorted roles on community.
func (p *Platform) Roles(community, subject uint64) []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.communities[community][subject]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(m.roles))
}

// AddCalls returns the role lists passed to AddRoles.
func (p *Platform) AddCalls() [][]uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.addCalls)
}

// RemoveCalls returns the role lists passed to RemoveRoles.
func (p *Platform) RemoveCalls() [][]uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.removeCalls)
}

// Reads returns how many MemberRoles calls hit community.
func (p *Platform) Reads(community uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads[community]
}

func (p *Platform) Communities(context.Context) ([]uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	return slices.Sorted(maps.Keys(p.communities)), nil
}

func (p *Platform) MemberRoles(ctx context.Context, community, subject uint64) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads[community]++
	if err := p.fetchErr[community]; err != nil {
		return nil, err
	}
	c, ok := p.communities[community]
	if !ok {
		return nil, fmt.Errorf("unknown community %d", community)
	}
	m, ok := c[subject]
	if !ok {
		return nil, reconcile.ErrNotMember
	}
	// The default role is always present, as on the real platform.
	return append(slices.Sorted(maps.Keys(m.roles)), community), nil
}

func (p *Platform) Members(ctx context.Context, community uint64) ([]reconcile.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fetchErr[community]; err != nil {
		return nil, err
	}
	c, ok := p.communities[community]
	if !ok {
		return nil, fmt.Errorf("unknown community %d", community)
	}
	out := make([]reconcile.Member, 0, len(c))
	for _, id := range slices.Sorted(maps.Keys(c)) {
		m := c[id]
		out = append(out, reconcile.Member{
			ID:    id,
			Bot:   m.bot,
			Roles: append(slices.Sorted(maps.Keys(m.roles)), community),
		})
	}
	return out, nil
}

func (p *Platform) AddRoles(_ context.Context, community, subject uint64, roles []uint64) error {
	return p.mutate(community, subject, roles, true)
}

func (p *Platform) RemoveRoles(_ context.Context, community, subject uint64, roles []uint64) error {
	return p.mutate(community, subject, roles, false)
}

// mutate rejects the whole call if any role is forbidden, like a platform
// that validates a member update before applying it.
func (p *Platform) mutate(community, subject uint64, roles []uint64, add bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if add {
		p.addCalls = append(p.addCalls, slices.Clone(roles))
	} else {
		p.removeCalls = append(p.removeCalls, slices.Clone(roles))
	}

	var rejected []uint64
	for _, r := range roles {
		if _, ok := p.forbidden[r]; ok {
			rejected = append(rejected, r)
		}
	}
	if len(rejected) > 0 {
		return &reconcile.PartialFailure{Roles: rejected, Err: reconcile.ErrRoleMutationForbidden}
	}

	m, ok := p.communities[community][subject]
	if !ok {
		return reconcile.ErrNotMember
	}
	for _, r := range roles {
		if add {
			m.roles[r] = struct{}{}
		} else {
			delete(m.roles, r)
		}
	}
	return nil
}

func (p *Platform) PartitionManageable(_ context.Context, community uint64, roles []uint64) (manageable, unmanageable []uint64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.oracleErr != nil {
		return nil, nil, p.oracleErr
	}
	for _, r := range roles {
		if _, ok := p.unmanageable[r]; ok || r == community {
			unmanageable = append(unmanageable, r)
			continue
		}
		manageable = append(manageable, r)
	}
	return manageable, unmanageable, nil
}

var (
	_ reconcile.Directory = (*Platform)(nil)
	_ reconcile.Mutator   = (*Platform)(nil)
	_ reconcile.Oracle    = (*Platform)(nil)
)
