package mapping

import (
	"cmp"
	"slices"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

// Index is an immutable lookup structure built from the enabled mappings.
// A new Index is built on every load; readers hold on to whichever snapshot
// they obtained and never observe a partially built one.
type Index struct {
	forward map[Pair]uint64
	// provenance keeps every source pair that feeds a target role.
	provenance  map[uint64][]Pair
	targets     RoleSet
	communities map[uint64]struct{}
	overridden  []string
}

// BuildIndex builds an Index from mappings in order. Disabled mappings are
// skipped. When target is non-zero, mappings feeding a different target
// community are skipped too. If two enabled mappings share a source pair the
// later one wins and the earlier id is reported by Overridden.
func BuildIndex(mappings []*models.RoleMapping, target uint64) *Index {
	idx := &Index{
		forward:     make(map[Pair]uint64, len(mappings)),
		provenance:  make(map[uint64][]Pair),
		targets:     make(RoleSet),
		communities: make(map[uint64]struct{}),
	}

	owner := make(map[Pair]string, len(mappings))
	for _, m := range mappings {
		if m == nil || !m.Enabled {
			continue
		}
		if target != 0 && m.TargetCommunityID != target {
			continue
		}
		p := Pair{Community: m.SourceCommunityID, Role: m.SourceRoleID}
		if prev, ok := owner[p]; ok {
			idx.overridden = append(idx.overridden, prev)
		}
		owner[p] = m.ID
		idx.forward[p] = m.TargetRoleID
		idx.communities[m.SourceCommunityID] = struct{}{}
	}

	for p, t := range idx.forward {
		idx.targets.Add(t)
		idx.provenance[t] = append(idx.provenance[t], p)
	}
	for _, ps := range idx.provenance {
		slices.SortFunc(ps, comparePairs)
	}
	return idx
}

// TargetRoleFor returns the target role for a source pair.
func (idx *Index) TargetRoleFor(community, role uint64) (uint64, bool) {
	t, ok := idx.forward[Pair{Community: community, Role: role}]
	return t, ok
}

// TargetRolesFor maps every pair through TargetRoleFor, discarding absences.
func (idx *Index) TargetRolesFor(pairs []Pair) RoleSet {
	out := make(RoleSet)
	for _, p := range pairs {
		if t, ok := idx.forward[p]; ok {
			out.Add(t)
		}
	}
	return out
}

// IsTargetRole reports whether role is produced by any enabled mapping.
func (idx *Index) IsTargetRole(role uint64) bool {
	return idx.targets.Has(role)
}

// IsSourceRole reports whether the pair feeds any enabled mapping.
func (idx *Index) IsSourceRole(community, role uint64) bool {
	_, ok := idx.forward[Pair{Community: community, Role: role}]
	return ok
}

// IsSourceCommunity reports whether any enabled mapping reads from community.
func (idx *Index) IsSourceCommunity(community uint64) bool {
	_, ok := idx.communities[community]
	return ok
}

// SourcesOf returns the observed pairs that explain why target is granted.
func (idx *Index) SourcesOf(target uint64, observed []Pair) []Pair {
	var out []Pair
	seen := make(map[Pair]struct{}, len(observed))
	for _, p := range observed {
		seen[p] = struct{}{}
	}
	for _, p := range idx.provenance[target] {
		if _, ok := seen[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of active source pairs.
func (idx *Index) Len() int { return len(idx.forward) }

// Overridden lists mapping ids shadowed by a later mapping on the same source pair.
func (idx *Index) Overridden() []string { return idx.overridden }

func comparePairs(a, b Pair) int {
	if c := cmp.Compare(a.Community, b.Community); c != 0 {
		return c
	}
	return cmp.Compare(a.Role, b.Role)
}
