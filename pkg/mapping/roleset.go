package mapping

import "slices"

// Pair identifies a role on a specific community.
type Pair struct {
	Community uint64
	Role      uint64
}

// RoleSet is an unordered set of role ids.
type RoleSet map[uint64]struct{}

// NewRoleSet builds a set from ids, dropping duplicates.
func NewRoleSet(ids ...uint64) RoleSet {
	s := make(RoleSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s RoleSet) Add(id uint64) { s[id] = struct{}{} }

func (s RoleSet) Has(id uint64) bool {
	_, ok := s[id]
	return ok
}

func (s RoleSet) Len() int { return len(s) }

// Minus returns the ids of s that are not in other.
func (s RoleSet) Minus(other RoleSet) RoleSet {
	out := make(RoleSet)
	for id := range s {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Filter returns the ids of s for which keep returns true.
func (s RoleSet) Filter(keep func(uint64) bool) RoleSet {
	out := make(RoleSet)
	for id := range s {
		if keep(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Sorted returns the ids in ascending order.
func (s RoleSet) Sorted() []uint64 {
	out := make([]uint64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
