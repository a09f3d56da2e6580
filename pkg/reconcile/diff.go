package reconcile

import "github.com/ambnuf14-max/saes-discord-bot/pkg/mapping"

// Plan is the outcome of Diff. Both lists are sorted.
type Plan struct {
	ToAdd    []uint64
	ToRemove []uint64
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool { return len(p.ToAdd) == 0 && len(p.ToRemove) == 0 }

// Diff computes the roles to grant and revoke so that current converges on
// target. Only roles for which isTarget is true are ever revoked: a held role
// that no mapping produces is left alone.
func Diff(current, target mapping.RoleSet, isTarget func(uint64) bool) Plan {
	return Plan{
		ToAdd:    target.Minus(current).Sorted(),
		ToRemove: current.Minus(target).Filter(isTarget).Sorted(),
	}
}
