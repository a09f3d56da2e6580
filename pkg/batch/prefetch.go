package batch

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
	"github.com/ambnuf14-max/saes-discord-bot/internal/telemetry"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/reconcile"
)

// prefetched serves source roles from a snapshot taken at the start of a
// sweep. It implements reconcile.SourceProvider.
type prefetched struct {
	communities []uint64
	roles       map[uint64]map[uint64][]uint64 // community -> subject -> roles
	failed      map[uint64]error
}

// prefetch lists every member of every community except target with at most
// limit concurrent reads. A community that cannot be read is remembered and
// reported to every subject as a fetch error.
func prefetch(ctx context.Context, dir reconcile.Directory, target uint64, limit int) (*prefetched, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanSweepPrefetch)
	defer span.End()

	all, err := dir.Communities(ctx)
	if err != nil {
		return nil, err
	}

	p := &prefetched{
		roles:  make(map[uint64]map[uint64][]uint64, len(all)),
		failed: make(map[uint64]error),
	}
	for _, c := range all {
		if c != target {
			p.communities = append(p.communities, c)
		}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(max(limit, 1))
	for _, c := range p.communities {
		g.Go(func() error {
			members, err := dir.Members(ctx, c)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.failed[c] = err
				logger.Warn("Sweep prefetch failed", logger.Community(c), logger.Err(err))
				return nil
			}
			bySubject := make(map[uint64][]uint64, len(members))
			for _, m := range members {
				bySubject[m.ID] = m.Roles
			}
			p.roles[c] = bySubject
			return nil
		})
	}
	_ = g.Wait()

	telemetry.SetAttributes(ctx, telemetry.Total(len(p.communities)))
	return p, ctx.Err()
}

func (p *prefetched) Communities(context.Context) ([]uint64, error) {
	return slices.Clone(p.communities), nil
}

func (p *prefetched) MemberRoles(_ context.Context, community, subject uint64) ([]uint64, error) {
	if err := p.failed[community]; err != nil {
		return nil, err
	}
	roles, ok := p.roles[community][subject]
	if !ok {
		return nil, reconcile.ErrNotMember
	}
	return slices.Clone(roles), nil
}

var _ reconcile.SourceProvider = (*prefetched)(nil)
