// Package reconcile computes and applies the role set a subject should hold
// on the target community from the roles it holds on source communities.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
	"github.com/ambnuf14-max/saes-discord-bot/internal/telemetry"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/mapping"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/metrics"
)

// DefaultSourceConcurrency bounds concurrent source community reads.
const DefaultSourceConcurrency = 8

// Config holds reconciler settings.
type Config struct {
	// TargetCommunity is the community whose roles are managed.
	TargetCommunity uint64

	// SourceConcurrency bounds the fan-out over source communities.
	SourceConcurrency int

	// StrictRemovals makes failed or unmanageable removals count as failed
	// roles. By default they are reported in Errors only and do not affect
	// Success.
	StrictRemovals bool
}

// Deps are the collaborators of a Reconciler. Recorder, Locks and Metrics
// are optional.
type Deps struct {
	Mappings  Mappings
	Directory Directory
	Mutator   Mutator
	Oracle    Oracle
	Recorder  Recorder
	Locks     *SubjectLocks
	Metrics   *metrics.Metrics
}

// Options tune a single Reconcile call.
type Options struct {
	// DryRun computes the plan without mutating roles. The planned changes
	// are reported as RolesAdded and RolesRemoved.
	DryRun bool

	// Sources replaces the live Directory for source reads.
	Sources SourceProvider

	// Recorder replaces the default recorder for this call.
	Recorder Recorder
}

// Reconciler drives the per-subject state machine.
type Reconciler struct {
	cfg  Config
	deps Deps
	now  func() time.Time
}

// New creates a Reconciler. Mappings, Directory, Mutator and Oracle are required.
func New(cfg Config, deps Deps) (*Reconciler, error) {
	switch {
	case cfg.TargetCommunity == 0:
		return nil, errors.New("reconcile: target community is required")
	case deps.Mappings == nil:
		return nil, errors.New("reconcile: mappings are required")
	case deps.Directory == nil:
		return nil, errors.New("reconcile: directory is required")
	case deps.Mutator == nil:
		return nil, errors.New("reconcile: mutator is required")
	case deps.Oracle == nil:
		return nil, errors.New("reconcile: oracle is required")
	}
	if cfg.SourceConcurrency <= 0 {
		cfg.SourceConcurrency = DefaultSourceConcurrency
	}
	if deps.Locks == nil {
		deps.Locks = NewSubjectLocks()
	}
	return &Reconciler{cfg: cfg, deps: deps, now: time.Now}, nil
}

// TargetCommunity returns the managed community.
func (r *Reconciler) TargetCommunity() uint64 { return r.cfg.TargetCommunity }

// Locks returns the per-subject lock table shared by every caller.
func (r *Reconciler) Locks() *SubjectLocks { return r.deps.Locks }

// run carries the working state of one reconciliation.
type run struct {
	r       *Reconciler
	opts    Options
	res     *SyncResult
	idx     *mapping.Index
	current mapping.RoleSet
	target  mapping.RoleSet
	pairs   []mapping.Pair
	plan    Plan

	sourceErrors int
}

type step func(rn *run, ctx context.Context) (State, error)

var steps = map[State]step{
	StateFetchTarget:   (*run).fetchTarget,
	StateFetchSources:  (*run).fetchSources,
	StateComputeTarget: (*run).computeTarget,
	StateDiff:          (*run).diff,
	StateApply:         (*run).apply,
}

// Reconcile brings subject's target community roles in line with its source
// roles. It never returns nil: failures are reported on the result.
func (r *Reconciler) Reconcile(ctx context.Context, subject uint64, trigger Trigger, opts Options) *SyncResult {
	unlock := r.deps.Locks.Lock(subject)
	defer unlock()

	start := r.now()
	res := &SyncResult{
		SessionID:         uuid.New().String(),
		SubjectID:         subject,
		TargetCommunityID: r.cfg.TargetCommunity,
		Trigger:           trigger,
		DryRun:            opts.DryRun,
		State:             StateStart,
		Timestamp:         start.UTC(),
	}

	ctx, span := telemetry.StartReconcileSpan(ctx, subject, string(trigger), opts.DryRun)
	defer span.End()

	lc := logger.NewLogContext(subject, string(trigger)).
		WithSession(res.SessionID).
		WithCommunity(r.cfg.TargetCommunity).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	rn := &run{r: r, opts: opts, res: res, idx: r.deps.Mappings.Snapshot()}

	var err error
	state := StateFetchTarget
	for state != StateRecord {
		res.State = state
		r.enter(ctx, state)
		if err = ctx.Err(); err != nil {
			break
		}
		if state, err = steps[state](rn, ctx); err != nil {
			break
		}
	}

	if err != nil {
		rn.fail(ctx, err)
	} else {
		rn.finish()
	}
	res.Duration = r.now().Sub(start)

	r.enter(ctx, StateRecord)
	r.record(ctx, res, opts)

	final := res.State
	r.deps.Metrics.ObserveState(string(final))
	r.deps.Metrics.ObserveReconcile(string(trigger), res.Outcome(), res.Duration,
		len(res.RolesAdded), len(res.RolesRemoved), len(res.RolesFailed))
	telemetry.SetAttributes(ctx, telemetry.State(string(final)))
	telemetry.SetAttributes(ctx, telemetry.Outcome(len(res.RolesAdded), len(res.RolesRemoved), len(res.RolesFailed))...)

	logger.InfoCtx(ctx, "Reconciliation finished",
		logger.State(string(final)),
		"success", res.Success,
		logger.KeyAdded, len(res.RolesAdded),
		logger.KeyRemoved, len(res.RolesRemoved),
		logger.KeyFailed, len(res.RolesFailed),
		logger.KeyDryRun, res.DryRun,
		logger.KeyDurationMs, res.Duration.Milliseconds())

	return res
}

func (r *Reconciler) enter(ctx context.Context, s State) {
	logger.DebugCtx(ctx, "Reconcile state", logger.State(string(s)))
	telemetry.AddEvent(ctx, "state", telemetry.State(string(s)))
	r.deps.Metrics.ObserveState(string(s))
}

func (r *Reconciler) record(ctx context.Context, res *SyncResult, opts Options) {
	rec := opts.Recorder
	if rec == nil {
		rec = r.deps.Recorder
	}
	if rec == nil {
		return
	}
	// The audit row is written even when the caller went away mid-run.
	if err := rec.RecordResult(context.WithoutCancel(ctx), res); err != nil {
		r.deps.Metrics.IncPersistenceErrors()
		logger.ErrorCtx(ctx, "Failed to record sync result", logger.Err(err))
	}
}

func (rn *run) fetchTarget(ctx context.Context) (State, error) {
	r := rn.r
	target := r.cfg.TargetCommunity

	roles, err := r.deps.Directory.MemberRoles(ctx, target, rn.res.SubjectID)
	if errors.Is(err, ErrNotMember) {
		return "", ErrSubjectNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTargetUnavailable, err)
	}

	rn.current = withoutDefault(roles, target)
	rn.res.CurrentRoles = rn.current.Sorted()
	return StateFetchSources, nil
}

type sourceRead struct {
	community uint64
	roles     []uint64
	member    bool
	err       error
}

func (rn *run) fetchSources(ctx context.Context) (State, error) {
	r := rn.r
	src := rn.opts.Sources
	if src == nil {
		src = r.deps.Directory
	}

	all, err := src.Communities(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: list communities: %w", ErrSourcesUnavailable, err)
	}
	communities := slices.DeleteFunc(slices.Clone(all), func(c uint64) bool {
		return c == r.cfg.TargetCommunity
	})

	reads := make([]sourceRead, len(communities))
	var g errgroup.Group
	g.SetLimit(r.cfg.SourceConcurrency)
	for i, c := range communities {
		g.Go(func() error {
			sctx, span := telemetry.StartSourceSpan(ctx, c)
			defer span.End()

			roles, err := src.MemberRoles(sctx, c, rn.res.SubjectID)
			switch {
			case errors.Is(err, ErrNotMember):
				reads[i] = sourceRead{community: c}
			case err != nil:
				telemetry.RecordError(sctx, err)
				reads[i] = sourceRead{community: c, err: err}
			default:
				reads[i] = sourceRead{community: c, roles: roles, member: true}
			}
			return nil
		})
	}
	_ = g.Wait()

	snap := make(Snapshot)
	var responded int
	var failures []error
	for _, rd := range reads {
		if rd.err != nil {
			fe := &SourceFetchError{Community: rd.community, Err: rd.err}
			failures = append(failures, fe)
			rn.res.Errors = append(rn.res.Errors, fe.Error())
			r.deps.Metrics.IncSourceFetchErrors()
			logger.WarnCtx(ctx, "Source community read failed", logger.Community(rd.community), logger.Err(rd.err))
			continue
		}
		responded++
		if !rd.member {
			continue
		}
		roles := withoutDefault(rd.roles, rd.community).Sorted()
		if len(roles) == 0 {
			continue
		}
		snap[rd.community] = roles
		rn.res.SourceCommunities = append(rn.res.SourceCommunities, rd.community)
		rn.res.SourceRolesFound += len(roles)
	}
	rn.sourceErrors = len(failures)

	if responded == 0 && len(failures) > 0 {
		return "", fmt.Errorf("%w: %w", ErrSourcesUnavailable, errors.Join(failures...))
	}

	slices.Sort(rn.res.SourceCommunities)
	rn.res.SourceRoles = snap
	rn.pairs = snap.Pairs()
	return StateComputeTarget, nil
}

func (rn *run) computeTarget(context.Context) (State, error) {
	rn.target = rn.idx.TargetRolesFor(rn.pairs)
	rn.res.TargetRolesComputed = rn.target.Len()
	return StateDiff, nil
}

func (rn *run) diff(ctx context.Context) (State, error) {
	r := rn.r
	plan := Diff(rn.current, rn.target, rn.idx.IsTargetRole)

	toAdd, blockedAdd, err := rn.partition(ctx, plan.ToAdd)
	if err != nil {
		return "", err
	}
	toRemove, blockedRemove, err := rn.partition(ctx, plan.ToRemove)
	if err != nil {
		return "", err
	}

	for _, role := range blockedAdd {
		rn.failRole(OpAdd, role, "role is not manageable")
	}
	for _, role := range blockedRemove {
		if r.cfg.StrictRemovals {
			rn.failRole(OpRemove, role, "role is not manageable")
		} else {
			rn.res.Errors = append(rn.res.Errors, fmt.Sprintf("cannot remove role %d: not manageable", role))
		}
	}

	rn.plan = Plan{ToAdd: toAdd, ToRemove: toRemove}
	logger.DebugCtx(ctx, "Role plan computed",
		"to_add", rn.plan.ToAdd, "to_remove", rn.plan.ToRemove,
		"unmanageable", len(blockedAdd)+len(blockedRemove))
	return StateApply, nil
}

func (rn *run) partition(ctx context.Context, roles []uint64) (manageable, unmanageable []uint64, err error) {
	if len(roles) == 0 {
		return nil, nil, nil
	}
	manageable, unmanageable, err = rn.r.deps.Oracle.PartitionManageable(ctx, rn.r.cfg.TargetCommunity, roles)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: check manageable roles: %w", ErrTargetUnavailable, err)
	}
	slices.Sort(manageable)
	slices.Sort(unmanageable)
	return manageable, unmanageable, nil
}

func (rn *run) apply(ctx context.Context) (State, error) {
	r := rn.r
	if rn.opts.DryRun {
		rn.res.RolesAdded = rn.plan.ToAdd
		rn.res.RolesRemoved = rn.plan.ToRemove
		return StateRecord, nil
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanApply)
	defer span.End()

	target, subject := r.cfg.TargetCommunity, rn.res.SubjectID

	added, failedAdd := applyBulk(ctx, rn.plan.ToAdd, func(ctx context.Context, roles []uint64) error {
		return r.deps.Mutator.AddRoles(ctx, target, subject, roles)
	})
	rn.res.RolesAdded = added
	for _, role := range added {
		rn.res.Actions = append(rn.res.Actions, RoleAction{Op: OpAdd, Role: role})
		logger.InfoCtx(ctx, "Role added", logger.Role(role))
	}
	for _, f := range failedAdd {
		rn.failRole(OpAdd, f.role, f.err.Error())
		logger.ErrorCtx(ctx, "Failed to add role", logger.Role(f.role), logger.Err(f.err))
	}

	removed, failedRemove := applyBulk(ctx, rn.plan.ToRemove, func(ctx context.Context, roles []uint64) error {
		return r.deps.Mutator.RemoveRoles(ctx, target, subject, roles)
	})
	rn.res.RolesRemoved = removed
	for _, role := range removed {
		rn.res.Actions = append(rn.res.Actions, RoleAction{Op: OpRemove, Role: role})
		logger.InfoCtx(ctx, "Role removed", logger.Role(role))
	}
	for _, f := range failedRemove {
		logger.ErrorCtx(ctx, "Failed to remove role", logger.Role(f.role), logger.Err(f.err))
		if r.cfg.StrictRemovals {
			rn.failRole(OpRemove, f.role, f.err.Error())
			continue
		}
		rn.res.Actions = append(rn.res.Actions, RoleAction{Op: OpRemove, Role: f.role, Error: f.err.Error()})
		rn.res.Errors = append(rn.res.Errors, fmt.Sprintf("remove role %d: %v", f.role, f.err))
	}

	return StateRecord, nil
}

type roleFailure struct {
	role uint64
	err  error
}

// applyBulk issues one call for every role. If the bulk call is rejected it
// retries one role at a time so that each failure is attributed exactly.
func applyBulk(ctx context.Context, roles []uint64, call func(context.Context, []uint64) error) (ok []uint64, failed []roleFailure) {
	if len(roles) == 0 {
		return nil, nil
	}
	err := call(ctx, roles)
	if err == nil {
		return roles, nil
	}
	logger.WarnCtx(ctx, "Bulk role mutation rejected, retrying per role",
		logger.Roles(roles), logger.Err(err))

	for _, role := range roles {
		if err := call(ctx, []uint64{role}); err != nil {
			failed = append(failed, roleFailure{role: role, err: err})
			continue
		}
		ok = append(ok, role)
	}
	return ok, failed
}

func (rn *run) failRole(op Op, role uint64, msg string) {
	if !slices.Contains(rn.res.RolesFailed, role) {
		rn.res.RolesFailed = append(rn.res.RolesFailed, role)
	}
	rn.res.Actions = append(rn.res.Actions, RoleAction{Op: op, Role: role, Error: msg})
	rn.res.Errors = append(rn.res.Errors, fmt.Sprintf("%s role %d: %s", op, role, msg))
}

func (rn *run) fail(ctx context.Context, err error) {
	res := rn.res
	kind := ErrorKind(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = KindCanceled
	}

	logger.WarnCtx(ctx, "Reconciliation failed",
		logger.State(string(res.State)), logger.KeyErrorKind, kind, logger.Err(err))
	telemetry.RecordError(ctx, err)
	telemetry.SetAttributes(ctx, telemetry.ErrorKind(kind))

	res.State = StateFailed
	res.Success = false
	res.ErrorKind = kind
	res.Errors = append(res.Errors, err.Error())
}

func (rn *run) finish() {
	res := rn.res
	slices.Sort(res.RolesFailed)
	res.State = StateDone
	res.Success = len(res.RolesFailed) == 0 && rn.sourceErrors == 0

	switch {
	case len(res.RolesFailed) > 0:
		res.ErrorKind = KindPartialFailure
	case rn.sourceErrors > 0:
		res.ErrorKind = KindSourceFetch
	}

	// Provenance covers every mapped role the subject holds after apply.
	if !res.DryRun {
		held := make(mapping.RoleSet)
		for role := range rn.current {
			if rn.target.Has(role) {
				held.Add(role)
			}
		}
		for _, role := range res.RolesAdded {
			held.Add(role)
		}
		res.Provenance = make(map[uint64][]mapping.Pair, held.Len())
		for role := range held {
			res.Provenance[role] = rn.idx.SourcesOf(role, rn.pairs)
		}
	}
}

// withoutDefault drops the default role, whose id equals the community id.
func withoutDefault(roles []uint64, community uint64) mapping.RoleSet {
	set := make(mapping.RoleSet, len(roles))
	for _, r := range roles {
		if r != community {
			set.Add(r)
		}
	}
	return set
}
