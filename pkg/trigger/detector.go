package trigger

import (
	"context"
	"sync/atomic"

	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/mapping"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/metrics"
)

// Decision is what the detector did with an event.
type Decision string

const (
	DecisionQueued          Decision = "queued"
	DecisionIgnoredBot      Decision = "ignored_bot"
	DecisionIgnoredTarget   Decision = "ignored_target"
	DecisionIgnoredUnmapped Decision = "ignored_unmapped"
	DecisionDropped         Decision = "dropped_auto_disabled"
	DecisionDequeued        Decision = "dequeued"
)

// Queue is the part of Debouncer the detector writes to.
type Queue interface {
	Enqueue(ctx context.Context, subject uint64) error
	Remove(ctx context.Context, subject uint64) (bool, error)
}

// SnapshotSource provides the current mapping index.
type SnapshotSource interface {
	Snapshot() *mapping.Index
}

// Detector filters platform events and queues subjects whose change may
// affect their target community roles.
type Detector struct {
	target   uint64
	mappings SnapshotSource
	queue    Queue
	metrics  *metrics.Metrics

	dispatcher *Dispatcher
	auto       atomic.Bool
	dropped    atomic.Int64
}

// NewDetector creates a Detector with automatic reconciliation enabled.
// RoleChange and MemberLeave events are handled by the detector; other kinds
// are registered by the caller through Handle.
func NewDetector(target uint64, mappings SnapshotSource, queue Queue, m *metrics.Metrics) *Detector {
	d := &Detector{
		target:     target,
		mappings:   mappings,
		queue:      queue,
		metrics:    m,
		dispatcher: NewDispatcher(),
	}
	d.SetAutoSync(true)
	d.dispatcher.Handle(KindRoleChange, func(ctx context.Context, ev Event) error {
		_, err := d.OnRoleChange(ctx, *ev.RoleChange)
		return err
	})
	d.dispatcher.Handle(KindMemberLeave, func(ctx context.Context, ev Event) error {
		_, err := d.OnMemberLeave(ctx, *ev.Leave)
		return err
	})
	return d
}

// Handle registers a handler for an event kind, e.g. manual requests.
func (d *Detector) Handle(kind Kind, h Handler) { d.dispatcher.Handle(kind, h) }

// OnEvent routes ev through the dispatch table.
func (d *Detector) OnEvent(ctx context.Context, ev Event) error {
	return d.dispatcher.Dispatch(ctx, ev)
}

// SetAutoSync toggles automatic reconciliation. While off, qualifying
// changes are dropped and counted.
func (d *Detector) SetAutoSync(on bool) {
	if d.auto.Swap(on) != on {
		logger.Info("Automatic reconciliation toggled", "enabled", on)
	}
	d.metrics.SetAutoSyncEnabled(on)
}

// AutoSync reports whether automatic reconciliation is on.
func (d *Detector) AutoSync() bool { return d.auto.Load() }

// Dropped returns how many qualifying changes were dropped while auto sync was off.
func (d *Detector) Dropped() int64 { return d.dropped.Load() }

// Classify decides whether a role change should trigger a reconciliation,
// ignoring the auto-sync toggle.
func (d *Detector) Classify(c RoleChange) Decision {
	switch {
	case c.Bot:
		return DecisionIgnoredBot
	case c.Community == d.target:
		return DecisionIgnoredTarget
	}

	idx := d.mappings.Snapshot()
	before := mapping.NewRoleSet(c.Before...)
	after := mapping.NewRoleSet(c.After...)
	for _, changed := range [][]uint64{before.Minus(after).Sorted(), after.Minus(before).Sorted()} {
		for _, role := range changed {
			if idx.IsSourceRole(c.Community, role) {
				return DecisionQueued
			}
		}
	}
	return DecisionIgnoredUnmapped
}

// OnRoleChange applies Classify and the auto-sync toggle, queueing the
// subject when both allow it.
func (d *Detector) OnRoleChange(ctx context.Context, c RoleChange) (Decision, error) {
	dec := d.Classify(c)
	if dec == DecisionQueued && !d.AutoSync() {
		dec = DecisionDropped
		d.dropped.Add(1)
	}
	d.metrics.ObserveEvent(string(dec))

	if dec != DecisionQueued {
		logger.Debug("Role change not queued",
			logger.Subject(c.Subject), logger.Community(c.Community), "decision", dec)
		return dec, nil
	}
	if err := d.queue.Enqueue(ctx, c.Subject); err != nil {
		return dec, err
	}
	return dec, nil
}

// OnMemberLeave handles a departure. Leaving the target community drops any
// pending reconciliation; leaving a mapped source community queues one,
// since every role held there vanished.
func (d *Detector) OnMemberLeave(ctx context.Context, l MemberLeave) (Decision, error) {
	if l.Community == d.target {
		if _, err := d.queue.Remove(ctx, l.Subject); err != nil {
			return DecisionDequeued, err
		}
		d.metrics.ObserveEvent(string(DecisionDequeued))
		return DecisionDequeued, nil
	}

	dec := DecisionIgnoredUnmapped
	if d.mappings.Snapshot().IsSourceCommunity(l.Community) {
		dec = DecisionQueued
		if !d.AutoSync() {
			dec = DecisionDropped
			d.dropped.Add(1)
		}
	}
	d.metrics.ObserveEvent(string(dec))
	if dec != DecisionQueued {
		return dec, nil
	}
	return dec, d.queue.Enqueue(ctx, l.Subject)
}
