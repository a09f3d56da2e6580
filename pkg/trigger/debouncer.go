package trigger

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
	"github.com/ambnuf14-max/saes-discord-bot/internal/telemetry"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/metrics"
)

// Defaults for DebounceConfig.
const (
	DefaultDebounceDelay = 5 * time.Second
	DefaultDrainInterval = 2 * time.Second
	DefaultDrainRate     = 2.0
)

// DebounceConfig holds the debounce window and drain pacing. The window and
// the drain interval are independent; neither is assumed larger.
type DebounceConfig struct {
	// Delay is how long a subject must stay unchanged before it is drained.
	Delay time.Duration
	// DrainInterval is the period of the drain loop.
	DrainInterval time.Duration
	// Rate limits dispatches per second within a drain; zero disables pacing.
	Rate float64
}

func (c *DebounceConfig) applyDefaults() {
	if c.Delay < 0 {
		c.Delay = 0
	}
	if c.DrainInterval <= 0 {
		c.DrainInterval = DefaultDrainInterval
	}
}

// DispatchFunc reconciles one drained subject.
type DispatchFunc func(ctx context.Context, subject uint64) error

// Debouncer implements a trailing-edge debounce per subject: each change
// pushes the subject's due time forward, and the drain loop dispatches
// subjects whose last change is at least Delay old.
type Debouncer struct {
	cfg      DebounceConfig
	queue    PendingQueue
	dispatch DispatchFunc
	limiter  *rate.Limiter
	now      func() time.Time
	metrics  *metrics.Metrics

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	stopCh  chan struct{}
	stopped chan struct{}
}

// DebouncerOption configures a Debouncer.
type DebouncerOption func(*Debouncer)

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) DebouncerOption {
	return func(d *Debouncer) { d.now = now }
}

// WithDebounceMetrics attaches metrics.
func WithDebounceMetrics(m *metrics.Metrics) DebouncerOption {
	return func(d *Debouncer) { d.metrics = m }
}

func NewDebouncer(cfg DebounceConfig, queue PendingQueue, dispatch DispatchFunc, opts ...DebouncerOption) *Debouncer {
	cfg.applyDefaults()
	if queue == nil {
		queue = NewMemoryQueue()
	}

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	d := &Debouncer{
		cfg:      cfg,
		queue:    queue,
		dispatch: dispatch,
		limiter:  rate.NewLimiter(limit, 1),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enqueue records a change for subject now, resetting its window.
func (d *Debouncer) Enqueue(ctx context.Context, subject uint64) error {
	if err := d.queue.Upsert(ctx, subject, d.now()); err != nil {
		return err
	}
	d.updatePending(ctx)
	logger.DebugCtx(ctx, "Subject queued for reconciliation", logger.Subject(subject))
	return nil
}

// Remove drops subject from the queue.
func (d *Debouncer) Remove(ctx context.Context, subject uint64) (bool, error) {
	ok, err := d.queue.Remove(ctx, subject)
	if err == nil {
		d.updatePending(ctx)
	}
	return ok, err
}

// Pending lists queued subjects, oldest change first.
func (d *Debouncer) Pending(ctx context.Context) ([]PendingEntry, error) {
	return d.queue.List(ctx)
}

// Clear empties the queue and returns how many subjects were dropped.
func (d *Debouncer) Clear(ctx context.Context) (int, error) {
	n, err := d.queue.Clear(ctx)
	if err == nil {
		d.metrics.SetPending(0)
		logger.Info("Pending queue cleared", logger.KeyPending, n)
	}
	return n, err
}

// Config returns the effective configuration.
func (d *Debouncer) Config() DebounceConfig { return d.cfg }

// Running reports whether the drain loop is active.
func (d *Debouncer) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Start launches the drain loop. Calling Start on a running Debouncer is a no-op.
// The loop ends on Stop or when ctx is cancelled.
func (d *Debouncer) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.stopCh = make(chan struct{})
	d.stopped = make(chan struct{})
	d.running = true

	go d.loop(loopCtx, d.stopCh, d.stopped)
}

// Stop ends the drain loop and waits for it. A reconciliation already
// dispatched runs to completion. Safe to call repeatedly.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopCh)
	d.cancel()
	stopped := d.stopped
	d.mu.Unlock()

	<-stopped
	logger.Debug("Debouncer stopped")
}

// Restart stops the loop if running and starts it again.
func (d *Debouncer) Restart(ctx context.Context) {
	d.Stop()
	d.Start(ctx)
}

func (d *Debouncer) loop(ctx context.Context, stopCh <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(d.cfg.DrainInterval)
	defer ticker.Stop()

	logger.Info("Debouncer started",
		"debounce_delay", d.cfg.Delay,
		"drain_interval", d.cfg.DrainInterval,
		"drain_rate", d.cfg.Rate)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Debouncer stopping (context cancelled)")
			return
		case <-stopCh:
			logger.Debug("Debouncer stopping (stop signal)")
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain dispatches every subject whose last change is at least Delay old and
// returns how many were dispatched. Each entry is removed before its dispatch;
// a failed dispatch is logged and does not hold back the rest.
func (d *Debouncer) Drain(ctx context.Context) int {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanDrain)
	defer span.End()

	dispatchCtx := context.WithoutCancel(ctx)
	var n int
	for {
		cutoff := d.now().Add(-d.cfg.Delay)
		entry, ok, err := d.queue.PopDue(ctx, cutoff)
		if err != nil {
			logger.Error("Failed to read pending queue", logger.Err(err))
			break
		}
		if !ok {
			break
		}
		if err := d.limiter.Wait(ctx); err != nil {
			// Stopped while pacing: put the entry back untouched.
			if err := d.queue.Upsert(dispatchCtx, entry.Subject, entry.ChangedAt); err != nil {
				logger.Error("Failed to requeue subject", logger.Subject(entry.Subject), logger.Err(err))
			}
			break
		}

		n++
		d.metrics.IncDrained()
		if err := d.dispatch(dispatchCtx, entry.Subject); err != nil {
			logger.Warn("Debounced reconciliation failed",
				logger.Subject(entry.Subject), logger.Err(err))
		}
		if ctx.Err() != nil {
			break
		}
	}

	if n > 0 {
		telemetry.SetAttributes(ctx, telemetry.Total(n))
		logger.Debug("Pending queue drained", logger.KeyProcessed, n)
	}
	d.updatePending(ctx)
	return n
}

func (d *Debouncer) updatePending(ctx context.Context) {
	if d.metrics == nil {
		return
	}
	if n, err := d.queue.Len(ctx); err == nil {
		d.metrics.SetPending(n)
	}
}
