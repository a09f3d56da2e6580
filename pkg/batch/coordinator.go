package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
	"github.com/ambnuf14-max/saes-discord-bot/internal/telemetry"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/metrics"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/reconcile"
)

var (
	// ErrBatchDisabled is returned when sweeps are turned off.
	ErrBatchDisabled = errors.New("batch reconciliation is disabled")
	// ErrSweepRunning is returned when a sweep is already in progress.
	ErrSweepRunning = errors.New("a sweep is already running")
	// ErrWrongTarget is returned when asked to sweep a community the
	// reconciler does not manage.
	ErrWrongTarget = errors.New("community is not the managed target")
)

// Defaults for Config.
const (
	DefaultFlushThreshold      = 50
	DefaultProgressEvery       = 10
	DefaultInterSubjectDelay   = 500 * time.Millisecond
	DefaultPrefetchConcurrency = 4
)

// Config controls sweep pacing and persistence batching.
type Config struct {
	Enabled bool
	// FlushThreshold is the number of buffered results that triggers a flush.
	FlushThreshold int
	// ProgressEvery is how many subjects pass between progress callbacks.
	ProgressEvery int
	// InterSubjectDelay is waited after each subject whose roles changed.
	InterSubjectDelay time.Duration
	// PrefetchConcurrency bounds the parallel source community reads.
	PrefetchConcurrency int
}

// DefaultConfig returns a Config with batching enabled.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		FlushThreshold:      DefaultFlushThreshold,
		ProgressEvery:       DefaultProgressEvery,
		InterSubjectDelay:   DefaultInterSubjectDelay,
		PrefetchConcurrency: DefaultPrefetchConcurrency,
	}
}

func (c *Config) applyDefaults() {
	if c.FlushThreshold <= 0 {
		c.FlushThreshold = DefaultFlushThreshold
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = DefaultProgressEvery
	}
	if c.InterSubjectDelay < 0 {
		c.InterSubjectDelay = 0
	}
	if c.PrefetchConcurrency <= 0 {
		c.PrefetchConcurrency = DefaultPrefetchConcurrency
	}
}

// Stats summarizes one sweep.
type Stats struct {
	Total     int           `json:"total"`
	Success   int           `json:"success"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	NoChanges int           `json:"no_changes"`
	DBErrors  int           `json:"db_errors"`
	Duration  time.Duration `json:"duration"`
}

// Processed is the number of subjects handled so far.
func (s Stats) Processed() int {
	return s.Success + s.Failed + s.Skipped + s.NoChanges
}

// ProgressFunc is called every Config.ProgressEvery subjects and once at the end.
type ProgressFunc func(processed, total int, stats Stats)

// Flusher persists buffered results in one transaction.
type Flusher interface {
	FlushBatch(ctx context.Context, recs []*models.SyncRecord) error
}

// Coordinator drives the reconciler over every target community member.
type Coordinator struct {
	cfg        Config
	reconciler *reconcile.Reconciler
	directory  reconcile.Directory
	flusher    Flusher
	metrics    *metrics.Metrics

	// sleep waits between subjects; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	enabled atomic.Bool
	running atomic.Bool
}

// NewCoordinator creates a Coordinator. m may be nil.
func NewCoordinator(cfg Config, rec *reconcile.Reconciler, dir reconcile.Directory, flusher Flusher, m *metrics.Metrics) *Coordinator {
	cfg.applyDefaults()
	c := &Coordinator{
		cfg:        cfg,
		reconciler: rec,
		directory:  dir,
		flusher:    flusher,
		metrics:    m,
		sleep:      sleepCtx,
	}
	c.enabled.Store(cfg.Enabled)
	return c
}

// SetEnabled turns sweeps on or off at runtime.
func (c *Coordinator) SetEnabled(on bool) { c.enabled.Store(on) }

// Enabled reports whether sweeps are allowed.
func (c *Coordinator) Enabled() bool { return c.enabled.Load() }

// Running reports whether a sweep is in progress.
func (c *Coordinator) Running() bool { return c.running.Load() }

// ReconcileAll reconciles every non-bot member of target. Per-subject failures
// and flush failures are counted in Stats; an error is returned only when the
// sweep cannot start or ctx is cancelled, in which case the Stats gathered so
// far are still returned.
func (c *Coordinator) ReconcileAll(ctx context.Context, target uint64, progress ProgressFunc) (Stats, error) {
	var stats Stats
	if !c.Enabled() {
		return stats, ErrBatchDisabled
	}
	if target == 0 {
		target = c.reconciler.TargetCommunity()
	}
	if target != c.reconciler.TargetCommunity() {
		return stats, fmt.Errorf("%w: %d", ErrWrongTarget, target)
	}
	if !c.running.CompareAndSwap(false, true) {
		return stats, ErrSweepRunning
	}
	defer c.running.Store(false)

	start := time.Now()
	ctx, span := telemetry.StartSweepSpan(ctx, target)
	defer span.End()

	defer func() {
		stats.Duration = time.Since(start)
		c.metrics.ObserveSweep(stats.Duration)
	}()

	members, err := c.directory.Members(ctx, target)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return stats, fmt.Errorf("%w: %w", reconcile.ErrTargetUnavailable, err)
	}
	subjects := make([]uint64, 0, len(members))
	for _, m := range members {
		if !m.Bot {
			subjects = append(subjects, m.ID)
		}
	}
	stats.Total = len(subjects)

	logger.Info("Sweep started", logger.Community(target), logger.KeyTotal, stats.Total)

	sources, err := prefetch(ctx, c.directory, target, c.cfg.PrefetchConcurrency)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return stats, fmt.Errorf("%w: %w", reconcile.ErrSourcesUnavailable, err)
	}

	buf := &buffer{}
	opts := reconcile.Options{Sources: sources, Recorder: buf}

	for i, subject := range subjects {
		if err := ctx.Err(); err != nil {
			c.flush(ctx, buf, &stats)
			return stats, err
		}

		// Cancellation stops the sweep between subjects; the current one
		// runs to completion.
		res := c.reconciler.Reconcile(context.WithoutCancel(ctx), subject, reconcile.TriggerSweep, opts)
		outcome := res.Outcome()
		switch outcome {
		case metrics.OutcomeSuccess:
			stats.Success++
		case metrics.OutcomeNoChanges:
			stats.NoChanges++
		case metrics.OutcomeSkipped:
			stats.Skipped++
		default:
			stats.Failed++
		}
		c.metrics.ObserveSweepSubject(outcome)

		if buf.Len() >= c.cfg.FlushThreshold {
			c.flush(ctx, buf, &stats)
		}
		if progress != nil && (i+1)%c.cfg.ProgressEvery == 0 && i+1 < len(subjects) {
			progress(i+1, stats.Total, stats)
		}
		if res.Changed() && c.cfg.InterSubjectDelay > 0 && i+1 < len(subjects) {
			if err := c.sleep(ctx, c.cfg.InterSubjectDelay); err != nil {
				c.flush(ctx, buf, &stats)
				return stats, err
			}
		}
	}

	c.flush(ctx, buf, &stats)
	if progress != nil {
		progress(stats.Processed(), stats.Total, stats)
	}

	telemetry.SetAttributes(ctx, telemetry.Total(stats.Total))
	logger.Info("Sweep finished",
		logger.Community(target),
		logger.KeyTotal, stats.Total,
		"success", stats.Success,
		"no_changes", stats.NoChanges,
		"skipped", stats.Skipped,
		logger.KeyFailed, stats.Failed,
		"db_errors", stats.DBErrors,
		logger.DurationMs(start))
	return stats, nil
}

// flush writes the buffered records. The buffer is emptied either way so a
// persistent database failure does not grow it without bound.
func (c *Coordinator) flush(ctx context.Context, buf *buffer, stats *Stats) {
	recs := buf.Take()
	if len(recs) == 0 {
		return
	}

	// Results gathered before a cancellation are still written.
	ctx, span := telemetry.StartFlushSpan(context.WithoutCancel(ctx), len(recs))
	defer span.End()

	if err := c.flusher.FlushBatch(ctx, recs); err != nil {
		stats.DBErrors++
		c.metrics.IncSweepDBErrors()
		telemetry.RecordError(ctx, err)
		logger.Error("Failed to flush sweep results", logger.KeyTotal, len(recs), logger.Err(err))
		return
	}
	logger.Debug("Sweep results flushed", logger.KeyTotal, len(recs))
}

// buffer is the Recorder used during a sweep.
type buffer struct {
	mu   sync.Mutex
	recs []*models.SyncRecord
}

func (b *buffer) RecordResult(_ context.Context, res *reconcile.SyncResult) error {
	rec := reconcile.BuildRecord(res)
	b.mu.Lock()
	b.recs = append(b.recs, rec)
	b.mu.Unlock()
	return nil
}

func (b *buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.recs)
}

func (b *buffer) Take() []*models.SyncRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	recs := b.recs
	b.recs = nil
	return recs
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
