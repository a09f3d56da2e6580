// Package runtime wires the mapping store, the reconciler, the change
// detector and the batch coordinator around one control plane store, and
// owns their background loops.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/batch"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/store"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/mapping"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/metrics"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/reconcile"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/trigger"
)

// DefaultShutdownTimeout bounds graceful shutdown of the API server.
const DefaultShutdownTimeout = 30 * time.Second

// ErrShuttingDown is returned by StartSweep once shutdown has begun.
var ErrShuttingDown = errors.New("runtime is shutting down")

// Platform is everything the runtime needs from the chat platform.
type Platform interface {
	reconcile.Directory
	reconcile.Mutator
	reconcile.Oracle
}

// EventSource delivers platform notifications. Start returns once the
// connection is open; events are then passed to sink until Close.
type EventSource interface {
	Start(ctx context.Context, sink func(ctx context.Context, ev trigger.Event)) error
	Close() error
}

// AuxiliaryServer is an HTTP server managed alongside the bot.
type AuxiliaryServer interface {
	// Start blocks until ctx is cancelled or the server fails.
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Port() int
}

// Config contains the runtime settings. It mirrors the relevant parts of
// pkg/config without importing it.
type Config struct {
	TargetCommunity uint64

	// AutoSyncDefault applies when the auto-sync setting was never stored.
	AutoSyncDefault bool

	Reconcile reconcile.Config
	Debounce  trigger.DebounceConfig
	Batch     batch.Config

	// SweepInterval runs a periodic full sweep. Zero disables it.
	SweepInterval time.Duration

	// MappingFile is imported on startup when set.
	MappingFile   string
	WatchMappings bool

	SettingsPollInterval time.Duration
	ShutdownTimeout      time.Duration
}

// Runtime holds the long-lived components of a running bot.
type Runtime struct {
	cfg      Config
	store    store.Store
	platform Platform
	metrics  *metrics.Metrics
	events   EventSource

	mappings   *mapping.Store
	reconciler *reconcile.Reconciler
	debouncer  *trigger.Debouncer
	detector   *trigger.Detector
	batch      *batch.Coordinator

	settingsWatcher *SettingsWatcher
	fileWatcher     *mapping.FileWatcher
	apiServer       AuxiliaryServer

	// sweeps tracks background sweeps so shutdown can wait for them. New
	// sweeps are refused once closing is set; sweepCtx is cancelled on
	// shutdown so running sweeps stop at the next subject boundary.
	sweepMu     sync.Mutex
	sweeps      sync.WaitGroup
	closing     bool
	sweepCtx    context.Context
	sweepCancel context.CancelFunc

	serveOnce sync.Once
}

// Option configures a Runtime.
type Option func(*options)

type options struct {
	queue   trigger.PendingQueue
	metrics *metrics.Metrics
	events  EventSource
}

// WithQueue replaces the in-memory pending queue.
func WithQueue(q trigger.PendingQueue) Option {
	return func(o *options) { o.queue = q }
}

// WithMetrics attaches Prometheus metrics to every component.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithEventSource connects the platform gateway.
func WithEventSource(es EventSource) Option {
	return func(o *options) { o.events = es }
}

// New builds a Runtime. s is the control plane store and p the platform
// client; neither may be nil.
func New(cfg Config, s store.Store, p Platform, opts ...Option) (*Runtime, error) {
	if s == nil || p == nil {
		return nil, errors.New("runtime: store and platform are required")
	}
	if cfg.TargetCommunity == 0 {
		return nil, errors.New("runtime: target community is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r := &Runtime{
		cfg:      cfg,
		store:    s,
		platform: p,
		metrics:  o.metrics,
		events:   o.events,
	}
	r.sweepCtx, r.sweepCancel = context.WithCancel(context.Background())

	r.mappings = mapping.NewStore(s,
		mapping.WithTargetCommunity(cfg.TargetCommunity),
		mapping.WithLoadHook(r.onMappingsLoaded))

	cfg.Reconcile.TargetCommunity = cfg.TargetCommunity
	rec, err := reconcile.New(cfg.Reconcile, reconcile.Deps{
		Mappings:  r.mappings,
		Directory: p,
		Mutator:   p,
		Oracle:    p,
		Recorder:  reconcile.NewStoreRecorder(s),
		Metrics:   o.metrics,
	})
	if err != nil {
		return nil, err
	}
	r.reconciler = rec

	r.debouncer = trigger.NewDebouncer(cfg.Debounce, o.queue, r.dispatchAuto,
		trigger.WithDebounceMetrics(o.metrics))

	r.detector = trigger.NewDetector(cfg.TargetCommunity, r.mappings, r.debouncer, o.metrics)
	r.detector.SetAutoSync(cfg.AutoSyncDefault)
	r.detector.Handle(trigger.KindManualRequest, r.onManualRequest)
	r.detector.Handle(trigger.KindSweepRequest, r.onSweepRequest)

	r.batch = batch.NewCoordinator(cfg.Batch, rec, p, s, o.metrics)

	r.settingsWatcher = NewSettingsWatcher(s, cfg.SettingsPollInterval, r.detector, cfg.AutoSyncDefault)

	if cfg.MappingFile != "" && cfg.WatchMappings {
		r.fileWatcher = mapping.NewFileWatcher(cfg.MappingFile, r.mappings, mapping.DefaultFileSettle)
	}

	return r, nil
}

// Store returns the control plane store.
func (r *Runtime) Store() store.Store { return r.store }

// Mappings returns the mapping store.
func (r *Runtime) Mappings() *mapping.Store { return r.mappings }

// Reconciler returns the reconciler.
func (r *Runtime) Reconciler() *reconcile.Reconciler { return r.reconciler }

// Debouncer returns the pending queue front-end.
func (r *Runtime) Debouncer() *trigger.Debouncer { return r.debouncer }

// Detector returns the change detector.
func (r *Runtime) Detector() *trigger.Detector { return r.detector }

// Batch returns the sweep coordinator.
func (r *Runtime) Batch() *batch.Coordinator { return r.batch }

// TargetCommunity returns the managed community.
func (r *Runtime) TargetCommunity() uint64 { return r.cfg.TargetCommunity }

// SetAPIServer registers the API server started by Serve.
func (r *Runtime) SetAPIServer(s AuxiliaryServer) { r.apiServer = s }

// LoadMappings reads the mapping table from the store and, when configured,
// imports the mapping file over it.
func (r *Runtime) LoadMappings(ctx context.Context) error {
	if r.cfg.MappingFile != "" {
		mappings, err := mapping.ReadFile(r.cfg.MappingFile)
		if err != nil {
			return err
		}
		if err := r.mappings.Import(ctx, mappings); err != nil {
			return fmt.Errorf("import %s: %w", r.cfg.MappingFile, err)
		}
		logger.Info("Mappings imported", logger.KeyPath, r.cfg.MappingFile, logger.KeyMappings, len(mappings))
		return nil
	}
	return r.mappings.Reload(ctx)
}

// Reconcile runs one reconciliation outside the debounce path.
func (r *Runtime) Reconcile(ctx context.Context, subject uint64, trig reconcile.Trigger, dryRun bool) *reconcile.SyncResult {
	if trig == "" {
		trig = reconcile.TriggerManual
	}
	// A queued change for this subject is covered by this run.
	if !dryRun {
		if _, err := r.debouncer.Remove(ctx, subject); err != nil {
			logger.Warn("Failed to dequeue subject", logger.Subject(subject), logger.Err(err))
		}
	}
	return r.reconciler.Reconcile(ctx, subject, trig, reconcile.Options{DryRun: dryRun})
}

// Sweep runs a full sweep and blocks until it ends.
func (r *Runtime) Sweep(ctx context.Context, progress batch.ProgressFunc) (batch.Stats, error) {
	return r.batch.ReconcileAll(ctx, r.cfg.TargetCommunity, progress)
}

// StartSweep runs a full sweep in the background. It fails fast when sweeps
// are disabled, one is already running, or the runtime is shutting down.
// The sweep outlives the caller's ctx and stops on shutdown.
func (r *Runtime) StartSweep(_ context.Context, requestedBy string) error {
	if !r.batch.Enabled() {
		return batch.ErrBatchDisabled
	}

	r.sweepMu.Lock()
	defer r.sweepMu.Unlock()
	if r.closing {
		return ErrShuttingDown
	}
	if r.batch.Running() {
		return batch.ErrSweepRunning
	}

	ctx := r.sweepCtx
	r.sweeps.Add(1)
	go func() {
		defer r.sweeps.Done()
		logger.Info("Sweep requested", "requested_by", requestedBy)
		if _, err := r.Sweep(ctx, logProgress); err != nil {
			logger.Warn("Sweep did not complete", logger.Err(err))
		}
	}()
	return nil
}

// AutoSync reports whether change-triggered reconciliation is on.
func (r *Runtime) AutoSync() bool { return r.detector.AutoSync() }

// SetAutoSync persists the toggle and applies it immediately.
func (r *Runtime) SetAutoSync(ctx context.Context, on bool) error {
	if err := r.store.SetSetting(ctx, models.SettingAutoSyncEnabled, fmt.Sprint(on)); err != nil {
		return err
	}
	r.detector.SetAutoSync(on)
	return nil
}

// Pending lists the debounce queue.
func (r *Runtime) Pending(ctx context.Context) ([]trigger.PendingEntry, error) {
	return r.debouncer.Pending(ctx)
}

// ClearQueue drops every pending subject.
func (r *Runtime) ClearQueue(ctx context.Context) (int, error) {
	return r.debouncer.Clear(ctx)
}

// HandleEvent routes a platform event through the detector. Errors are
// logged; the gateway has nobody to return them to.
func (r *Runtime) HandleEvent(ctx context.Context, ev trigger.Event) {
	if err := r.detector.OnEvent(ctx, ev); err != nil {
		logger.WarnCtx(ctx, "Event handling failed", "kind", ev.Kind.String(), logger.Err(err))
	}
}

// Serve loads mappings, starts every background loop and blocks until ctx is
// cancelled or the API server fails. It can only be called once.
func (r *Runtime) Serve(ctx context.Context) error {
	err := errors.New("runtime: Serve called twice")
	r.serveOnce.Do(func() {
		// Sweeps are refused after Serve returns, including on a startup
		// failure that never reached shutdown.
		defer r.stopSweeps()
		err = r.serve(ctx)
	})
	return err
}

// stopSweeps refuses new sweeps and cancels the running one.
func (r *Runtime) stopSweeps() {
	r.sweepMu.Lock()
	defer r.sweepMu.Unlock()
	r.closing = true
	r.sweepCancel()
}

func (r *Runtime) serve(ctx context.Context) error {
	logger.Info("Starting rolesync runtime", logger.Community(r.cfg.TargetCommunity))

	if err := r.LoadMappings(ctx); err != nil {
		return fmt.Errorf("failed to load mappings: %w", err)
	}

	if err := r.settingsWatcher.LoadInitial(ctx); err != nil {
		logger.Warn("Failed to load initial settings", logger.Err(err))
	}
	r.settingsWatcher.Start(ctx)

	if r.fileWatcher != nil {
		if err := r.fileWatcher.Start(ctx); err != nil {
			logger.Warn("Mapping file watcher not started", logger.Err(err))
		}
	}

	r.debouncer.Start(ctx)

	if r.events != nil {
		if err := r.events.Start(ctx, r.HandleEvent); err != nil {
			r.shutdown()
			return fmt.Errorf("failed to open platform gateway: %w", err)
		}
	}

	sweepStop := make(chan struct{})
	sweepDone := make(chan struct{})
	go r.sweepLoop(ctx, sweepStop, sweepDone)

	apiErrChan := make(chan error, 1)
	if r.apiServer != nil {
		go func() {
			if err := r.apiServer.Start(ctx); err != nil {
				logger.Error("API server error", logger.Err(err))
				apiErrChan <- err
			}
		}()
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", "reason", ctx.Err())
		shutdownErr = ctx.Err()
	case err := <-apiErrChan:
		logger.Error("API server failed - initiating shutdown", logger.Err(err))
		shutdownErr = fmt.Errorf("API server error: %w", err)
	}

	close(sweepStop)
	<-sweepDone
	r.shutdown()

	logger.Info("rolesync runtime stopped")
	return shutdownErr
}

// shutdown stops intake first, then the drain, then waits for work in flight.
func (r *Runtime) shutdown() {
	r.stopSweeps()

	if r.apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
		if err := r.apiServer.Stop(ctx); err != nil {
			logger.Warn("Error stopping API server", logger.Err(err))
		}
		cancel()
	}
	if r.events != nil {
		if err := r.events.Close(); err != nil {
			logger.Warn("Error closing platform gateway", logger.Err(err))
		}
	}
	if r.fileWatcher != nil {
		r.fileWatcher.Stop()
	}
	r.settingsWatcher.Stop()
	r.debouncer.Stop()
	r.sweeps.Wait()
}

// sweepLoop runs a full sweep every SweepInterval until stopped.
func (r *Runtime) sweepLoop(ctx context.Context, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if r.cfg.SweepInterval <= 0 {
		return
	}

	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	logger.Info("Periodic sweep enabled", "interval", r.cfg.SweepInterval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if err := r.StartSweep(ctx, "schedule"); err != nil {
				logger.Debug("Scheduled sweep skipped", logger.Err(err))
			}
		}
	}
}

// dispatchAuto is the debouncer's dispatch function.
func (r *Runtime) dispatchAuto(ctx context.Context, subject uint64) error {
	res := r.reconciler.Reconcile(ctx, subject, reconcile.TriggerAuto, reconcile.Options{})
	if res.Success || res.ErrorKind == reconcile.KindSubjectNotFound {
		return nil
	}
	return fmt.Errorf("reconcile %d: %s", subject, res.ErrorKind)
}

func (r *Runtime) onManualRequest(ctx context.Context, ev trigger.Event) error {
	m := ev.Manual
	res := r.Reconcile(ctx, m.Subject, reconcile.TriggerManual, m.DryRun)
	logger.InfoCtx(ctx, "Manual reconciliation handled",
		logger.Subject(m.Subject), "requested_by", m.RequestedBy, "success", res.Success)
	return nil
}

func (r *Runtime) onSweepRequest(ctx context.Context, ev trigger.Event) error {
	return r.StartSweep(ctx, ev.Sweep.RequestedBy)
}

func (r *Runtime) onMappingsLoaded(_ *mapping.Index) {
	// Runs once from mapping.NewStore, before r.mappings is set.
	if r.mappings == nil {
		return
	}
	st := r.mappings.Stats()
	r.metrics.SetMappings(st.Enabled, st.Disabled)
}

func logProgress(processed, total int, stats batch.Stats) {
	logger.Info("Sweep progress",
		logger.KeyProcessed, processed,
		logger.KeyTotal, total,
		logger.KeyFailed, stats.Failed)
}
