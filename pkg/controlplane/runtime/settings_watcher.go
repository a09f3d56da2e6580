package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/store"
)

// DefaultPollInterval is the default interval for polling the DB for settings changes.
const DefaultPollInterval = 10 * time.Second

// AutoSyncToggle receives the auto-sync setting.
type AutoSyncToggle interface {
	AutoSync() bool
	SetAutoSync(on bool)
}

// SettingsWatcher polls runtime settings from the database and applies them.
//
// The auto-sync toggle can be flipped by another process sharing the
// database (the CLI, a second API replica), so it is re-read every
// pollInterval rather than only when changed through this process.
type SettingsWatcher struct {
	store  store.SettingsStore
	toggle AutoSyncToggle
	def    bool

	pollInterval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	stopped chan struct{} // closed when polling goroutine exits
}

// NewSettingsWatcher creates a SettingsWatcher. def is used while the setting
// has never been stored. If pollInterval is 0, DefaultPollInterval is used.
func NewSettingsWatcher(s store.SettingsStore, pollInterval time.Duration, toggle AutoSyncToggle, def bool) *SettingsWatcher {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &SettingsWatcher{
		store:        s,
		toggle:       toggle,
		def:          def,
		pollInterval: pollInterval,
	}
}

// LoadInitial applies the stored settings once before serving begins.
func (w *SettingsWatcher) LoadInitial(ctx context.Context) error {
	return w.poll(ctx)
}

// Start begins the background polling goroutine. It runs until Stop is called
// or ctx is cancelled. Calling Start twice is a no-op.
func (w *SettingsWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.stopped = make(chan struct{})

	go func(stopCh <-chan struct{}, stopped chan<- struct{}) {
		defer close(stopped)

		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()

		logger.Info("Settings watcher started", "poll_interval", w.pollInterval)

		for {
			select {
			case <-ctx.Done():
				logger.Debug("Settings watcher stopping (context cancelled)")
				return
			case <-stopCh:
				logger.Debug("Settings watcher stopping (stop signal)")
				return
			case <-ticker.C:
				if err := w.poll(ctx); err != nil {
					logger.Warn("Settings watcher: failed to poll settings", logger.Err(err))
				}
			}
		}
	}(w.stopCh, w.stopped)
}

// Stop signals the polling goroutine to stop and waits for it to exit.
func (w *SettingsWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	stopped := w.stopped
	w.mu.Unlock()

	<-stopped
	logger.Debug("Settings watcher stopped")
}

// poll reads the auto-sync setting and applies it when it differs.
func (w *SettingsWatcher) poll(ctx context.Context) error {
	on, _, err := store.GetBoolSetting(ctx, w.store, models.SettingAutoSyncEnabled, w.def)
	if err != nil {
		return err
	}
	if on != w.toggle.AutoSync() {
		logger.Info("Auto-sync setting changed", "enabled", on)
		w.toggle.SetAutoSync(on)
	}
	return nil
}
