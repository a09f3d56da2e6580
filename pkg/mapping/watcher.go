package mapping

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
)

// DefaultFileSettle is how long the watcher waits after the last write event
// before re-reading the file.
const DefaultFileSettle = 500 * time.Millisecond

// FileWatcher re-imports a mapping file into a Store whenever it changes.
//
// The parent directory is watched rather than the file itself so that editors
// replacing the file through rename are still observed.
type FileWatcher struct {
	path   string
	store  *Store
	settle time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	stopped chan struct{}
	running bool

	// reloaded is signalled after every import attempt; used by tests.
	reloaded chan error
}

// NewFileWatcher creates a watcher for path feeding store.
func NewFileWatcher(path string, store *Store, settle time.Duration) *FileWatcher {
	if settle <= 0 {
		settle = DefaultFileSettle
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &FileWatcher{path: abs, store: store, settle: settle}
}

// Start begins watching. It returns an error if the directory cannot be watched.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return err
	}

	w.watcher = fw
	w.stopCh = make(chan struct{})
	w.stopped = make(chan struct{})
	w.running = true

	go w.loop(ctx, fw, w.stopCh, w.stopped)

	logger.Info("Mapping file watcher started", logger.KeyPath, w.path)
	return nil
}

// Stop stops watching and waits for the loop to exit. Safe to call repeatedly.
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	stopped := w.stopped
	fw := w.watcher
	w.mu.Unlock()

	<-stopped
	_ = fw.Close()
	logger.Info("Mapping file watcher stopped", logger.KeyPath, w.path)
}

func (w *FileWatcher) loop(ctx context.Context, fw *fsnotify.Watcher, stopCh <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.settle)
			} else {
				timer.Reset(w.settle)
			}
			timerC = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn("Mapping file watcher error", logger.Err(err))
		case <-timerC:
			timerC = nil
			w.reload(ctx)
		}
	}
}

func (w *FileWatcher) reload(ctx context.Context) {
	mappings, err := ReadFile(w.path)
	if err == nil {
		err = w.store.Import(ctx, mappings)
	}
	if err != nil {
		logger.Error("Failed to reload mapping file", logger.KeyPath, w.path, logger.Err(err))
	} else {
		logger.Info("Mapping file reloaded", logger.KeyPath, w.path, logger.KeyMappings, len(mappings))
	}

	if w.reloaded != nil {
		select {
		case w.reloaded <- err:
		default:
		}
	}
}
