package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/lingoroute/lingoroute/pkg/logging"
	"github.com/lingoroute/lingoroute/pkg/models"
)

// DefaultDebounce is the quiet period before a changed file is reloaded.
const DefaultDebounce = 250 * time.Millisecond

// Syncer receives the provider list of a reloaded config file.
type Syncer interface {
	Sync(ctx context.Context, cfgs []models.ProviderConfig) error
}

// Watcher re-reads the config file on change and pushes its providers to
// a Syncer. Process settings other than providers need a restart.
type Watcher struct {
	path     string
	target   Syncer
	logger   *zap.Logger
	debounce *Debouncer
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	reloads int
	lastErr error
}

// NewWatcher creates a Watcher for path. debounce <= 0 uses DefaultDebounce.
func NewWatcher(path string, target Syncer, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		path:     abs,
		target:   target,
		logger:   logging.OrNop(logger),
		debounce: NewDebouncer(debounce),
		watcher:  fw,
	}, nil
}

// Run watches until ctx is cancelled. The parent directory is watched so
// editors that replace the file by rename are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.debounce.Stop()
	defer w.watcher.Close()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	w.logger.Info("config watcher started", zap.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped")
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("config file event", zap.String("op", ev.Op.String()))
			w.debounce.Trigger(func() { w.reload(ctx) })
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Clean(ev.Name) == w.path
}

// reload applies the file's providers. A file that fails to parse or
// validate leaves the running configuration untouched.
func (w *Watcher) reload(ctx context.Context) {
	err := w.apply(ctx)
	w.mu.Lock()
	w.reloads++
	w.lastErr = err
	w.mu.Unlock()
	if err != nil {
		w.logger.Error("config reload failed", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.logger.Info("config reloaded", zap.String("path", w.path))
}

func (w *Watcher) apply(ctx context.Context) error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	if err := w.target.Sync(ctx, cfg.Providers); err != nil {
		return fmt.Errorf("sync providers: %w", err)
	}
	return nil
}

// Reloads returns the number of reload attempts and the last error.
func (w *Watcher) Reloads() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads, w.lastErr
}

// Debouncer collects rapid events and runs the latest callback once the
// interval has passed without a new event.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
}

// NewDebouncer creates a Debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules fn, replacing any pending callback.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

// Stop cancels any pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
