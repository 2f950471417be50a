package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a settings file into a Store whenever it changes on disk
type Watcher struct {
	path     string
	store    *Store
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	onReload func(*Settings)
}

// NewWatcher watches the directory containing path. The directory is
// watched rather than the file so atomic rename-into-place saves are seen.
func NewWatcher(path string, store *Store, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve settings path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:    abs,
		store:   store,
		logger:  logger,
		watcher: w,
	}, nil
}

// OnReload registers fn to be called with each successfully applied reload
func (w *Watcher) OnReload(fn func(*Settings)) {
	w.onReload = fn
}

// Run processes file events until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Settings watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	s, err := Load(w.path)
	if err != nil {
		w.logger.Warn("Failed to reload settings", zap.String("path", w.path), zap.Error(err))
		return
	}
	if err := w.store.Set(s); err != nil {
		w.logger.Warn("Rejected reloaded settings", zap.String("path", w.path), zap.Error(err))
		return
	}

	w.logger.Info("Settings reloaded",
		zap.String("path", w.path),
		zap.Int("width", s.Stream.Width),
		zap.Int("height", s.Stream.Height),
		zap.Int("fps", s.Stream.FPS),
	)
	if w.onReload != nil {
		w.onReload(s.Clone())
	}
}
