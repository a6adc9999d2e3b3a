package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce coalesces the bursts of events editors produce on save.
const DefaultDebounce = 500 * time.Millisecond

// Watcher calls back when any of a set of files changes.
type Watcher struct {
	debounce time.Duration
	logger   zerolog.Logger

	mu sync.Mutex // serializes callbacks
}

// NewWatcher creates a file watcher.
func NewWatcher(logger zerolog.Logger, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		debounce: debounce,
		logger:   logger.With().Str("component", "watcher").Logger(),
	}
}

// Watch starts watching files and returns immediately. The parent
// directories are watched so that files replaced by rename are still seen.
// onChange never runs concurrently with itself. Watching stops when ctx is
// done.
func (w *Watcher) Watch(ctx context.Context, files []string, onChange func(ctx context.Context)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	watched := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to resolve %s: %w", file, err)
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	go w.processEvents(ctx, watcher, watched, onChange)

	w.logger.Info().Int("files", len(files)).Msg("Started watching catalog files")
	return nil
}

func (w *Watcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher, watched map[string]bool, onChange func(ctx context.Context)) {
	defer watcher.Close()

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !watched[filepath.Clean(event.Name)] {
				continue
			}

			w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Catalog file changed")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				if ctx.Err() != nil {
					return
				}
				w.mu.Lock()
				defer w.mu.Unlock()
				onChange(ctx)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}
