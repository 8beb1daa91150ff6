package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultReloadDelay is how long the watcher waits for writes to settle
// before reloading a workflow file.
const DefaultReloadDelay = 500 * time.Millisecond

// Watcher reloads a workflow file whenever it changes on disk.
type Watcher struct {
	logger zerolog.Logger
	delay  time.Duration
}

// NewWatcher creates a new workflow file watcher.
func NewWatcher(logger zerolog.Logger) *Watcher {
	return &Watcher{
		logger: logger.With().Str("component", "workflow-watcher").Logger(),
		delay:  DefaultReloadDelay,
	}
}

// WithDelay overrides the debounce delay.
func (w *Watcher) WithDelay(d time.Duration) *Watcher {
	w.delay = d
	return w
}

// Watch watches path and calls reloadFn with each successfully decoded
// version of the file. It blocks until ctx is cancelled. Decode failures are
// logged and the previous definition stays in effect.
func (w *Watcher) Watch(ctx context.Context, path string, reloadFn func(*Definition) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files on save, so watch the directory rather than the
	// file itself.
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	w.logger.Info().Str("path", abs).Msg("Started watching workflow file")

	// Reloads run on this goroutine, so none is in flight once Watch returns.
	var reloadTimer *time.Timer
	var reloadC <-chan time.Time
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-reloadC:
			reloadC = nil
			if err := w.reload(abs, reloadFn); err != nil {
				w.logger.Error().Err(err).Msg("Failed to reload workflow")
			}

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Workflow file changed")

			if reloadTimer == nil {
				reloadTimer = time.NewTimer(w.delay)
			} else {
				reloadTimer.Reset(w.delay)
			}
			reloadC = reloadTimer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) reload(path string, reloadFn func(*Definition) error) error {
	def, err := LoadFile(path)
	if err != nil {
		return err
	}
	if err := reloadFn(def); err != nil {
		return fmt.Errorf("failed to apply reloaded workflow: %w", err)
	}

	w.logger.Info().
		Int("nodes", len(def.Nodes)).
		Int("links", len(def.Links)).
		Msg("Workflow reloaded successfully")
	return nil
}
