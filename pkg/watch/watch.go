// Package watch re-runs a callback when source documents under a directory
// change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the quiet period after the last event before the
// callback runs.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a directory tree.
type Watcher struct {
	// Match selects the files whose changes trigger the callback.
	Match    func(path string) bool
	Debounce time.Duration
	Logger   zerolog.Logger

	fsw *fsnotify.Watcher
}

// New creates a watcher for files matched by match.
func New(match func(path string) bool, logger zerolog.Logger) *Watcher {
	return &Watcher{Match: match, Debounce: DefaultDebounce, Logger: logger}
}

// Run blocks until ctx is done, calling fn after each burst of changes to
// matched files under root. Directories created while running are added.
func (w *Watcher) Run(ctx context.Context, root string, fn func(ctx context.Context)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.fsw = fsw
	defer func() {
		_ = fsw.Close()
	}()

	if err := w.addTree(root); err != nil {
		return err
	}
	w.Logger.Info().Str("root", root).Msg("Watching for changes")

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	// The callback runs on this goroutine, so runs never overlap and none
	// starts after Run returns.
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			fn(ctx)

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				w.addIfDir(event.Name)
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if w.Match != nil && !w.Match(filepath.ToSlash(event.Name)) {
				continue
			}
			w.Logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Source file changed")

			timer.Reset(debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) addIfDir(path string) {
	if err := w.addTree(path); err != nil {
		w.Logger.Debug().Err(err).Str("path", path).Msg("Failed to watch new path")
	}
}
