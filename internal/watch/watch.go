// Package watch reports edits to a single file on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"heliview/internal/logger"
)

// Watcher watches one file. It watches the file's directory rather than the
// file itself so editors that save by rename are still seen.
type Watcher struct {
	path     string
	debounce time.Duration
	log      *logger.Logger
	w        *fsnotify.Watcher
}

// New starts watching path. Events are delivered once Run is called.
func New(path string, debounce time.Duration, log *logger.Logger) (*Watcher, error) {
	if log == nil {
		log = logger.Discard()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch: %w", err)
	}
	return &Watcher{path: abs, debounce: debounce, log: log, w: w}, nil
}

// Run calls onChange after each burst of writes to the file has been quiet
// for the debounce interval. It returns when ctx is done.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	defer w.w.Close()
	quiet := time.NewTimer(time.Hour)
	quiet.Stop()
	pending := false
	for {
		select {
		case <-ctx.Done():
			quiet.Stop()
			return ctx.Err()
		case event, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			pending = true
			quiet.Reset(w.debounce)
		case <-quiet.C:
			if pending {
				pending = false
				w.log.Logf("%s changed", filepath.Base(w.path))
				onChange()
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			w.log.Logf("watch: %v", err)
		}
	}
}
