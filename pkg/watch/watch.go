// Package watch reloads a snapshot file when it changes on disk, so the
// interactive viewer can pick up edits without restarting.
//
// The parent directory is watched rather than the file itself: editors that
// save atomically (write to temp, rename over the target) would otherwise
// silently detach the watch on the first save.
package watch

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher watches one snapshot file and invokes a callback, debounced,
// whenever it is written, created, or renamed into place.
type Watcher struct {
	path      string
	debouncer *Debouncer
	fsw       *fsnotify.Watcher
	logger    *log.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce window for change callbacks.
func WithDebounce(window time.Duration) Option {
	return func(w *Watcher) { w.debouncer = NewDebouncer(window) }
}

// WithLogger sets the logger for watch diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New starts watching path and calls onChange after each debounced change.
// Call Close to stop.
func New(path string, onChange func(), opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		path:      abs,
		debouncer: NewDebouncer(0),
		fsw:       fsw,
		logger:    log.NewWithOptions(io.Discard, log.Options{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go w.loop(onChange)
	return w, nil
}

func (w *Watcher) loop(onChange func()) {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("snapshot changed", "path", ev.Name, "op", ev.Op.String())
			w.debouncer.Trigger(onChange)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

// Path returns the watched file path.
func (w *Watcher) Path() string {
	return w.path
}

// Close stops watching and discards any pending callback.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.debouncer.Cancel()
	err := w.fsw.Close()
	<-w.done
	return err
}
