// Package watch reports changes to a single file, such as a config file that
// is edited in place or replaced by an editor.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Options configures a Watcher.
type Options struct {
	// Debounce collapses bursts of events into one notification.
	Debounce time.Duration
	// PollInterval is the interval to stat the file when fsnotify misses events.
	PollInterval time.Duration
	Logger       *zap.Logger
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Debounce:     200 * time.Millisecond,
		PollInterval: 5 * time.Second,
	}
}

// Watcher calls a function after the watched file changes.
type Watcher struct {
	filePath string
	opts     Options
	watcher  *fsnotify.Watcher
	onChange func()

	modTime time.Time
	size    int64

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Watcher for filePath. onChange runs on the watcher goroutine.
func New(filePath string, onChange func(), opts Options) (*Watcher, error) {
	defaults := DefaultOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = defaults.Debounce
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		filePath: absPath,
		opts:     opts,
		watcher:  watcher,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	w.modTime, w.size = w.stat()
	return w, nil
}

// Start watches until ctx is done or Stop is called. The directory is
// watched, not the file, so replacing the file is noticed too.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.filePath)); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}
	go w.run(ctx)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.closeOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *Watcher) stat() (time.Time, int64) {
	info, err := os.Stat(w.filePath)
	if err != nil {
		return time.Time{}, -1
	}
	return info.ModTime(), info.Size()
}

func (w *Watcher) run(ctx context.Context) {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	// Stopped until the first event arms it.
	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.filePath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				debounce.Reset(w.opts.Debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Warn("file watcher error", zap.String("path", w.filePath), zap.Error(err))
		case <-ticker.C:
			// Fallback polling for systems where fsnotify doesn't work well
			if modTime, size := w.stat(); size >= 0 && (!modTime.Equal(w.modTime) || size != w.size) {
				debounce.Reset(w.opts.Debounce)
			}
		case <-debounce.C:
			w.modTime, w.size = w.stat()
			w.opts.Logger.Debug("watched file changed", zap.String("path", w.filePath))
			w.onChange()
		}
	}
}
