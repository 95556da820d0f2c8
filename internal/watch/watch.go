// Package watch re-runs work when suite files change on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handler is called with the changed paths once they have settled.
type Handler func(ctx context.Context, changed []string)

// Stats counts what a Watcher has seen.
type Stats struct {
	Events   int
	Triggers int
	Errors   int
	LastPath string
}

// Watcher debounces filesystem events for a set of files and directories.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	handler  Handler
	debounce time.Duration
	exts     map[string]bool
	files    map[string]bool
	dirs     map[string]bool
	pending  map[string]time.Time
	stats    Stats
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a path must be quiet before the handler runs.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithExtensions limits directory watches to files with these extensions.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		w.exts = make(map[string]bool, len(exts))
		for _, e := range exts {
			w.exts[e] = true
		}
	}
}

// New creates a Watcher calling handler for settled changes.
func New(handler Handler, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		watcher:  fw,
		logger:   zap.NewNop(),
		handler:  handler,
		debounce: 200 * time.Millisecond,
		exts:     map[string]bool{".yaml": true, ".yml": true},
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Add watches path. Files are watched through their directory so editors
// that replace the file on save are still seen.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	dir := abs
	w.mu.Lock()
	if info.IsDir() {
		w.dirs[abs] = true
	} else {
		dir = filepath.Dir(abs)
		w.files[abs] = true
	}
	w.mu.Unlock()
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Debug("watching", zap.String("path", abs))
	return nil
}

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	tick := w.debounce / 2
	if tick <= 0 {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			if changed := w.settled(time.Now()); len(changed) > 0 {
				w.mu.Lock()
				w.stats.Triggers++
				w.mu.Unlock()
				w.logger.Info("files changed", zap.Strings("paths", changed))
				w.handler(ctx, changed)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.wants(event.Name) {
		return
	}
	w.stats.Events++
	w.stats.LastPath = event.Name
	w.pending[event.Name] = time.Now()
}

// wants must be called with mu held.
func (w *Watcher) wants(path string) bool {
	if w.files[path] {
		return true
	}
	return w.dirs[filepath.Dir(path)] && w.exts[strings.ToLower(filepath.Ext(path))]
}

func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var changed []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			changed = append(changed, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(changed)
	return changed
}
