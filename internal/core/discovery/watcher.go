package discovery

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Source is anything that can report the directories it wants watched,
// satisfied by subagent.DirSource and the equivalent command source.
type Source interface {
	WatchPaths() []string
}

// Watcher watches a set of directories and calls onChange, debounced,
// whenever any of them sees a create/write/remove/rename event. Adapted
// from the teacher's skills.Manager watch loop (watchLoop/refreshWatches/
// computeWatchPaths/addWatchPath), generalized to work over any Source
// slice instead of being specific to skills.
type Watcher struct {
	logger *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	watched map[string]struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	debounce *Debouncer[struct{}]
}

// NewWatcher creates a Watcher that invokes onChange (debounced by
// interval, or DefaultDebounce if non-positive) when watched paths change.
func NewWatcher(interval time.Duration, onChange func(), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "discovery.watcher")
	w := &Watcher{logger: logger, watched: make(map[string]struct{})}
	w.debounce = NewDebouncer[struct{}](interval, nil, func([]*struct{}) {
		if onChange != nil {
			onChange()
		}
	})
	return w
}

// Start opens the underlying fsnotify watcher, applies the initial path
// set from sources, and begins watching in the background. Call Close to
// stop. ctx bounds the watch goroutine's lifetime.
func (w *Watcher) Start(ctx context.Context, sources ...Source) error {
	w.mu.Lock()
	if w.watcher != nil {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fw
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	if err := w.Refresh(sources...); err != nil {
		w.logger.Warn("initial watch refresh failed", "error", err)
	}

	w.wg.Add(1)
	go w.loop(watchCtx)
	return nil
}

// Refresh reconciles the watched path set against what sources currently
// report, adding newly-reported directories and dropping ones no longer
// reported. Safe to call before or after Start's watcher is live.
func (w *Watcher) Refresh(sources ...Source) error {
	desired := make(map[string]struct{})
	for _, src := range sources {
		for _, p := range src.WatchPaths() {
			if cleaned, ok := normalizePath(p); ok {
				desired[cleaned] = struct{}{}
			}
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}

	for p := range desired {
		if _, ok := w.watched[p]; ok {
			continue
		}
		if err := w.watcher.Add(p); err != nil {
			w.logger.Debug("failed to watch path", "path", p, "error", err)
			continue
		}
		w.watched[p] = struct{}{}
	}
	for p := range w.watched {
		if _, ok := desired[p]; ok {
			continue
		}
		if err := w.watcher.Remove(p); err != nil {
			w.logger.Debug("failed to unwatch path", "path", p, "error", err)
		}
		delete(w.watched, p)
	}
	return nil
}

// Close stops watching and releases the fsnotify handle.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	fw := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	w.debounce.Stop()
	if fw != nil {
		_ = fw.Close()
	}
	w.wg.Wait()
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	w.mu.Lock()
	fw := w.watcher
	w.mu.Unlock()
	if fw == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addPath(event.Name)
				}
			}
			w.debounce.Enqueue(&struct{}{})
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) addPath(path string) {
	cleaned, ok := normalizePath(path)
	if !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return
	}
	if _, exists := w.watched[cleaned]; exists {
		return
	}
	if err := w.watcher.Add(cleaned); err != nil {
		w.logger.Debug("failed to watch new path", "path", cleaned, "error", err)
		return
	}
	w.watched[cleaned] = struct{}{}
}

func normalizePath(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return filepath.Clean(path), true
}

// SortedPaths returns the currently watched directories, sorted, mostly
// useful for tests and diagnostics.
func (w *Watcher) SortedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.watched))
	for p := range w.watched {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
