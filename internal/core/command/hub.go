package command

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agentcore/coreagent/internal/core/discovery"
	"github.com/agentcore/coreagent/internal/core/session"
)

// Hub owns a Catalog's discovery sources and, once started, its
// hot-reload watcher, emitting EventCommandListUpdated on every change.
// Per spec.md §4.9, the watcher is started lazily on first list request
// and torn down with the session that owns the Hub.
type Hub struct {
	mu      sync.Mutex
	catalog *Catalog
	sources []Source
	watcher *discovery.Watcher
	emit    func(session.Event)
	logger  *slog.Logger
	started bool
}

// NewHub creates a Hub over sources, calling emit whenever the discovered
// set changes (including the first discovery on EnsureStarted).
func NewHub(sources []Source, emit func(session.Event), logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		catalog: NewCatalog(),
		sources: sources,
		emit:    emit,
		logger:  logger.With("component", "command.hub"),
	}
}

// Catalog returns the Hub's catalog. Safe to call before EnsureStarted;
// it is simply empty until the first discovery pass completes.
func (h *Hub) Catalog() *Catalog { return h.catalog }

// EnsureStarted runs the first discovery pass and starts the watcher, if
// not already running. Idempotent.
func (h *Hub) EnsureStarted(ctx context.Context) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = true
	h.mu.Unlock()

	if err := h.refresh(ctx); err != nil {
		return err
	}

	watcherSources := make([]discovery.Source, len(h.sources))
	for i, src := range h.sources {
		watcherSources[i] = src
	}

	h.watcher = discovery.NewWatcher(200*time.Millisecond, func() {
		if err := h.refresh(context.Background()); err != nil {
			h.logger.Warn("command discovery refresh failed", "error", err)
		}
	}, h.logger)
	return h.watcher.Start(ctx, watcherSources...)
}

func (h *Hub) refresh(ctx context.Context) error {
	defs, err := DiscoverAll(ctx, h.sources...)
	if err != nil {
		return err
	}
	h.catalog.Replace(defs)
	if h.emit != nil {
		h.emit(session.Event{Type: session.EventCommandListUpdated, Names: Names(defs)})
	}
	return nil
}

// Close stops the watcher, if running. Safe to call even if
// EnsureStarted was never called.
func (h *Hub) Close() error {
	h.mu.Lock()
	w := h.watcher
	h.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}
