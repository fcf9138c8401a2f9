package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/agentcore/coreagent/internal/core/command"
	"github.com/agentcore/coreagent/internal/core/config"
	"github.com/agentcore/coreagent/internal/core/session"
	"github.com/agentcore/coreagent/internal/core/subagent"
)

// deferredEmitter lets the command/sub-agent hubs be constructed before a
// Session exists to receive their change events: EnsureStarted's first
// discovery pass (and any change after it) calls emit, which forwards to
// whichever Session is currently attached, if any.
type deferredEmitter struct {
	mu   sync.Mutex
	sess *session.Session
}

func newDeferredEmitter() *deferredEmitter {
	return &deferredEmitter{}
}

func (d *deferredEmitter) emit(e session.Event) {
	d.mu.Lock()
	sess := d.sess
	d.mu.Unlock()
	if sess != nil {
		sess.Emit(e)
	}
}

func (d *deferredEmitter) attach(sess *session.Session) {
	d.mu.Lock()
	d.sess = sess
	d.mu.Unlock()
}

// subagentSources builds the project/user DirSources subagent.Hub
// discovers from, skipping a root that doesn't exist so a fresh
// installation with no sub-agents configured doesn't log noisy errors.
func subagentSources(cfg *config.Config) []subagent.Source {
	var sources []subagent.Source
	if dirExists(cfg.Agents.ProjectDir) {
		sources = append(sources, subagent.NewDirSource(cfg.Agents.ProjectDir, subagent.SourceProject))
	}
	if dirExists(cfg.Agents.UserDir) {
		sources = append(sources, subagent.NewDirSource(cfg.Agents.UserDir, subagent.SourceUser))
	}
	return sources
}

// commandHub builds the command.Hub over whichever of the project/user
// command directories exist. Returns nil if neither does, signaling the
// caller that slash-command expansion is unavailable this run.
func commandHub(cfg *config.Config, emit func(session.Event), logger *slog.Logger) *command.Hub {
	var sources []command.Source
	if dirExists(cfg.Commands.ProjectDir) {
		sources = append(sources, command.NewDirSource(cfg.Commands.ProjectDir, command.SourceProject))
	}
	if dirExists(cfg.Commands.UserDir) {
		sources = append(sources, command.NewDirSource(cfg.Commands.UserDir, command.SourceUser))
	}
	if len(sources) == 0 {
		return nil
	}
	return command.NewHub(sources, emit, logger)
}

func dirExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// rolloutPath returns the JSONL file a conversation's history is recorded
// to, creating the rollout directory if it doesn't exist yet.
func rolloutPath(cfg *config.Config, conversationID string) string {
	_ = os.MkdirAll(cfg.Rollout.Dir, 0o755)
	return filepath.Join(cfg.Rollout.Dir, conversationID+".jsonl")
}

// rolloutIndexPath returns the sqlindex database all rollout files under
// cfg.Rollout.Dir share, rebuildable at any time from the JSONL files
// themselves.
func rolloutIndexPath(cfg *config.Config) string {
	_ = os.MkdirAll(cfg.Rollout.Dir, 0o755)
	return filepath.Join(cfg.Rollout.Dir, "index.sqlite")
}
