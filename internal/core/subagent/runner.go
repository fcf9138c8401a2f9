package subagent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentcore/coreagent/internal/core/dispatch"
	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/session"
	"github.com/agentcore/coreagent/internal/core/turn"
)

// Runner invokes sub-agent Definitions as isolated, synchronous nested
// agent loops: each call gets its own Session (its own history, its own
// approval state) built fresh from the parent's TurnContext, restricted to
// the Definition's tool allowlist, and runs to completion before the
// parent's call returns. Spec.md §4.6 requires the nested loop not share
// the parent's conversation history.
type Runner struct {
	Provider turn.ProviderImpl
	Registry *dispatch.Registry
	Logger   *slog.Logger
	Runs     *Registry
	Timeout  time.Duration
}

// NewRunner builds a Runner.
func NewRunner(provider turn.ProviderImpl, registry *dispatch.Registry, runs *Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		Provider: provider,
		Registry: registry,
		Logger:   logger.With("component", "subagent"),
		Runs:     runs,
		Timeout:  10 * time.Minute,
	}
}

// Invoke runs def against task, blocking until the nested loop reaches
// PhaseComplete (or the Runner's Timeout elapses), and returns the nested
// loop's final assistant message.
func (r *Runner) Invoke(parent context.Context, def *Definition, parentConvID, task string) (string, error) {
	runID := uuid.NewString()
	if r.Runs != nil {
		r.Runs.Register(runID, def.Name, parentConvID, task, r.Timeout.Milliseconds())
		r.Runs.Start(runID)
	}

	ctx, cancel := context.WithTimeout(parent, r.Timeout)
	defer cancel()

	filter := ToolFilter(def)
	dispatcher := dispatch.NewExecutor(r.Registry, dispatch.DefaultExecConfig(), filter)
	spawner := turn.NewSpawner(r.Provider, dispatcher, r.Logger)

	child := session.New(spawner, r.Logger)
	defer child.Submit(session.Submission{Op: session.OpShutdown})

	turnCtx := models.TurnContext{
		BaseInstructions: def.Instructions,
		Model:            def.Model,
		ApprovalPolicy:   models.ApprovalNever,
		SandboxPolicy:    models.SandboxPolicy{Mode: models.SandboxReadOnly},
	}

	child.Submit(session.Submission{
		Op:      session.OpUserTurn,
		Items:   []*models.ResponseItem{models.NewUserMessage(task)},
		TurnCtx: turnCtx,
	})

	result, err := r.await(ctx, child)

	outcome := Outcome{Result: result}
	if err != nil {
		outcome.Status = RunError
		outcome.Error = err.Error()
	} else {
		outcome.Status = RunCompleted
	}
	if ctx.Err() != nil && err == nil {
		outcome.Status = RunTimeout
	}
	if r.Runs != nil {
		r.Runs.Complete(runID, outcome)
	}
	return result, err
}

// await drains the child session's event stream until EventTaskComplete,
// EventTurnAborted, or EventError, or the context is done.
func (r *Runner) await(ctx context.Context, child *session.Session) (string, error) {
	for {
		select {
		case ev, ok := <-child.Events():
			if !ok {
				return "", fmt.Errorf("subagent: session closed before completion")
			}
			switch ev.Type {
			case session.EventTaskComplete:
				return ev.LastMessage, nil
			case session.EventTurnAborted:
				return "", fmt.Errorf("subagent: aborted: %s", ev.Reason)
			case session.EventError, session.EventStreamError:
				return "", fmt.Errorf("subagent: %s", ev.Err)
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
