package turn

import (
	"context"
	"log/slog"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/session"
)

// Spawner implements session.TaskSpawner, wiring a Provider and
// ToolDispatcher into every Task it creates.
type Spawner struct {
	Provider   ProviderImpl
	Dispatcher ToolDispatcher
	Retry      RetryPolicy
	Logger     *slog.Logger
	Compactor  *Compactor
}

// NewSpawner builds a Spawner with default retry policy.
func NewSpawner(provider ProviderImpl, dispatcher ToolDispatcher, logger *slog.Logger) *Spawner {
	return &Spawner{
		Provider:   provider,
		Dispatcher: dispatcher,
		Retry:      DefaultRetryPolicy(),
		Logger:     logger,
	}
}

// Spawn implements session.TaskSpawner.
func (s *Spawner) Spawn(ctx context.Context, sess *session.Session, items []*models.ResponseItem, turnCtx models.TurnContext) session.Task {
	task := NewTask(sess, s.Provider, s.Dispatcher, s.Retry, s.Logger, items, turnCtx)
	go task.Run(ctx)
	return task
}

// SpawnCompact implements session.TaskSpawner by running the compaction
// task variant instead of the normal Stream/ExecuteTools loop.
func (s *Spawner) SpawnCompact(ctx context.Context, sess *session.Session) session.Task {
	c := s.Compactor
	if c == nil {
		c = NewCompactor(s.Provider, DefaultCompactionConfig(), s.Logger)
	}
	task := c.NewTask(sess)
	go task.Run(ctx)
	return task
}
