package turn

import (
	"context"
	"testing"
	"time"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/session"
)

func TestNewSpawner_UsesDefaultRetryPolicy(t *testing.T) {
	s := NewSpawner(nil, nil, nil)
	if s.Retry != DefaultRetryPolicy() {
		t.Errorf("Retry = %+v, want defaults", s.Retry)
	}
}

func TestSpawner_Spawn_RunsTaskToCompletion(t *testing.T) {
	sess := newTestSession()
	provider := &scriptedProvider{responses: [][]StreamEvent{
		{{Kind: StreamEventTextDelta, Delta: "hi"}, {Kind: StreamEventDone}},
	}}
	spawner := &Spawner{Provider: provider, Dispatcher: &fakeDispatcher{}, Retry: RetryPolicy{MaxAttempts: 1}}

	task := spawner.Spawn(context.Background(), sess, []*models.ResponseItem{models.NewUserMessage("hi")}, models.TurnContext{})
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected spawned task to finish")
	}
}

func TestSpawner_SpawnCompact_UsesConfiguredCompactor(t *testing.T) {
	sess := newTestSession()
	sess.AppendHistory(models.NewUserMessage("long conversation"))
	provider := &scriptedProvider{responses: [][]StreamEvent{
		{{Kind: StreamEventTextDelta, Delta: "summary"}, {Kind: StreamEventDone}},
	}}
	spawner := &Spawner{Provider: provider}

	task := spawner.SpawnCompact(context.Background(), sess)
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected compaction task to finish")
	}

	hist := sess.History()
	if len(hist) != 1 || hist[0].Content[0].Text != "summary" {
		t.Errorf("History() = %+v", hist)
	}
}

// session.TaskSpawner interface compliance check.
var _ session.TaskSpawner = (*Spawner)(nil)
