package dispatch

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/session"
	"github.com/agentcore/coreagent/internal/core/turn"
)

type fakeExecSession struct {
	events []session.Event
}

func (f *fakeExecSession) RegisterApproval(id string) chan models.ReviewDecision { return nil }
func (f *fakeExecSession) IsCommandApproved(key string) bool                     { return false }
func (f *fakeExecSession) ApproveForSession(key string)                         {}
func (f *fakeExecSession) Emit(e session.Event)                                 { f.events = append(f.events, e) }
func (f *fakeExecSession) ID() string                                           { return "exec-sess" }
func (f *fakeExecSession) QueueInput(items ...*models.ResponseItem) error       { return nil }

func callItem(callID, name string) *models.ResponseItem {
	return models.NewFunctionCall(callID, name, json.RawMessage(`{}`))
}

func TestExecutor_ExecuteAll_UnknownToolReturnsError(t *testing.T) {
	reg := NewRegistry()
	exec := NewExecutor(reg, DefaultExecConfig(), nil)
	sess := &fakeExecSession{}

	calls := []*models.ResponseItem{callItem("c1", "missing")}
	outputs := exec.ExecuteAll(context.Background(), sess, calls, models.TurnContext{})

	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	if outputs[0].Output == "" {
		t.Error("expected an error output for an unknown tool")
	}
}

func TestExecutor_ExecuteAll_PreservesOrder(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"a", "b", "c"} {
		n := name
		_ = reg.Register(Tool{
			Spec: turn.ToolSpec{Name: n},
			Handler: func(ctx context.Context, sess turn.ApprovalSession, turnCtx models.TurnContext, args json.RawMessage) (string, error) {
				return n, nil
			},
		}, nil)
	}
	exec := NewExecutor(reg, DefaultExecConfig(), nil)
	sess := &fakeExecSession{}

	calls := []*models.ResponseItem{
		callItem("1", "a"),
		callItem("2", "b"),
		callItem("3", "c"),
	}
	outputs := exec.ExecuteAll(context.Background(), sess, calls, models.TurnContext{})

	want := []string{"a", "b", "c"}
	for i, w := range want {
		if outputs[i].Output != w {
			t.Errorf("outputs[%d] = %q, want %q", i, outputs[i].Output, w)
		}
	}
}

func TestExecutor_ExecuteAll_FilterDeniesTool(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(Tool{Spec: turn.ToolSpec{Name: "danger"}, Handler: echoHandler}, nil)
	exec := NewExecutor(reg, DefaultExecConfig(), func(turnCtx models.TurnContext, name string) bool { return false })
	sess := &fakeExecSession{}

	outputs := exec.ExecuteAll(context.Background(), sess, []*models.ResponseItem{callItem("1", "danger")}, models.TurnContext{})
	if len(outputs) != 1 || outputs[0].Output == "" {
		t.Fatalf("expected a denial error output, got %+v", outputs)
	}
}

func TestExecutor_ExecuteAll_EmitsBeginAndEndEvents(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(Tool{Spec: turn.ToolSpec{Name: "ping"}, Handler: echoHandler}, nil)
	exec := NewExecutor(reg, DefaultExecConfig(), nil)
	sess := &fakeExecSession{}

	exec.ExecuteAll(context.Background(), sess, []*models.ResponseItem{callItem("1", "ping")}, models.TurnContext{})

	if len(sess.events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(sess.events), sess.events)
	}
	if sess.events[0].Type != session.EventMCPToolBegin {
		t.Errorf("events[0].Type = %v", sess.events[0].Type)
	}
	if sess.events[1].Type != session.EventMCPToolEnd || !sess.events[1].Success {
		t.Errorf("events[1] = %+v", sess.events[1])
	}
}

func TestExecutor_ExecuteAll_ValidationFailureShortCircuits(t *testing.T) {
	reg := NewRegistry()
	var called int32
	_ = reg.Register(Tool{
		Spec: turn.ToolSpec{Name: "strict"},
		Handler: func(ctx context.Context, sess turn.ApprovalSession, turnCtx models.TurnContext, args json.RawMessage) (string, error) {
			atomic.AddInt32(&called, 1)
			return "ran", nil
		},
	}, []byte(`{"type":"object","required":["path"]}`))
	exec := NewExecutor(reg, DefaultExecConfig(), nil)
	sess := &fakeExecSession{}

	outputs := exec.ExecuteAll(context.Background(), sess, []*models.ResponseItem{callItem("1", "strict")}, models.TurnContext{})
	if atomic.LoadInt32(&called) != 0 {
		t.Error("expected handler not to run when argument validation fails")
	}
	if outputs[0].Output == "" {
		t.Error("expected a validation error output")
	}
}

func TestExecutor_ExecuteAll_ConcurrencyBoundedBySemaphore(t *testing.T) {
	reg := NewRegistry()
	var inFlight, maxInFlight int32
	_ = reg.Register(Tool{
		Spec: turn.ToolSpec{Name: "slow"},
		Handler: func(ctx context.Context, sess turn.ApprovalSession, turnCtx models.TurnContext, args json.RawMessage) (string, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				m := atomic.LoadInt32(&maxInFlight)
				if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return "done", nil
		},
	}, nil)

	cfg := DefaultExecConfig()
	cfg.Concurrency = 2
	exec := NewExecutor(reg, cfg, nil)
	sess := &fakeExecSession{}

	calls := make([]*models.ResponseItem, 6)
	for i := range calls {
		calls[i] = callItem(string(rune('a'+i)), "slow")
	}
	exec.ExecuteAll(context.Background(), sess, calls, models.TurnContext{})

	if atomic.LoadInt32(&maxInFlight) > 2 {
		t.Errorf("maxInFlight = %d, want <= 2", maxInFlight)
	}
}

func TestExecutor_ExecuteAll_LocalShellCallProducesMatchingOutputType(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(Tool{Spec: turn.ToolSpec{Name: "shell"}, Handler: echoHandler}, nil)
	exec := NewExecutor(reg, DefaultExecConfig(), nil)
	sess := &fakeExecSession{}

	call := &models.ResponseItem{Type: models.ItemLocalShellCall, ID: "shell-1", Name: "shell", Arguments: json.RawMessage(`{}`)}
	outputs := exec.ExecuteAll(context.Background(), sess, []*models.ResponseItem{call}, models.TurnContext{})

	if outputs[0].Type != models.ItemLocalShellOut {
		t.Errorf("Type = %v, want %v", outputs[0].Type, models.ItemLocalShellOut)
	}
	if outputs[0].ID != "shell-1" {
		t.Errorf("ID = %q", outputs[0].ID)
	}
}

func TestNewExecutor_AppliesDefaultsForZeroValues(t *testing.T) {
	exec := NewExecutor(NewRegistry(), ExecConfig{}, nil)
	if exec.config.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", exec.config.Concurrency)
	}
	if exec.config.PerCallTimeout != 30*time.Second {
		t.Errorf("PerCallTimeout = %v, want 30s", exec.config.PerCallTimeout)
	}
	if exec.config.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", exec.config.MaxAttempts)
	}
}
