package turn

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/session"
)

type scriptedProvider struct {
	calls     int
	responses [][]StreamEvent
	errs      []error
}

func (p *scriptedProvider) Stream(ctx context.Context, req StreamRequest) (<-chan StreamEvent, error) {
	idx := p.calls
	p.calls++
	if idx < len(p.errs) && p.errs[idx] != nil {
		return nil, p.errs[idx]
	}
	ch := make(chan StreamEvent, 8)
	go func() {
		defer close(ch)
		if idx < len(p.responses) {
			for _, ev := range p.responses[idx] {
				ch <- ev
			}
		}
	}()
	return ch, nil
}

type hangingProvider struct{}

func (hangingProvider) Stream(ctx context.Context, req StreamRequest) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

type fakeDispatcher struct {
	specs      []ToolSpec
	executions int
}

func (d *fakeDispatcher) Specs(turnCtx models.TurnContext) []ToolSpec { return d.specs }

func (d *fakeDispatcher) ExecuteAll(ctx context.Context, sess ApprovalSession, calls []*models.ResponseItem, turnCtx models.TurnContext) []*models.ResponseItem {
	d.executions++
	outputs := make([]*models.ResponseItem, len(calls))
	for i, c := range calls {
		outputs[i] = models.NewFunctionCallOutput(c.CallID, "done")
	}
	return outputs
}

func newTestSession() *session.Session {
	return session.New(nil, nil)
}

func drainEvents(s *session.Session, timeout time.Duration) []session.Event {
	var out []session.Event
	deadline := time.After(timeout)
	for {
		select {
		case e, ok := <-s.Events():
			if !ok {
				return out
			}
			out = append(out, e)
			if e.Type == session.EventTaskComplete || e.Type == session.EventError {
				return out
			}
		case <-deadline:
			return out
		}
	}
}

func TestTask_Run_CompletesWithTextOnlyResponse(t *testing.T) {
	sess := newTestSession()
	provider := &scriptedProvider{responses: [][]StreamEvent{
		{{Kind: StreamEventTextDelta, Delta: "hello"}, {Kind: StreamEventDone}},
	}}
	dispatcher := &fakeDispatcher{}
	task := NewTask(sess, provider, dispatcher, RetryPolicy{MaxAttempts: 1}, nil, []*models.ResponseItem{models.NewUserMessage("hi")}, models.TurnContext{})

	go task.Run(context.Background())
	events := drainEvents(sess, 2*time.Second)

	var sawComplete bool
	for _, e := range events {
		if e.Type == session.EventTaskComplete {
			sawComplete = true
			if e.LastMessage != "hello" {
				t.Errorf("LastMessage = %q, want %q", e.LastMessage, "hello")
			}
		}
	}
	if !sawComplete {
		t.Fatalf("expected EventTaskComplete, got %+v", events)
	}
	if dispatcher.executions != 0 {
		t.Errorf("executions = %d, want 0 (no tool calls)", dispatcher.executions)
	}
}

func TestTask_Run_ExecutesToolCallThenCompletes(t *testing.T) {
	sess := newTestSession()
	callArgs, _ := json.Marshal(map[string]string{})
	provider := &scriptedProvider{responses: [][]StreamEvent{
		{{Kind: StreamEventItem, Item: models.NewFunctionCall("call-1", "noop", callArgs)}, {Kind: StreamEventDone}},
		{{Kind: StreamEventTextDelta, Delta: "done now"}, {Kind: StreamEventDone}},
	}}
	dispatcher := &fakeDispatcher{}
	task := NewTask(sess, provider, dispatcher, RetryPolicy{MaxAttempts: 1}, nil, []*models.ResponseItem{models.NewUserMessage("go")}, models.TurnContext{})

	go task.Run(context.Background())
	events := drainEvents(sess, 2*time.Second)

	if dispatcher.executions != 1 {
		t.Errorf("executions = %d, want 1", dispatcher.executions)
	}
	var sawComplete bool
	for _, e := range events {
		if e.Type == session.EventTaskComplete {
			sawComplete = true
		}
	}
	if !sawComplete {
		t.Fatalf("expected EventTaskComplete, got %+v", events)
	}
}

func TestTask_Run_NoProviderEmitsError(t *testing.T) {
	sess := newTestSession()
	task := NewTask(sess, nil, &fakeDispatcher{}, RetryPolicy{MaxAttempts: 1}, nil, nil, models.TurnContext{})

	go task.Run(context.Background())
	events := drainEvents(sess, 2*time.Second)

	var sawErr bool
	for _, e := range events {
		if e.Type == session.EventError {
			sawErr = true
		}
	}
	if !sawErr {
		t.Fatalf("expected EventError when no provider is configured, got %+v", events)
	}
}

func TestTask_Run_StreamRetriesRetryableErrorThenSucceeds(t *testing.T) {
	sess := newTestSession()
	provider := &scriptedProvider{
		errs: []error{errConnRefused, nil},
		responses: [][]StreamEvent{
			nil,
			{{Kind: StreamEventTextDelta, Delta: "recovered"}, {Kind: StreamEventDone}},
		},
	}
	retry := RetryPolicy{MaxAttempts: 3, InitialDelay: 1, MaxDelay: 1, Multiplier: 1}
	task := NewTask(sess, provider, &fakeDispatcher{}, retry, nil, []*models.ResponseItem{models.NewUserMessage("go")}, models.TurnContext{})

	go task.Run(context.Background())
	events := drainEvents(sess, 2*time.Second)

	var sawComplete bool
	for _, e := range events {
		if e.Type == session.EventTaskComplete && e.LastMessage == "recovered" {
			sawComplete = true
		}
	}
	if !sawComplete {
		t.Fatalf("expected a completed task after one retry, got %+v", events)
	}
}

func TestTask_Abort_CancelsRunningTask(t *testing.T) {
	sess := newTestSession()
	task := NewTask(sess, hangingProvider{}, &fakeDispatcher{}, RetryPolicy{MaxAttempts: 1}, nil, []*models.ResponseItem{models.NewUserMessage("go")}, models.TurnContext{})

	go task.Run(context.Background())
	time.Sleep(20 * time.Millisecond)
	task.Abort("test abort")

	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected task to finish after Abort")
	}
}

func TestTask_Abort_SynthesizesAbortedOutputForDanglingCall(t *testing.T) {
	sess := newTestSession()
	callArgs, _ := json.Marshal(map[string]string{})
	sess.AppendHistory(models.NewFunctionCall("dangling-call", "noop", callArgs))

	task := NewTask(sess, hangingProvider{}, &fakeDispatcher{}, RetryPolicy{MaxAttempts: 1}, nil, nil, models.TurnContext{})
	go task.Run(context.Background())
	time.Sleep(20 * time.Millisecond)
	task.Abort("cut short")

	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected task to finish after Abort")
	}

	var sawAbortedOutput bool
	for _, item := range sess.History() {
		if item.Type == models.ItemFunctionCallOut && item.CallID == "dangling-call" && item.Output == "aborted" {
			sawAbortedOutput = true
		}
	}
	if !sawAbortedOutput {
		t.Error("expected a synthetic aborted output for the dangling call")
	}
}

var errConnRefused = &connRefusedError{}

type connRefusedError struct{}

func (e *connRefusedError) Error() string { return "dial tcp: connection reset by peer" }
