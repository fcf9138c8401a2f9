package turn

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/session"
)

// Task runs one agent turn to completion: Init -> Stream -> ExecuteTools ->
// Continue -> Complete, looping Stream/ExecuteTools/Continue until the model
// stops requesting tool calls or MaxIterations is hit. It implements
// session.Task.
type Task struct {
	sess       *session.Session
	provider   ProviderImpl
	dispatcher ToolDispatcher
	retry      RetryPolicy
	logger     *slog.Logger

	items   []*models.ResponseItem
	turnCtx models.TurnContext

	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	phase Phase
}

// NewTask constructs a Task; callers normally go through Spawner.Spawn.
func NewTask(sess *session.Session, provider ProviderImpl, dispatcher ToolDispatcher, retry RetryPolicy, logger *slog.Logger, items []*models.ResponseItem, turnCtx models.TurnContext) *Task {
	if logger == nil {
		logger = slog.Default()
	}
	return &Task{
		sess:       sess,
		provider:   provider,
		dispatcher: dispatcher,
		retry:      retry,
		logger:     logger.With("component", "turn"),
		items:      items,
		turnCtx:    turnCtx,
		done:       make(chan struct{}),
	}
}

// Done implements session.Task.
func (t *Task) Done() <-chan struct{} { return t.done }

// Abort implements session.Task.
func (t *Task) Abort(reason string) {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	t.logger.Debug("task abort requested", "reason", reason)
}

func (t *Task) setPhase(p Phase) {
	t.mu.Lock()
	t.phase = p
	t.mu.Unlock()
}

// Run drives the phase machine. It is normally invoked in its own goroutine
// by Spawner.Spawn.
func (t *Task) Run(parent context.Context) {
	defer close(t.done)

	ctx, cancel := context.WithCancel(parent)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()
	defer cancel()

	t.setPhase(PhaseInit)
	for _, item := range t.items {
		t.sess.AppendHistory(item)
	}

	var lastMessage string
	var terminalErr error

	for iteration := 0; iteration < MaxIterations; iteration++ {
		select {
		case <-ctx.Done():
			t.synthesizeAbortedOutputs()
			terminalErr = ErrAborted
			goto complete
		default:
		}

		t.setPhase(PhaseStream)
		items, usage, text, err := t.streamWithRetry(ctx)
		if err != nil {
			terminalErr = err
			t.sess.Emit(session.Event{Type: session.EventStreamError, Err: err.Error()})
			goto complete
		}
		if text != "" {
			lastMessage = text
		}
		t.sess.TokenInfo.Add(usage.InputTokens, usage.OutputTokens, usage.CachedTokens)
		t.sess.Emit(session.Event{Type: session.EventTokenCount, TokenInfo: &t.sess.TokenInfo})

		for _, item := range items {
			t.sess.AppendHistory(item)
		}

		calls := callItems(items)
		if len(calls) == 0 {
			t.setPhase(PhaseComplete)
			goto complete
		}

		t.setPhase(PhaseExecuteTools)
		select {
		case <-ctx.Done():
			t.synthesizeAbortedOutputs()
			terminalErr = ErrAborted
			goto complete
		default:
		}
		outputs := t.dispatcher.ExecuteAll(ctx, t.sess, calls, t.turnCtx)
		for _, out := range outputs {
			t.sess.AppendHistory(out)
		}

		t.setPhase(PhaseContinue)
	}
	terminalErr = ErrMaxIterations

complete:
	t.setPhase(PhaseComplete)
	ev := session.Event{Type: session.EventTaskComplete, LastMessage: lastMessage}
	if terminalErr != nil && terminalErr != ErrAborted {
		ev.Type = session.EventError
		ev.Err = terminalErr.Error()
	}
	t.sess.Emit(ev)
}

// synthesizeAbortedOutputs implements invariant 1: every call item in
// history without a matching output gets a synthetic "aborted" output
// before the task ends, so the transcript never has a dangling call.
func (t *Task) synthesizeAbortedOutputs() {
	history := t.sess.History()
	answered := make(map[string]bool)
	for _, item := range history {
		if item.IsOutput() {
			answered[item.MatchID()] = true
		}
	}
	for _, item := range history {
		if item.IsCall() && !answered[item.MatchID()] {
			t.sess.AppendHistory(models.NewAbortedOutput(item.MatchID()))
		}
	}
}

func callItems(items []*models.ResponseItem) []*models.ResponseItem {
	var out []*models.ResponseItem
	for _, item := range items {
		if item.IsCall() {
			out = append(out, item)
		}
	}
	return out
}

// streamWithRetry calls the provider, retrying retryable StreamErrorKinds
// with exponential backoff up to retry.MaxAttempts, mirroring the teacher's
// ExecuteConcurrently retry-with-backoff loop (internal/agent/tool_exec.go)
// applied to the provider stream instead of a tool call.
func (t *Task) streamWithRetry(ctx context.Context) ([]*models.ResponseItem, models.TokenInfo, string, error) {
	if t.provider == nil {
		return nil, models.TokenInfo{}, "", ErrNoProvider
	}
	var lastErr error
	for attempt := 1; attempt <= t.retry.MaxAttempts; attempt++ {
		items, usage, text, err := t.streamOnce(ctx)
		if err == nil {
			return items, usage, text, nil
		}
		lastErr = err
		kind := classifyStreamError(err)
		if !kind.Retryable() || attempt == t.retry.MaxAttempts {
			break
		}
		delay := time.Duration(t.retry.DelayFor(attempt)) * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, models.TokenInfo{}, "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, models.TokenInfo{}, "", &TaskError{Phase: PhaseStream, Message: "provider stream failed", Cause: lastErr}
}

func (t *Task) streamOnce(ctx context.Context) ([]*models.ResponseItem, models.TokenInfo, string, error) {
	req := StreamRequest{
		Model:            t.turnCtx.Model,
		Effort:           t.turnCtx.Effort,
		BaseInstructions: t.turnCtx.BaseInstructions,
		History:          t.sess.History(),
		Tools:            t.dispatcher.Specs(t.turnCtx),
	}
	ch, err := t.provider.Stream(ctx, req)
	if err != nil {
		return nil, models.TokenInfo{}, "", err
	}
	var items []*models.ResponseItem
	var usage models.TokenInfo
	var text string
	for ev := range ch {
		switch ev.Kind {
		case StreamEventTextDelta:
			text += ev.Delta
			t.sess.Emit(session.Event{Type: session.EventAgentMessageDelta, Text: ev.Delta})
		case StreamEventReasoningDelta:
			t.sess.Emit(session.Event{Type: session.EventReasoningDelta, Text: ev.Delta})
		case StreamEventItem:
			if ev.Item != nil {
				items = append(items, ev.Item)
			}
		case StreamEventTokenUsage:
			usage.InputTokens += ev.InputTokens
			usage.OutputTokens += ev.OutputTokens
			usage.CachedInputTokens += ev.CachedTokens
		case StreamEventDone:
		}
	}
	if text != "" {
		items = append(items, models.NewAssistantMessage(text))
		t.sess.Emit(session.Event{Type: session.EventAgentMessage, Text: text})
	}
	return items, usage, text, nil
}
