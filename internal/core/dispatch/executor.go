package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/session"
	"github.com/agentcore/coreagent/internal/core/turn"
)

// ExecConfig configures the concurrency/timeout/retry behavior of Executor,
// mirroring the teacher's ToolExecConfig defaults
// (internal/agent/tool_exec.go: 4 concurrent, 30s timeout, single attempt).
type ExecConfig struct {
	Concurrency    int
	PerCallTimeout time.Duration
	MaxAttempts    int
	RetryBackoff   time.Duration
}

// DefaultExecConfig returns the teacher's defaults.
func DefaultExecConfig() ExecConfig {
	return ExecConfig{
		Concurrency:    4,
		PerCallTimeout: 30 * time.Second,
		MaxAttempts:    1,
		RetryBackoff:   0,
	}
}

// ToolFilter decides whether name is available under a given turn context
// (the allow/deny/group-alias cascade internal/core/policy builds).
type ToolFilter func(turnCtx models.TurnContext, name string) bool

// Executor implements turn.ToolDispatcher: it resolves each FunctionCall
// item against a Registry and runs them concurrently with a semaphore,
// per-call timeout, and attempt/backoff loop, adapted directly from the
// teacher's ToolExecutor.ExecuteConcurrently.
type Executor struct {
	registry *Registry
	config   ExecConfig
	filter   ToolFilter
}

// NewExecutor builds an Executor. filter may be nil to allow every
// registered tool.
func NewExecutor(registry *Registry, config ExecConfig, filter ToolFilter) *Executor {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.PerCallTimeout <= 0 {
		config.PerCallTimeout = 30 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	return &Executor{registry: registry, config: config, filter: filter}
}

// Specs implements turn.ToolDispatcher.
func (e *Executor) Specs(turnCtx models.TurnContext) []turn.ToolSpec {
	return e.registry.Specs(func(name string) bool {
		if e.filter == nil {
			return true
		}
		return e.filter(turnCtx, name)
	})
}

// ExecuteAll implements turn.ToolDispatcher: it runs every call item
// concurrently, bounded by config.Concurrency, and returns one output item
// per call in the same order as the input, exactly as the teacher's
// ExecuteConcurrently guarantees ("Results are returned in the same order
// as the input tool calls").
func (e *Executor) ExecuteAll(ctx context.Context, sess turn.ApprovalSession, calls []*models.ResponseItem, turnCtx models.TurnContext) []*models.ResponseItem {
	outputs := make([]*models.ResponseItem, len(calls))
	sem := make(chan struct{}, e.config.Concurrency)
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, call *models.ResponseItem) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outputs[idx] = errorOutput(call, "context canceled")
				return
			}

			outputs[idx] = e.runOne(ctx, sess, turnCtx, call)
		}(i, call)
	}

	wg.Wait()
	return outputs
}

func (e *Executor) runOne(ctx context.Context, sess turn.ApprovalSession, turnCtx models.TurnContext, call *models.ResponseItem) *models.ResponseItem {
	name := call.Name
	t, ok := e.registry.Get(name)
	if !ok {
		return errorOutput(call, "unsupported call: "+name)
	}
	if e.filter != nil && !e.filter(turnCtx, name) {
		return errorOutput(call, "tool not permitted under current policy: "+name)
	}
	if err := t.ValidateArgs(call.Arguments); err != nil {
		return errorOutput(call, err.Error())
	}

	sess.Emit(session.Event{Type: session.EventMCPToolBegin, CallID: call.MatchID(), Text: name})

	var output string
	var lastErr error
	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.config.PerCallTimeout)
		output, lastErr = t.Handler(callCtx, sess, turnCtx, call.Arguments)
		cancel()
		if lastErr == nil {
			break
		}
		if attempt < e.config.MaxAttempts && e.config.RetryBackoff > 0 {
			select {
			case <-time.After(e.config.RetryBackoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
				goto done
			}
		}
	}
done:
	sess.Emit(session.Event{Type: session.EventMCPToolEnd, CallID: call.MatchID(), Text: name, Success: lastErr == nil})

	if lastErr != nil {
		return errorOutput(call, lastErr.Error())
	}
	return outputFor(call, output)
}

func errorOutput(call *models.ResponseItem, message string) *models.ResponseItem {
	return outputFor(call, "error: "+message)
}

func outputFor(call *models.ResponseItem, output string) *models.ResponseItem {
	switch call.Type {
	case models.ItemLocalShellCall:
		return &models.ResponseItem{Type: models.ItemLocalShellOut, ID: call.ID, Output: output}
	case models.ItemCustomToolCall:
		return &models.ResponseItem{Type: models.ItemCustomToolOut, CallID: call.CallID, Output: output}
	default:
		return models.NewFunctionCallOutput(call.CallID, output)
	}
}
