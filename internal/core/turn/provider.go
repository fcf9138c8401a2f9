package turn

import (
	"context"

	"github.com/agentcore/coreagent/internal/core/models"
)

// ToolSpec is the provider-facing shape of one dispatchable tool: name,
// description, and JSON-schema parameters. internal/core/dispatch builds
// these from its registry; turn only needs the wire shape to hand to a
// Provider.
type ToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
}

// StreamRequest is everything a Provider needs to run one model turn.
type StreamRequest struct {
	Model            string
	Effort           string
	BaseInstructions string
	History          []*models.ResponseItem
	Tools            []ToolSpec
}

// StreamEventKind tags the variant of a StreamEvent.
type StreamEventKind int

const (
	StreamEventTextDelta StreamEventKind = iota
	StreamEventReasoningDelta
	StreamEventReasoningSummary
	StreamEventItem
	StreamEventTokenUsage
	StreamEventDone
)

// StreamEvent is one unit of a Provider's streamed response: either a delta
// for the UI, a completed ResponseItem (message/function_call/...), a token
// usage update, or the terminal Done marker.
type StreamEvent struct {
	Kind  StreamEventKind
	Delta string
	Item  *models.ResponseItem

	InputTokens  int64
	OutputTokens int64
	CachedTokens int64
}

// Provider is the shared interface every concrete LLM backend
// (internal/core/providers/anthropic, /openai, /bedrock) implements.
type Provider struct {
	Name string
	Impl ProviderImpl
}

// ProviderImpl is the streaming call a concrete adapter implements.
type ProviderImpl interface {
	Stream(ctx context.Context, req StreamRequest) (<-chan StreamEvent, error)
}

// Stream delegates to the concrete implementation.
func (p Provider) Stream(ctx context.Context, req StreamRequest) (<-chan StreamEvent, error) {
	return p.Impl.Stream(ctx, req)
}

// FailoverProvider tries each provider in order, advancing to the next only
// when the prior one fails before producing any event (a cold failure, e.g.
// auth or connection refused) rather than mid-stream, so the event channel
// contract is never produced from two providers at once. Supplemental
// feature beyond the distilled spec, grounded on the teacher's own
// multi-provider go.mod (anthropic-sdk-go + go-openai + bedrockruntime all
// present simultaneously).
type FailoverProvider struct {
	Providers []Provider
}

func (f FailoverProvider) Stream(ctx context.Context, req StreamRequest) (<-chan StreamEvent, error) {
	var lastErr error
	for _, p := range f.Providers {
		ch, err := p.Stream(ctx, req)
		if err == nil {
			return ch, nil
		}
		lastErr = err
		if !classifyStreamError(err).Retryable() {
			continue
		}
	}
	return nil, lastErr
}
