// Package anthropic adapts the Anthropic Messages API to turn.ProviderImpl,
// converting between the turn engine's ResponseItem history and Anthropic's
// content-block message format.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/turn"
)

// Config holds the settings needed to construct a Provider.
type Config struct {
	// APIKey is the Anthropic API authentication key (required).
	APIKey string

	// BaseURL overrides the default Anthropic API base URL.
	BaseURL string

	// MaxRetries bounds transport-level reconnect attempts before the cold
	// failure is handed back to the turn engine's own retry policy.
	MaxRetries int

	// RetryDelay is the base delay between reconnect attempts.
	RetryDelay time.Duration

	// DefaultModel is used when a StreamRequest doesn't specify one.
	DefaultModel string
}

// Provider implements turn.ProviderImpl against Anthropic's Messages API.
type Provider struct {
	client       anthropic.Client
	maxRetries   int
	retryDelay   time.Duration
	defaultModel string
}

// New constructs a Provider from cfg, applying defaults for unset fields.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		client:       anthropic.NewClient(opts...),
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		defaultModel: cfg.DefaultModel,
	}, nil
}

// Stream implements turn.ProviderImpl.
func (p *Provider) Stream(ctx context.Context, req turn.StreamRequest) (<-chan turn.StreamEvent, error) {
	messages, err := convertHistory(req.History)
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to convert history: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model(req.Model)),
		Messages:  messages,
		MaxTokens: 4096,
	}
	if req.BaseInstructions != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.BaseInstructions}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("anthropic: failed to convert tools: %w", err)
		}
		params.Tools = tools
	}
	if req.Effort != "" {
		budget := thinkingBudgetForEffort(req.Effort)
		if budget > 0 {
			params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
		}
	}

	events := make(chan turn.StreamEvent, 16)
	go p.consume(ctx, params, events)
	return events, nil
}

// consume drives the SSE stream, reconnecting up to maxRetries times with a
// linear backoff when a failure arrives before any event has been emitted
// (a cold failure). Once an event has reached the caller, a later stream
// error is terminal for this attempt and left for the turn engine's own
// retry policy to decide whether to call Stream again.
func (p *Provider) consume(ctx context.Context, params anthropic.MessageNewParams, events chan<- turn.StreamEvent) {
	defer close(events)

	var toolCallID, toolCallName string
	var toolInput strings.Builder
	var inputTokens, outputTokens int64
	emittedAny := false

	for attempt := 0; ; attempt++ {
		stream := p.client.Messages.NewStreaming(ctx, params)

		for stream.Next() {
			event := stream.Current()
			switch event.Type {
			case "message_start":
				ms := event.AsMessageStart()
				if ms.Message.Usage.InputTokens > 0 {
					inputTokens = ms.Message.Usage.InputTokens
				}
				emittedAny = true

			case "content_block_start":
				block := event.AsContentBlockStart().ContentBlock
				if block.Type == "tool_use" {
					toolUse := block.AsToolUse()
					toolCallID = toolUse.ID
					toolCallName = toolUse.Name
					toolInput.Reset()
				}

			case "content_block_delta":
				delta := event.AsContentBlockDelta().Delta
				switch delta.Type {
				case "text_delta":
					if delta.Text != "" {
						events <- turn.StreamEvent{Kind: turn.StreamEventTextDelta, Delta: delta.Text}
						emittedAny = true
					}
				case "thinking_delta":
					if delta.Thinking != "" {
						events <- turn.StreamEvent{Kind: turn.StreamEventReasoningDelta, Delta: delta.Thinking}
						emittedAny = true
					}
				case "input_json_delta":
					toolInput.WriteString(delta.PartialJSON)
				}

			case "content_block_stop":
				if toolCallID != "" {
					events <- turn.StreamEvent{
						Kind: turn.StreamEventItem,
						Item: models.NewFunctionCall(toolCallID, toolCallName, json.RawMessage(toolInput.String())),
					}
					toolCallID, toolCallName = "", ""
					emittedAny = true
				}

			case "message_delta":
				md := event.AsMessageDelta()
				if md.Usage.OutputTokens > 0 {
					outputTokens = md.Usage.OutputTokens
				}

			case "message_stop":
				events <- turn.StreamEvent{Kind: turn.StreamEventTokenUsage, InputTokens: inputTokens, OutputTokens: outputTokens}
				events <- turn.StreamEvent{Kind: turn.StreamEventDone}
				return
			}
		}

		err := stream.Err()
		if err == nil {
			events <- turn.StreamEvent{Kind: turn.StreamEventDone}
			return
		}

		// A cold failure (no event reached the caller yet) is worth a
		// reconnect here; a mid-stream failure is left for the turn
		// engine's own retry policy to decide whether to call Stream again.
		if emittedAny || attempt >= p.maxRetries {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.retryDelay * time.Duration(attempt+1)):
		}
	}
}

func (p *Provider) model(requested string) string {
	if requested == "" {
		return p.defaultModel
	}
	return requested
}

func thinkingBudgetForEffort(effort string) int64 {
	switch strings.ToLower(effort) {
	case "high", "xhigh", "max":
		return 32000
	case "medium":
		return 10000
	case "low":
		return 1024
	default:
		return 0
	}
}

func convertHistory(items []*models.ResponseItem) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, item := range items {
		switch item.Type {
		case models.ItemMessage:
			if item.Role == models.RoleSystem {
				continue
			}
			var content []anthropic.ContentBlockParamUnion
			for _, block := range item.Content {
				if block.Text != "" {
					content = append(content, anthropic.NewTextBlock(block.Text))
				}
			}
			if item.Role == models.RoleAssistant {
				result = append(result, anthropic.NewAssistantMessage(content...))
			} else {
				result = append(result, anthropic.NewUserMessage(content...))
			}

		case models.ItemFunctionCall:
			var input map[string]any
			if len(item.Arguments) > 0 {
				if err := json.Unmarshal(item.Arguments, &input); err != nil {
					return nil, fmt.Errorf("invalid arguments for call %s: %w", item.CallID, err)
				}
			}
			result = append(result, anthropic.NewAssistantMessage(
				anthropic.NewToolUseBlock(item.CallID, input, item.Name),
			))

		case models.ItemFunctionCallOut, models.ItemLocalShellOut, models.ItemCustomToolOut:
			result = append(result, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(item.MatchID(), item.Output, false),
			))
		}
	}
	return result, nil
}

func convertTools(tools []turn.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		raw, err := json.Marshal(tool.Parameters)
		if err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", tool.Name)
		}
		param.OfTool.Description = anthropic.String(tool.Description)
		result = append(result, param)
	}
	return result, nil
}
