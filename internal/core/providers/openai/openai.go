// Package openai adapts the OpenAI chat-completions API to turn.ProviderImpl
// via the sashabaranov/go-openai client, converting ResponseItem history to
// and from OpenAI's message/tool-call wire format.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/turn"
)

// Config holds the settings needed to construct a Provider.
type Config struct {
	// APIKey is the OpenAI API authentication key (required).
	APIKey string

	// BaseURL overrides the default OpenAI API base URL, for
	// OpenAI-compatible gateways.
	BaseURL string

	// MaxRetries bounds cold-failure reconnect attempts.
	MaxRetries int

	// RetryDelay is the base delay between reconnect attempts.
	RetryDelay time.Duration

	// DefaultModel is used when a StreamRequest doesn't specify one.
	DefaultModel string
}

// Provider implements turn.ProviderImpl against OpenAI's chat-completions
// streaming API.
type Provider struct {
	client       *goopenai.Client
	maxRetries   int
	retryDelay   time.Duration
	defaultModel string
}

// New constructs a Provider from cfg, applying defaults for unset fields.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client:       goopenai.NewClientWithConfig(clientCfg),
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		defaultModel: cfg.DefaultModel,
	}, nil
}

// Stream implements turn.ProviderImpl.
func (p *Provider) Stream(ctx context.Context, req turn.StreamRequest) (<-chan turn.StreamEvent, error) {
	messages := convertHistory(req.History, req.BaseInstructions)

	chatReq := goopenai.ChatCompletionRequest{
		Model:    p.model(req.Model),
		Messages: messages,
		Stream:   true,
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertTools(req.Tools)
	}

	var stream *goopenai.ChatCompletionStream
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		stream, err = p.client.CreateChatCompletionStream(ctx, chatReq)
		if err == nil {
			break
		}
		if !isRetryableError(err) || attempt == p.maxRetries {
			return nil, fmt.Errorf("openai: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.retryDelay * time.Duration(attempt+1)):
		}
	}

	events := make(chan turn.StreamEvent, 16)
	go p.consume(ctx, stream, events)
	return events, nil
}

func (p *Provider) consume(ctx context.Context, stream *goopenai.ChatCompletionStream, events chan<- turn.StreamEvent) {
	defer close(events)
	defer stream.Close()

	type pendingCall struct {
		id, name string
		args     strings.Builder
	}
	calls := make(map[int]*pendingCall)
	order := make([]int, 0, 4)
	var inputTokens, outputTokens int64

	flush := func() {
		for _, idx := range order {
			c := calls[idx]
			if c == nil || c.id == "" || c.name == "" {
				continue
			}
			events <- turn.StreamEvent{
				Kind: turn.StreamEventItem,
				Item: models.NewFunctionCall(c.id, c.name, json.RawMessage(c.args.String())),
			}
		}
		calls = make(map[int]*pendingCall)
		order = order[:0]
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		resp, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				flush()
				events <- turn.StreamEvent{Kind: turn.StreamEventTokenUsage, InputTokens: inputTokens, OutputTokens: outputTokens}
				events <- turn.StreamEvent{Kind: turn.StreamEventDone}
				return
			}
			// Mid-stream error: leave recovery to the turn engine's retry
			// policy rather than reconnecting here, since tokens already
			// streamed to the caller can't be replayed into a new request.
			return
		}

		if resp.Usage != nil {
			inputTokens = int64(resp.Usage.PromptTokens)
			outputTokens = int64(resp.Usage.CompletionTokens)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			events <- turn.StreamEvent{Kind: turn.StreamEventTextDelta, Delta: delta.Content}
		}

		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			c, ok := calls[idx]
			if !ok {
				c = &pendingCall{}
				calls[idx] = c
				order = append(order, idx)
			}
			if tc.ID != "" {
				c.id = tc.ID
			}
			if tc.Function.Name != "" {
				c.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				c.args.WriteString(tc.Function.Arguments)
			}
		}

		if choice.FinishReason == goopenai.FinishReasonToolCalls {
			flush()
		}
	}
}

func (p *Provider) model(requested string) string {
	if requested == "" {
		return p.defaultModel
	}
	return requested
}

func convertHistory(items []*models.ResponseItem, systemPrompt string) []goopenai.ChatCompletionMessage {
	result := make([]goopenai.ChatCompletionMessage, 0, len(items)+1)
	if systemPrompt != "" {
		result = append(result, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	for _, item := range items {
		switch item.Type {
		case models.ItemMessage:
			role := goopenai.ChatMessageRoleUser
			if item.Role == models.RoleAssistant {
				role = goopenai.ChatMessageRoleAssistant
			} else if item.Role == models.RoleSystem {
				role = goopenai.ChatMessageRoleSystem
			}
			result = append(result, goopenai.ChatCompletionMessage{Role: role, Content: contentText(item)})

		case models.ItemFunctionCall:
			result = append(result, goopenai.ChatCompletionMessage{
				Role: goopenai.ChatMessageRoleAssistant,
				ToolCalls: []goopenai.ToolCall{{
					ID:   item.CallID,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      item.Name,
						Arguments: string(item.Arguments),
					},
				}},
			})

		case models.ItemFunctionCallOut, models.ItemLocalShellOut, models.ItemCustomToolOut:
			result = append(result, goopenai.ChatCompletionMessage{
				Role:       goopenai.ChatMessageRoleTool,
				Content:    item.Output,
				ToolCallID: item.MatchID(),
			})
		}
	}
	return result
}

func contentText(item *models.ResponseItem) string {
	var b strings.Builder
	for _, block := range item.Content {
		b.WriteString(block.Text)
	}
	return b.String()
}

func convertTools(tools []turn.ToolSpec) []goopenai.Tool {
	result := make([]goopenai.Tool, len(tools))
	for i, tool := range tools {
		result[i] = goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		}
	}
	return result
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"rate limit", "429", "500", "502", "503", "504", "timeout", "deadline exceeded"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
