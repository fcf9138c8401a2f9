// Package bedrock adapts the AWS Bedrock Converse streaming API to
// turn.ProviderImpl, exercising a third, structurally different transport
// (AWS SDK request/response + event stream) behind the same interface the
// anthropic and openai adapters implement.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/turn"
)

// Config holds the settings needed to construct a Provider.
type Config struct {
	// Region is the AWS region (default: us-east-1).
	Region string

	// AccessKeyID for explicit credentials; falls back to the default
	// credential chain (env, IAM role) when empty.
	AccessKeyID string

	// SecretAccessKey for explicit credentials.
	SecretAccessKey string

	// SessionToken for temporary credentials.
	SessionToken string

	// DefaultModel is used when a StreamRequest doesn't specify one.
	DefaultModel string

	// MaxRetries bounds cold-failure reconnect attempts.
	MaxRetries int

	// RetryDelay is the base delay between reconnect attempts.
	RetryDelay time.Duration
}

// Provider implements turn.ProviderImpl against AWS Bedrock's ConverseStream
// API, reachable for any foundation model (Anthropic, Titan, Llama, ...)
// hosted there.
type Provider struct {
	client       *bedrockruntime.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// New constructs a Provider from cfg, applying defaults for unset fields.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
	}

	return &Provider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}, nil
}

// Stream implements turn.ProviderImpl.
func (p *Provider) Stream(ctx context.Context, req turn.StreamRequest) (<-chan turn.StreamEvent, error) {
	if p.client == nil {
		return nil, errors.New("bedrock: client not initialized")
	}

	model := p.model(req.Model)
	messages := convertHistory(req.History)

	converseReq := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(model),
		Messages: messages,
	}
	if req.BaseInstructions != "" {
		converseReq.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.BaseInstructions},
		}
	}
	if len(req.Tools) > 0 {
		converseReq.ToolConfig = convertTools(req.Tools)
	}

	var out *bedrockruntime.ConverseStreamOutput
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		out, err = p.client.ConverseStream(ctx, converseReq)
		if err == nil {
			break
		}
		if !isRetryableError(err) || attempt == p.maxRetries {
			return nil, fmt.Errorf("bedrock: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.retryDelay * time.Duration(attempt+1)):
		}
	}

	events := make(chan turn.StreamEvent, 16)
	go p.consume(ctx, out, events)
	return events, nil
}

func (p *Provider) consume(ctx context.Context, out *bedrockruntime.ConverseStreamOutput, events chan<- turn.StreamEvent) {
	defer close(events)

	eventStream := out.GetStream()
	defer eventStream.Close()

	var toolCallID, toolCallName string
	var toolInput strings.Builder

	eventChan := eventStream.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-eventChan:
			if !ok {
				if toolCallID != "" {
					events <- turn.StreamEvent{
						Kind: turn.StreamEventItem,
						Item: models.NewFunctionCall(toolCallID, toolCallName, json.RawMessage(toolInput.String())),
					}
				}
				events <- turn.StreamEvent{Kind: turn.StreamEventDone}
				return
			}

			switch v := ev.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if toolUse, ok := v.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					toolCallID = aws.ToString(toolUse.Value.ToolUseId)
					toolCallName = aws.ToString(toolUse.Value.Name)
					toolInput.Reset()
				}

			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch delta := v.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					if delta.Value != "" {
						events <- turn.StreamEvent{Kind: turn.StreamEventTextDelta, Delta: delta.Value}
					}
				case *types.ContentBlockDeltaMemberToolUse:
					if delta.Value.Input != nil {
						toolInput.WriteString(*delta.Value.Input)
					}
				}

			case *types.ConverseStreamOutputMemberContentBlockStop:
				if toolCallID != "" {
					events <- turn.StreamEvent{
						Kind: turn.StreamEventItem,
						Item: models.NewFunctionCall(toolCallID, toolCallName, json.RawMessage(toolInput.String())),
					}
					toolCallID, toolCallName = "", ""
					toolInput.Reset()
				}

			case *types.ConverseStreamOutputMemberMetadata:
				if v.Value.Usage != nil {
					events <- turn.StreamEvent{
						Kind:         turn.StreamEventTokenUsage,
						InputTokens:  int64(aws.ToInt32(v.Value.Usage.InputTokens)),
						OutputTokens: int64(aws.ToInt32(v.Value.Usage.OutputTokens)),
					}
				}

			case *types.ConverseStreamOutputMemberMessageStop:
				events <- turn.StreamEvent{Kind: turn.StreamEventDone}
				return
			}
		}
	}
}

func (p *Provider) model(requested string) string {
	if requested == "" {
		return p.defaultModel
	}
	return requested
}

func convertHistory(items []*models.ResponseItem) []types.Message {
	result := make([]types.Message, 0, len(items))
	for _, item := range items {
		var content []types.ContentBlock

		switch item.Type {
		case models.ItemMessage:
			if item.Role == models.RoleSystem {
				continue
			}
			text := contentText(item)
			if text == "" {
				continue
			}
			content = append(content, &types.ContentBlockMemberText{Value: text})

		case models.ItemFunctionCall:
			var input any
			if len(item.Arguments) > 0 {
				if err := json.Unmarshal(item.Arguments, &input); err != nil {
					input = map[string]any{}
				}
			}
			content = append(content, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(item.CallID),
					Name:      aws.String(item.Name),
					Input:     document.NewLazyDocument(input),
				},
			})

		case models.ItemFunctionCallOut, models.ItemLocalShellOut, models.ItemCustomToolOut:
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(item.MatchID()),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: item.Output}},
				},
			})

		default:
			continue
		}

		role := types.ConversationRoleUser
		if item.Type == models.ItemFunctionCall || (item.Type == models.ItemMessage && item.Role == models.RoleAssistant) {
			role = types.ConversationRoleAssistant
		}
		result = append(result, types.Message{Role: role, Content: content})
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

func convertTools(tools []turn.ToolSpec) *types.ToolConfiguration {
	specs := make([]types.Tool, 0, len(tools))
	for _, tool := range tools {
		params, err := json.Marshal(tool.Parameters)
		if err != nil {
			continue
		}
		var input any
		if err := json.Unmarshal(params, &input); err != nil {
			continue
		}
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(tool.Name),
				Description: aws.String(tool.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(input)},
			},
		})
	}
	if len(specs) == 0 {
		return nil
	}
	return &types.ToolConfiguration{Tools: specs}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"throttlingexception", "toomanyrequestsexception", "serviceunavailableexception",
		"rate limit", "429", "500", "502", "503", "504", "timeout", "deadline exceeded",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
