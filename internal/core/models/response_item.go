// Package models defines the conversation-level data types shared by the
// session, turn engine, and tool dispatcher.
package models

import (
	"encoding/json"
	"time"
)

// ResponseItemType tags the variant held by a ResponseItem.
type ResponseItemType string

const (
	ItemMessage          ResponseItemType = "message"
	ItemFunctionCall     ResponseItemType = "function_call"
	ItemFunctionCallOut  ResponseItemType = "function_call_output"
	ItemLocalShellCall   ResponseItemType = "local_shell_call"
	ItemLocalShellOut    ResponseItemType = "local_shell_call_output"
	ItemCustomToolCall   ResponseItemType = "custom_tool_call"
	ItemCustomToolOut    ResponseItemType = "custom_tool_call_output"
	ItemReasoning        ResponseItemType = "reasoning"
	ItemWebSearchCall    ResponseItemType = "web_search_call"
	ItemSubAgentStart    ResponseItemType = "sub_agent_start"
	ItemSubAgentEnd      ResponseItemType = "sub_agent_end"
)

// MessageRole is the role of a Message item.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// ContentType tags a content block within a Message.
type ContentType string

const (
	ContentInputText  ContentType = "input_text"
	ContentOutputText ContentType = "output_text"
	ContentInputImage ContentType = "input_image"
)

// ContentBlock is one piece of a Message's content array.
type ContentBlock struct {
	Type ContentType `json:"type"`
	Text string      `json:"text,omitempty"`
	// ImageURL holds a data: or https: URL when Type is ContentInputImage.
	ImageURL string `json:"image_url,omitempty"`
}

// ShellAction describes what a LocalShellCall asked to run.
type ShellAction struct {
	Command          []string          `json:"command"`
	WorkingDirectory string            `json:"working_directory,omitempty"`
	Env              map[string]string `json:"env,omitempty"`
	TimeoutMs        int64             `json:"timeout_ms,omitempty"`
}

// ResponseItem is a tagged union over every item that can appear in a
// session's history. Exactly one of the typed fields is populated,
// matching the field named by Type.
type ResponseItem struct {
	Type ResponseItemType `json:"type"`

	// Message fields.
	Role    MessageRole    `json:"role,omitempty"`
	Content []ContentBlock `json:"content,omitempty"`

	// FunctionCall / CustomToolCall fields.
	Name      string          `json:"name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	CallID    string          `json:"call_id,omitempty"`

	// FunctionCallOutput / CustomToolCallOutput / LocalShellCallOutput fields.
	Output string `json:"output,omitempty"`

	// LocalShellCall fields.
	ID     string       `json:"id,omitempty"`
	Action *ShellAction `json:"action,omitempty"`

	// Reasoning fields.
	Summary          []string `json:"summary,omitempty"`
	ReasoningContent []string `json:"reasoning_content,omitempty"`
	EncryptedContent string   `json:"encrypted_content,omitempty"`

	// SubAgentStart / SubAgentEnd fields.
	SubAgentName        string `json:"sub_agent_name,omitempty"`
	SubAgentDescription string `json:"sub_agent_description,omitempty"`
	SubAgentOrigin      string `json:"origin,omitempty"`
	SubAgentSuccess     bool   `json:"success,omitempty"`

	// Timestamp is set when the item is appended to a session's history;
	// it is not part of the provider-facing wire shape but is recorded in
	// the rollout.
	Timestamp time.Time `json:"-"`
}

// NewUserMessage builds a Message item with a single input_text block.
func NewUserMessage(text string) *ResponseItem {
	return &ResponseItem{
		Type:    ItemMessage,
		Role:    RoleUser,
		Content: []ContentBlock{{Type: ContentInputText, Text: text}},
	}
}

// NewAssistantMessage builds a Message item with a single output_text block.
func NewAssistantMessage(text string) *ResponseItem {
	return &ResponseItem{
		Type:    ItemMessage,
		Role:    RoleAssistant,
		Content: []ContentBlock{{Type: ContentOutputText, Text: text}},
	}
}

// NewFunctionCall builds a FunctionCall item.
func NewFunctionCall(callID, name string, args json.RawMessage) *ResponseItem {
	return &ResponseItem{
		Type:      ItemFunctionCall,
		CallID:    callID,
		Name:      name,
		Arguments: args,
	}
}

// NewFunctionCallOutput builds a FunctionCallOutput item matching callID.
func NewFunctionCallOutput(callID, output string) *ResponseItem {
	return &ResponseItem{
		Type:   ItemFunctionCallOut,
		CallID: callID,
		Output: output,
	}
}

// NewAbortedOutput synthesizes the "aborted" output required by invariant 1
// when a call was interrupted before its real output arrived.
func NewAbortedOutput(callID string) *ResponseItem {
	return &ResponseItem{
		Type:   ItemFunctionCallOut,
		CallID: callID,
		Output: "aborted",
	}
}

// IsCall reports whether the item is one of the three call-bearing variants
// that must eventually be matched by an *Output item (invariant 1).
func (r *ResponseItem) IsCall() bool {
	switch r.Type {
	case ItemFunctionCall, ItemLocalShellCall, ItemCustomToolCall:
		return true
	default:
		return false
	}
}

// IsOutput reports whether the item is one of the three output variants.
func (r *ResponseItem) IsOutput() bool {
	switch r.Type {
	case ItemFunctionCallOut, ItemLocalShellOut, ItemCustomToolOut:
		return true
	default:
		return false
	}
}

// MatchID returns the call_id (or id, for LocalShellCall) that pairs a call
// with its output.
func (r *ResponseItem) MatchID() string {
	if r.CallID != "" {
		return r.CallID
	}
	return r.ID
}

// HasToolCalls reports whether any item in items is a call variant.
func HasToolCalls(items []*ResponseItem) bool {
	for _, it := range items {
		if it.IsCall() {
			return true
		}
	}
	return false
}

// TokenInfo is the running token-usage aggregate carried on Session.
type TokenInfo struct {
	InputTokens       int64 `json:"input_tokens"`
	OutputTokens      int64 `json:"output_tokens"`
	CachedInputTokens int64 `json:"cached_input_tokens"`
	ContextWindow     int64 `json:"context_window"`
}

// Add accumulates usage from one turn's Completed event.
func (t *TokenInfo) Add(input, output, cached int64) {
	t.InputTokens += input
	t.OutputTokens += output
	t.CachedInputTokens += cached
}

// Remaining reports the tokens left in the context window, floored at zero.
func (t *TokenInfo) Remaining() int64 {
	used := t.InputTokens + t.OutputTokens
	if used >= t.ContextWindow {
		return 0
	}
	return t.ContextWindow - used
}
