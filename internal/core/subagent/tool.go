package subagent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/session"
	"github.com/agentcore/coreagent/internal/core/turn"
)

// ToolName is the function-call name the turn engine dispatches to reach
// invokeArgs below. Each discovered Definition also gets its own
// "agent_<name>" entry registered by Register, for models that prefer a
// dedicated tool per sub-agent over a single dispatch-by-name tool.
const ToolName = "invoke_agent"

// ListToolName and DescribeToolName are spec.md §4.6's read-side
// sub-agent tools: list every discovered agent, and describe one by name.
const (
	ListToolName     = "subagent_list"
	DescribeToolName = "subagent_describe"
)

type invokeArgs struct {
	Agent string `json:"agent"`
	Task  string `json:"task"`
}

// Handler adapts a Runner and Catalog into a dispatch.Handler.
type Handler struct {
	Catalog *Catalog
	Runner  *Runner
}

// NewHandler builds a Handler.
func NewHandler(catalog *Catalog, runner *Runner) *Handler {
	return &Handler{Catalog: catalog, Runner: runner}
}

// Handle implements the dispatch.Handler signature for ToolName: args
// decode to {"agent": "<name>", "task": "<description>"}.
func (h *Handler) Handle(ctx context.Context, sess turn.ApprovalSession, turnCtx models.TurnContext, args json.RawMessage) (string, error) {
	var req invokeArgs
	if err := json.Unmarshal(args, &req); err != nil {
		return "", fmt.Errorf("invoke_agent: invalid arguments: %w", err)
	}
	def := h.Catalog.Get(req.Agent)
	if def == nil {
		return "", fmt.Errorf("invoke_agent: unknown sub-agent %q", req.Agent)
	}

	sess.Emit(session.Event{Type: session.EventSubAgentBegin, SubAgentName: def.Name, Text: req.Task})
	result, err := h.Runner.Invoke(ctx, def, sess.ID(), req.Task)
	sess.Emit(session.Event{Type: session.EventSubAgentEnd, SubAgentName: def.Name, Success: err == nil, Text: result})
	if err != nil {
		return "", err
	}
	return result, nil
}

type describeArgs struct {
	Name string `json:"name"`
}

// HandleList implements dispatch.Handler for ListToolName: it takes no
// arguments and returns {"agents": [name, ...]}.
func (h *Handler) HandleList(ctx context.Context, sess turn.ApprovalSession, turnCtx models.TurnContext, args json.RawMessage) (string, error) {
	out, err := json.Marshal(struct {
		Agents []string `json:"agents"`
	}{Agents: h.Catalog.List()})
	if err != nil {
		return "", fmt.Errorf("subagent_list: %w", err)
	}
	return string(out), nil
}

// HandleDescribe implements dispatch.Handler for DescribeToolName: args
// decode to {"name": "<agent>"}, returning {name, description, tools, body}
// or a "not found" error per spec.md §4.6.
func (h *Handler) HandleDescribe(ctx context.Context, sess turn.ApprovalSession, turnCtx models.TurnContext, args json.RawMessage) (string, error) {
	var req describeArgs
	if err := json.Unmarshal(args, &req); err != nil {
		return "", fmt.Errorf("subagent_describe: invalid arguments: %w", err)
	}
	def := h.Catalog.Get(req.Name)
	if def == nil {
		return "", fmt.Errorf("subagent_describe: not found: %q", req.Name)
	}
	out, err := json.Marshal(struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Tools       []string `json:"tools"`
		Body        string   `json:"body"`
	}{Name: def.Name, Description: def.Description, Tools: def.Tools, Body: def.Instructions})
	if err != nil {
		return "", fmt.Errorf("subagent_describe: %w", err)
	}
	return string(out), nil
}

// ListSpec returns the turn.ToolSpec for ListToolName.
func (h *Handler) ListSpec() turn.ToolSpec {
	return turn.ToolSpec{
		Name:        ListToolName,
		Description: "List available sub-agents with their names and descriptions.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}
}

// DescribeSpec returns the turn.ToolSpec for DescribeToolName.
func (h *Handler) DescribeSpec() turn.ToolSpec {
	return turn.ToolSpec{
		Name:        DescribeToolName,
		Description: "Get detailed information about a specific sub-agent, including its tools and prompt body.",
		Parameters: map[string]any{
			"type":     "object",
			"required": []string{"name"},
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
			},
		},
	}
}

// Spec returns the turn.ToolSpec advertising ToolName, listing the
// currently-discovered sub-agent names in its description so the model
// knows what it may pass as "agent".
func (h *Handler) Spec() turn.ToolSpec {
	names := h.Catalog.List()
	return turn.ToolSpec{
		Name:        ToolName,
		Description: "Delegate a task to a named sub-agent. Available agents: " + joinOrNone(names),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"agent": map[string]any{"type": "string", "enum": names},
				"task":  map[string]any{"type": "string"},
			},
			"required": []string{"agent", "task"},
		},
	}
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "(none discovered)"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}

// Schema is the JSON-schema body for ToolName's arguments, used when
// registering with dispatch.Registry (which validates via
// github.com/santhosh-tekuri/jsonschema/v5).
var Schema = []byte(`{
  "type": "object",
  "properties": {
    "agent": {"type": "string"},
    "task": {"type": "string"}
  },
  "required": ["agent", "task"]
}`)
