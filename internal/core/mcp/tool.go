package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/turn"
)

// Handler adapts a Manager into a dispatch.Handler for one qualified MCP
// tool name ("mcp:server.tool"), parsed once at registration time so the
// hot path does not re-split the name on every call.
type Handler struct {
	Manager  *Manager
	ServerID string
	ToolName string
}

// NewHandlers builds one Handler per tool currently exposed by mgr's
// connected servers, paired with its dispatch-facing spec (qualified name,
// description, sanitized schema).
func NewHandlers(mgr *Manager) []ToolBinding {
	var out []ToolBinding
	for _, t := range mgr.AllTools() {
		h := &Handler{Manager: mgr, ServerID: t.ServerID, ToolName: t.Name}
		out = append(out, ToolBinding{
			Spec: turn.ToolSpec{
				Name:        t.QualifiedName(),
				Description: t.Description,
				Parameters:  SanitizeSchema(t.InputSchema),
			},
			Schema:  t.InputSchema,
			Handler: h.Handle,
		})
	}
	return out
}

// ToolBinding is everything dispatch.Registry.Register needs for one MCP
// tool: its advertised spec, the raw schema for argument validation, and
// the dispatch.Handler-shaped function.
type ToolBinding struct {
	Spec    turn.ToolSpec
	Schema  json.RawMessage
	Handler func(ctx context.Context, sess turn.ApprovalSession, turnCtx models.TurnContext, args json.RawMessage) (string, error)
}

// Handle implements the dispatch.Handler signature by proxying the call to
// the MCP server that owns it.
func (h *Handler) Handle(ctx context.Context, _ turn.ApprovalSession, _ models.TurnContext, args json.RawMessage) (string, error) {
	out, err := h.Manager.CallTool(ctx, h.ServerID, h.ToolName, args)
	if err != nil {
		return "", fmt.Errorf("mcp:%s.%s: %w", h.ServerID, h.ToolName, err)
	}
	return out, nil
}
