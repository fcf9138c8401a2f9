package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentcore/coreagent/internal/core/models"
)

func TestNewHandlers_EmptyWhenNoToolsConnected(t *testing.T) {
	mgr := NewManager(nil, nil)
	bindings := NewHandlers(mgr)
	if len(bindings) != 0 {
		t.Errorf("expected no bindings, got %d", len(bindings))
	}
}

func TestHandler_Handle_ProxiesToManagerAndWrapsError(t *testing.T) {
	mgr := NewManager([]ServerConfig{{ID: "github"}}, nil)
	h := &Handler{Manager: mgr, ServerID: "github", ToolName: "search_issues"}

	_, err := h.Handle(context.Background(), nil, models.TurnContext{}, json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected an error because the server is not connected")
	}
}

func TestHandler_Handle_UnknownServerErrorIsQualified(t *testing.T) {
	mgr := NewManager(nil, nil)
	h := &Handler{Manager: mgr, ServerID: "ghost", ToolName: "do_thing"}

	_, err := h.Handle(context.Background(), nil, models.TurnContext{}, json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected an error for an unconfigured server")
	}
}
