package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestClient_CallTool_InvalidArgumentsErrors(t *testing.T) {
	c := newClient(ServerConfig{ID: "github"}, slog.Default())
	_, err := c.CallTool(context.Background(), "search", json.RawMessage(`not json`))
	if err == nil {
		t.Fatal("expected an error for malformed arguments")
	}
}

func TestClient_CallTool_NotConnectedErrors(t *testing.T) {
	c := newClient(ServerConfig{ID: "github"}, slog.Default())
	_, err := c.CallTool(context.Background(), "search", json.RawMessage(`{"q":"bug"}`))
	if err == nil {
		t.Fatal("expected an error calling a tool before Connect")
	}
}

func TestClient_Tools_ReturnsIndependentCopy(t *testing.T) {
	c := newClient(ServerConfig{ID: "github"}, slog.Default())
	c.tools = []Tool{{Name: "search_issues"}}

	got := c.Tools()
	got[0].Name = "mutated"

	if c.tools[0].Name != "search_issues" {
		t.Error("Tools() should return a copy, not alias the internal slice")
	}
}

func TestClient_Connected_FalseBeforeConnect(t *testing.T) {
	c := newClient(ServerConfig{ID: "github"}, slog.Default())
	if c.Connected() {
		t.Error("expected Connected() to be false before Connect")
	}
}

func TestClient_ServerInfo_ZeroValueBeforeConnect(t *testing.T) {
	c := newClient(ServerConfig{ID: "github"}, slog.Default())
	if info := c.ServerInfo(); info != (ServerInfo{}) {
		t.Errorf("expected zero-value ServerInfo, got %+v", info)
	}
}
