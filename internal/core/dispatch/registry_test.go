package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/turn"
)

func echoHandler(ctx context.Context, sess turn.ApprovalSession, turnCtx models.TurnContext, args json.RawMessage) (string, error) {
	return "ok", nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Tool{Spec: turn.ToolSpec{Name: "echo"}, Handler: echoHandler}, nil); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	tool, ok := r.Get("echo")
	if !ok {
		t.Fatal("expected echo to be registered")
	}
	if tool.Spec.Name != "echo" {
		t.Errorf("Spec.Name = %q", tool.Spec.Name)
	}
}

func TestRegistry_Get_UnknownReturnsFalse(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("missing"); ok {
		t.Fatal("expected ok=false for an unregistered tool")
	}
}

func TestRegistry_Register_CompilesSchema(t *testing.T) {
	r := NewRegistry()
	schema := []byte(`{"type":"object","required":["path"],"properties":{"path":{"type":"string"}}}`)
	if err := r.Register(Tool{Spec: turn.ToolSpec{Name: "read"}, Handler: echoHandler}, schema); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	tool, _ := r.Get("read")
	if err := tool.ValidateArgs(json.RawMessage(`{"path":"a.txt"}`)); err != nil {
		t.Errorf("expected valid args to pass, got %v", err)
	}
	if err := tool.ValidateArgs(json.RawMessage(`{}`)); err == nil {
		t.Error("expected missing required field to fail validation")
	}
}

func TestRegistry_Register_InvalidSchemaErrors(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Tool{Spec: turn.ToolSpec{Name: "bad"}, Handler: echoHandler}, []byte(`not json`))
	if err == nil {
		t.Fatal("expected an error for a malformed schema")
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(Tool{Spec: turn.ToolSpec{Name: "echo"}, Handler: echoHandler}, nil)
	r.Unregister("echo")
	if _, ok := r.Get("echo"); ok {
		t.Fatal("expected echo to be removed")
	}
}

func TestRegistry_Specs_NoFilterReturnsAll(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(Tool{Spec: turn.ToolSpec{Name: "a"}, Handler: echoHandler}, nil)
	_ = r.Register(Tool{Spec: turn.ToolSpec{Name: "b"}, Handler: echoHandler}, nil)

	specs := r.Specs(nil)
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
}

func TestRegistry_Specs_AppliesFilter(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(Tool{Spec: turn.ToolSpec{Name: "a"}, Handler: echoHandler}, nil)
	_ = r.Register(Tool{Spec: turn.ToolSpec{Name: "b"}, Handler: echoHandler}, nil)

	specs := r.Specs(func(name string) bool { return name == "a" })
	if len(specs) != 1 || specs[0].Name != "a" {
		t.Errorf("specs = %+v", specs)
	}
}

func TestTool_ValidateArgs_NilSchemaAlwaysPasses(t *testing.T) {
	tool := &Tool{Spec: turn.ToolSpec{Name: "noop"}}
	if err := tool.ValidateArgs(json.RawMessage(`anything not even json`)); err != nil {
		t.Errorf("expected nil-schema tool to skip validation, got %v", err)
	}
}
