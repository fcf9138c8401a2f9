// Package dispatch implements the tool dispatcher of spec.md §4.3:
// a registry of callable tools, JSON-schema argument validation, and a
// concurrency-bounded, timeout-and-retry executor adapted from the
// teacher's internal/agent/tool_registry.go and tool_exec.go.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/turn"
)

// Handler executes one tool call and returns its textual output. sess is
// passed through so handlers that need approval (exec, apply-patch) can
// call sess.RegisterApproval/IsCommandApproved without the dispatcher
// needing to know which tools require it.
type Handler func(ctx context.Context, sess turn.ApprovalSession, turnCtx models.TurnContext, args json.RawMessage) (string, error)

// Tool is one entry in the Registry: its wire spec plus the Go function
// that runs it and an optional compiled schema for argument validation.
type Tool struct {
	Spec    turn.ToolSpec
	Handler Handler
	schema  *jsonschema.Schema
}

// Registry holds every tool the turn engine may call, keyed by name,
// mirroring the teacher's ToolRegistry (internal/agent/tool_registry.go)
// Register/Unregister/Get/AsLLMTools shape.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds or replaces a tool. schemaJSON may be nil to skip argument
// validation (used for tools with no parameters).
func (r *Registry) Register(t Tool, schemaJSON []byte) error {
	if schemaJSON != nil {
		compiled, err := compileSchema(t.Spec.Name, schemaJSON)
		if err != nil {
			return fmt.Errorf("dispatch: compile schema for %q: %w", t.Spec.Name, err)
		}
		t.schema = compiled
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Spec.Name] = &t
	return nil
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Specs returns the wire-facing ToolSpec list, filtered by the turn
// context's tool policy (spec.md §4.3's allow/deny cascade, implemented by
// internal/core/policy once wired — for now Specs returns every registered
// tool, and the filter hook is applied by Filter below).
func (r *Registry) Specs(filter func(name string) bool) []turn.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]turn.ToolSpec, 0, len(r.tools))
	for name, t := range r.tools {
		if filter != nil && !filter(name) {
			continue
		}
		out = append(out, t.Spec)
	}
	return out
}

func compileSchema(name string, schemaJSON []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	resourceName := "tool:" + name
	if err := compiler.AddResource(resourceName, jsonschemaReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile(resourceName)
}
