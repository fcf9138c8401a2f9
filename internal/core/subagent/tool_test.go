package subagent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentcore/coreagent/internal/core/dispatch"
	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/session"
)

// fakeApprovalSession is the minimal turn.ApprovalSession stand-in needed
// to exercise Handler.Handle without a real session.
type fakeApprovalSession struct {
	id     string
	events []session.Event
}

func (f *fakeApprovalSession) RegisterApproval(id string) chan models.ReviewDecision { return nil }
func (f *fakeApprovalSession) IsCommandApproved(key string) bool                     { return false }
func (f *fakeApprovalSession) ApproveForSession(key string)                          {}
func (f *fakeApprovalSession) Emit(e session.Event)                                  { f.events = append(f.events, e) }
func (f *fakeApprovalSession) ID() string                                            { return f.id }
func (f *fakeApprovalSession) QueueInput(items ...*models.ResponseItem) error        { return nil }

func TestHandler_Handle_UnknownAgentErrors(t *testing.T) {
	catalog := NewCatalog(map[string]*Definition{})
	runner := NewRunner(echoProvider{reply: "ok"}, dispatch.NewRegistry(), NewRegistry(), nil)
	h := NewHandler(catalog, runner)

	args, _ := json.Marshal(invokeArgs{Agent: "ghost", Task: "do it"})
	_, err := h.Handle(context.Background(), &fakeApprovalSession{id: "s1"}, models.TurnContext{}, args)
	if err == nil {
		t.Fatal("expected error for unknown sub-agent")
	}
}

func TestHandler_Handle_InvokesKnownAgentAndEmitsLifecycleEvents(t *testing.T) {
	def := &Definition{Name: "builder", Instructions: "build things"}
	catalog := NewCatalog(map[string]*Definition{"builder": def})
	runner := NewRunner(echoProvider{reply: "built it"}, dispatch.NewRegistry(), NewRegistry(), nil)
	h := NewHandler(catalog, runner)

	sess := &fakeApprovalSession{id: "parent-1"}
	args, _ := json.Marshal(invokeArgs{Agent: "builder", Task: "build the thing"})
	result, err := h.Handle(context.Background(), sess, models.TurnContext{}, args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "built it" {
		t.Errorf("result = %q", result)
	}

	if len(sess.events) != 2 {
		t.Fatalf("expected begin+end events, got %d", len(sess.events))
	}
	if sess.events[0].Type != session.EventSubAgentBegin {
		t.Errorf("first event = %v, want EventSubAgentBegin", sess.events[0].Type)
	}
	end := sess.events[1]
	if end.Type != session.EventSubAgentEnd || !end.Success || end.Text != "built it" {
		t.Errorf("end event = %+v", end)
	}
}

func TestHandler_Handle_InvalidArgsErrors(t *testing.T) {
	h := NewHandler(NewCatalog(map[string]*Definition{}), NewRunner(echoProvider{}, dispatch.NewRegistry(), NewRegistry(), nil))
	_, err := h.Handle(context.Background(), &fakeApprovalSession{}, models.TurnContext{}, json.RawMessage(`not json`))
	if err == nil {
		t.Fatal("expected error for malformed arguments")
	}
}

func TestHandler_Spec_ListsDiscoveredAgents(t *testing.T) {
	catalog := NewCatalog(map[string]*Definition{
		"builder":  {Name: "builder"},
		"reviewer": {Name: "reviewer"},
	})
	h := NewHandler(catalog, NewRunner(echoProvider{}, dispatch.NewRegistry(), NewRegistry(), nil))

	spec := h.Spec()
	if spec.Name != ToolName {
		t.Errorf("Name = %q", spec.Name)
	}
	props := spec.Parameters["properties"].(map[string]any)
	agentProp := props["agent"].(map[string]any)
	enum := agentProp["enum"].([]string)
	if len(enum) != 2 {
		t.Errorf("enum = %v, want 2 agents", enum)
	}
}

func TestHandler_Spec_NoAgentsDiscovered(t *testing.T) {
	h := NewHandler(NewCatalog(map[string]*Definition{}), NewRunner(echoProvider{}, dispatch.NewRegistry(), NewRegistry(), nil))
	spec := h.Spec()
	if got := spec.Description; got == "" {
		t.Error("expected a non-empty description even with no agents")
	}
}
