package patch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/session"
)

// fakeApprovalSession is the minimal turn.ApprovalSession stand-in used to
// exercise Handler.Handle without a real session.
type fakeApprovalSession struct {
	id        string
	events    []session.Event
	approvals map[string]chan models.ReviewDecision
	approved  map[string]bool
	decision  models.ReviewDecision
}

func newFakeApprovalSession(decision models.ReviewDecision) *fakeApprovalSession {
	return &fakeApprovalSession{
		id:        "sess-1",
		approvals: make(map[string]chan models.ReviewDecision),
		approved:  make(map[string]bool),
		decision:  decision,
	}
}

func (f *fakeApprovalSession) RegisterApproval(id string) chan models.ReviewDecision {
	ch := make(chan models.ReviewDecision, 1)
	f.approvals[id] = ch
	ch <- f.decision
	return ch
}
func (f *fakeApprovalSession) IsCommandApproved(key string) bool { return f.approved[key] }
func (f *fakeApprovalSession) ApproveForSession(key string)      { f.approved[key] = true }
func (f *fakeApprovalSession) Emit(e session.Event)              { f.events = append(f.events, e) }
func (f *fakeApprovalSession) ID() string                        { return f.id }
func (f *fakeApprovalSession) QueueInput(items ...*models.ResponseItem) error { return nil }

func turnCtxFor(root string) models.TurnContext {
	return models.TurnContext{
		Cwd:            root,
		ApprovalPolicy: models.ApprovalOnRequest,
		SandboxPolicy:  workspacePolicy(root),
	}
}

func TestHandler_Handle_AutoAppliesWhenWithinWritableRoot(t *testing.T) {
	root := t.TempDir()
	h := NewHandler()
	sess := newFakeApprovalSession(models.ReviewApproved)

	body := "*** Begin Patch\n*** Add File: a.txt\n+hello\n*** End Patch"
	args, _ := json.Marshal(map[string]string{"input": body})

	result, err := h.Handle(context.Background(), sess, turnCtxFor(root), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a.txt")); err != nil {
		t.Error("expected a.txt to be created")
	}
	if result == "" {
		t.Error("expected a non-empty summary")
	}

	var sawBegin, sawEnd, sawDiff bool
	for _, e := range sess.events {
		switch e.Type {
		case session.EventPatchBegin:
			sawBegin = true
		case session.EventPatchEnd:
			sawEnd = true
			if !e.Success {
				t.Error("expected success=true in EventPatchEnd")
			}
		case session.EventTurnDiff:
			sawDiff = true
		case session.EventPatchApprovalRequest:
			t.Error("did not expect an approval request for an in-root path")
		}
	}
	if !sawBegin || !sawEnd || !sawDiff {
		t.Errorf("events = %+v", sess.events)
	}
}

func TestHandler_Handle_RequestsApprovalWhenOutsideRoot(t *testing.T) {
	root := t.TempDir()
	h := NewHandler()
	sess := newFakeApprovalSession(models.ReviewApproved)

	body := "*** Begin Patch\n*** Add File: ../escape.txt\n+hello\n*** End Patch"
	args, _ := json.Marshal(map[string]string{"input": body})

	_, err := h.Handle(context.Background(), sess, turnCtxFor(root), args)
	// Apply itself still fails (the resolver rejects the escaping path),
	// but an approval request must have been emitted first.
	if err == nil {
		t.Fatal("expected Apply to fail for an escaping path even once approved")
	}

	var sawApprovalRequest bool
	for _, e := range sess.events {
		if e.Type == session.EventPatchApprovalRequest {
			sawApprovalRequest = true
		}
	}
	if !sawApprovalRequest {
		t.Error("expected an approval request event for a path outside the writable root")
	}
}

func TestHandler_Handle_DeniedApprovalAborts(t *testing.T) {
	root := t.TempDir()
	h := NewHandler()
	sess := newFakeApprovalSession(models.ReviewDenied)

	body := "*** Begin Patch\n*** Add File: ../escape.txt\n+hello\n*** End Patch"
	args, _ := json.Marshal(map[string]string{"input": body})

	_, err := h.Handle(context.Background(), sess, turnCtxFor(root), args)
	if err == nil {
		t.Fatal("expected denial to produce an error")
	}
	if _, statErr := os.Stat(filepath.Join(root, "..", "escape.txt")); statErr == nil {
		t.Error("expected no file to be written after denial")
	}
}

func TestHandler_Handle_InvalidArgumentsErrors(t *testing.T) {
	h := NewHandler()
	sess := newFakeApprovalSession(models.ReviewApproved)
	_, err := h.Handle(context.Background(), sess, models.TurnContext{}, json.RawMessage(`not json`))
	if err == nil {
		t.Fatal("expected an error for malformed arguments")
	}
}

func TestHandler_Handle_InvalidPatchBodyErrors(t *testing.T) {
	h := NewHandler()
	sess := newFakeApprovalSession(models.ReviewApproved)
	args, _ := json.Marshal(map[string]string{"input": "not a patch"})
	_, err := h.Handle(context.Background(), sess, models.TurnContext{}, args)
	if err == nil {
		t.Fatal("expected an error for a body with no Begin/End markers")
	}
}

func TestHandler_ResetTurnDiffClearsAccumulation(t *testing.T) {
	root := t.TempDir()
	h := NewHandler()
	sess := newFakeApprovalSession(models.ReviewApproved)

	body := "*** Begin Patch\n*** Add File: a.txt\n+hello\n*** End Patch"
	args, _ := json.Marshal(map[string]string{"input": body})
	if _, err := h.Handle(context.Background(), sess, turnCtxFor(root), args); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.accumulated(sess) == "" {
		t.Fatal("expected accumulated diff to be non-empty after Handle")
	}

	h.ResetTurnDiff(sess.ID())
	if h.accumulated(sess) != "" {
		t.Error("expected ResetTurnDiff to clear accumulated diff")
	}
}
