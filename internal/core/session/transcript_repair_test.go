package session

import (
	"encoding/json"
	"testing"

	"github.com/agentcore/coreagent/internal/core/models"
)

func TestRepairTranscript_DropsOrphanedOutput(t *testing.T) {
	history := []*models.ResponseItem{
		models.NewUserMessage("hi"),
		models.NewFunctionCallOutput("call-missing", "stray result"),
		models.NewAssistantMessage("ok"),
	}
	got := RepairTranscript(history)
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2 (orphaned output dropped)", len(got))
	}
}

func TestRepairTranscript_SynthesizesAbortedOutputForDanglingCall(t *testing.T) {
	args, _ := json.Marshal(map[string]string{})
	history := []*models.ResponseItem{
		models.NewUserMessage("run it"),
		models.NewFunctionCall("call-1", "exec", args),
	}
	got := RepairTranscript(history)
	if len(got) != 3 {
		t.Fatalf("len(got) = %d, want 3 (synthesized aborted output)", len(got))
	}
	last := got[len(got)-1]
	if last.Type != models.ItemFunctionCallOut || last.CallID != "call-1" {
		t.Errorf("last item = %+v, want aborted output for call-1", last)
	}
}

func TestRepairTranscript_KeepsMatchedCallAndOutput(t *testing.T) {
	args, _ := json.Marshal(map[string]string{})
	history := []*models.ResponseItem{
		models.NewFunctionCall("call-1", "exec", args),
		models.NewFunctionCallOutput("call-1", "done"),
	}
	got := RepairTranscript(history)
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
}

func TestRepairTranscript_EmptyHistory(t *testing.T) {
	if got := RepairTranscript(nil); len(got) != 0 {
		t.Errorf("RepairTranscript(nil) = %v, want empty", got)
	}
}
