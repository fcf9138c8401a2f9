package subagent

import (
	"testing"

	"github.com/agentcore/coreagent/internal/core/models"
)

func TestToolFilter_EmptyAllowsAll(t *testing.T) {
	filter := ToolFilter(&Definition{})
	for _, name := range []string{"exec", "apply_patch", "anything"} {
		if !filter(models.TurnContext{}, name) {
			t.Errorf("expected %q to be allowed when Tools is empty", name)
		}
	}
}

func TestToolFilter_AllowsOnlyListedTools(t *testing.T) {
	filter := ToolFilter(&Definition{Tools: []string{"exec"}})
	if !filter(models.TurnContext{}, "exec") {
		t.Error("expected exec to be allowed")
	}
	if filter(models.TurnContext{}, "apply_patch") {
		t.Error("expected apply_patch to be rejected")
	}
}

func TestToolFilter_NormalizesAliases(t *testing.T) {
	cases := []struct {
		def    []string
		query  string
		expect bool
	}{
		{[]string{"bash"}, "exec", true},
		{[]string{"shell"}, "exec", true},
		{[]string{"apply-patch"}, "apply_patch", true},
		{[]string{"exec"}, "bash", true},
		{[]string{"exec"}, "apply_patch", false},
	}
	for _, c := range cases {
		filter := ToolFilter(&Definition{Tools: c.def})
		if got := filter(models.TurnContext{}, c.query); got != c.expect {
			t.Errorf("Tools=%v query=%q: got %v, want %v", c.def, c.query, got, c.expect)
		}
	}
}

func TestToolFilter_CaseAndWhitespaceInsensitive(t *testing.T) {
	filter := ToolFilter(&Definition{Tools: []string{"  EXEC  "}})
	if !filter(models.TurnContext{}, "exec") {
		t.Error("expected normalized match regardless of case/whitespace")
	}
}
