package execengine

import "testing"

func TestExecPolicy_Assess_DenylistTakesPriority(t *testing.T) {
	p := ExecPolicy{Denylist: []string{"rm"}, Allowlist: []string{"rm"}}
	decision, _ := p.Assess("rm")
	if decision != DecisionReject {
		t.Errorf("decision = %v, want DecisionReject", decision)
	}
}

func TestExecPolicy_Assess_Allowlist(t *testing.T) {
	p := ExecPolicy{Allowlist: []string{"git"}}
	decision, _ := p.Assess("git")
	if decision != DecisionAutoApprove {
		t.Errorf("decision = %v, want DecisionAutoApprove", decision)
	}
}

func TestExecPolicy_Assess_SkillTools(t *testing.T) {
	p := ExecPolicy{SkillTools: map[string]struct{}{"mytool": {}}}
	decision, _ := p.Assess("mytool")
	if decision != DecisionAutoApprove {
		t.Errorf("decision = %v, want DecisionAutoApprove", decision)
	}
}

func TestExecPolicy_Assess_SafeBins(t *testing.T) {
	p := DefaultExecPolicy()
	decision, _ := p.Assess("cat")
	if decision != DecisionAutoApprove {
		t.Errorf("decision = %v, want DecisionAutoApprove", decision)
	}
}

func TestExecPolicy_Assess_RequireApproval(t *testing.T) {
	p := ExecPolicy{RequireApproval: []string{"curl"}, Default: DecisionAutoApprove}
	decision, _ := p.Assess("curl")
	if decision != DecisionAskUser {
		t.Errorf("decision = %v, want DecisionAskUser", decision)
	}
}

func TestExecPolicy_Assess_DefaultFallback(t *testing.T) {
	p := ExecPolicy{Default: DecisionReject}
	decision, _ := p.Assess("unknown-binary")
	if decision != DecisionReject {
		t.Errorf("decision = %v, want DecisionReject", decision)
	}
}

func TestExecPolicy_Assess_UnsetDefaultFallsBackToAskUser(t *testing.T) {
	p := ExecPolicy{}
	decision, _ := p.Assess("unknown-binary")
	if decision != DecisionAskUser {
		t.Errorf("decision = %v, want DecisionAskUser", decision)
	}
}

func TestExecPolicy_Assess_WildcardPattern(t *testing.T) {
	p := ExecPolicy{Allowlist: []string{"git-*"}}
	decision, _ := p.Assess("git-upload-pack")
	if decision != DecisionAutoApprove {
		t.Errorf("decision = %v, want DecisionAutoApprove", decision)
	}
	decision, _ = p.Assess("git")
	if decision == DecisionAutoApprove {
		t.Error("expected a plain \"git\" not to match the \"git-*\" pattern")
	}
}

func TestDefaultExecPolicy_HasExpectedSafeBins(t *testing.T) {
	p := DefaultExecPolicy()
	for _, bin := range []string{"cat", "head", "tail", "wc", "sort", "uniq", "grep", "ls", "pwd", "echo"} {
		if decision, _ := p.Assess(bin); decision != DecisionAutoApprove {
			t.Errorf("Assess(%q) = %v, want DecisionAutoApprove", bin, decision)
		}
	}
}
