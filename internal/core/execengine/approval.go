package execengine

import "strings"

// SafetyDecision is the outcome of assessing one command against an
// ExecPolicy: run it immediately, ask the user, or reject it outright
// (spec.md §4.4's three-way cascade).
type SafetyDecision string

const (
	DecisionAutoApprove SafetyDecision = "auto_approve"
	DecisionAskUser      SafetyDecision = "ask_user"
	DecisionReject       SafetyDecision = "reject"
)

// ExecPolicy configures the denylist->allowlist->skill-tools->safe-bins->
// require-approval->default precedence cascade, adapted from the teacher's
// ApprovalPolicy (internal/agent/approval.go).
type ExecPolicy struct {
	Denylist        []string
	Allowlist       []string
	SkillTools      map[string]struct{}
	SafeBins        []string
	RequireApproval []string
	Default         SafetyDecision
}

// DefaultExecPolicy mirrors the teacher's DefaultApprovalPolicy safe-bins
// list and default-to-ask-user behavior.
func DefaultExecPolicy() ExecPolicy {
	return ExecPolicy{
		SafeBins: []string{"cat", "head", "tail", "wc", "sort", "uniq", "grep", "ls", "pwd", "echo"},
		Default:  DecisionAskUser,
	}
}

// Assess evaluates argv[0] (the program name) against the policy cascade:
// denylist (highest priority, always rejects) -> allowlist -> skill tools
// -> safe bins -> require-approval -> default decision. A program already
// approved for this session (checked by the caller via
// session.IsCommandApproved) should short-circuit before calling Assess.
func (p ExecPolicy) Assess(program string) (SafetyDecision, string) {
	if matchesAny(p.Denylist, program) {
		return DecisionReject, "command in denylist"
	}
	if matchesAny(p.Allowlist, program) {
		return DecisionAutoApprove, "command in allowlist"
	}
	if p.SkillTools != nil {
		if _, ok := p.SkillTools[program]; ok {
			return DecisionAutoApprove, "command provided by an enabled skill"
		}
	}
	if matchesAny(p.SafeBins, program) {
		return DecisionAutoApprove, "command is a recognized safe binary"
	}
	if matchesAny(p.RequireApproval, program) {
		return DecisionAskUser, "command requires explicit approval"
	}
	switch p.Default {
	case DecisionAutoApprove, DecisionReject:
		return p.Default, "default policy"
	default:
		return DecisionAskUser, "default policy"
	}
}

// matchesAny reports whether name matches any pattern in patterns, where a
// pattern ending in "*" matches by prefix (mirrors the teacher's
// matchesPattern used across its policy packages).
func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if p == name {
			return true
		}
		if strings.HasSuffix(p, "*") && strings.HasPrefix(name, strings.TrimSuffix(p, "*")) {
			return true
		}
	}
	return false
}
