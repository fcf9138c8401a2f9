package models

// ApprovalPolicy controls how much user confirmation tool execution requires.
type ApprovalPolicy string

const (
	ApprovalUntrusted ApprovalPolicy = "untrusted"
	ApprovalOnFailure ApprovalPolicy = "on-failure"
	ApprovalOnRequest ApprovalPolicy = "on-request"
	ApprovalNever     ApprovalPolicy = "never"
)

// SandboxMode selects the filesystem/network confinement applied to exec
// and patch operations.
type SandboxMode string

const (
	SandboxReadOnly        SandboxMode = "read-only"
	SandboxWorkspaceWrite  SandboxMode = "workspace-write"
	SandboxDangerFullAccess SandboxMode = "danger-full-access"
)

// SandboxPolicy pairs a mode with the writable roots it grants when the
// mode is SandboxWorkspaceWrite.
type SandboxPolicy struct {
	Mode          SandboxMode `json:"mode" yaml:"mode"`
	WritableRoots []string    `json:"writable_roots,omitempty" yaml:"writable_roots,omitempty"`
	NetworkAccess bool        `json:"network_access" yaml:"network_access"`
}

// AllowsWrite reports whether path falls under one of the policy's writable
// roots (always true for DangerFullAccess, always false for ReadOnly).
func (p SandboxPolicy) AllowsWrite(path string) bool {
	switch p.Mode {
	case SandboxDangerFullAccess:
		return true
	case SandboxReadOnly:
		return false
	default:
		for _, root := range p.WritableRoots {
			if isUnder(root, path) {
				return true
			}
		}
		return false
	}
}

func isUnder(root, path string) bool {
	if root == "" || path == "" {
		return false
	}
	if root == path {
		return true
	}
	rn := root
	if rn[len(rn)-1] != '/' {
		rn += "/"
	}
	return len(path) > len(rn) && path[:len(rn)] == rn
}

// ShellEnvironmentPolicy controls which environment variables are forwarded
// to spawned shell commands.
type ShellEnvironmentPolicy struct {
	Inherit     bool              `json:"inherit" yaml:"inherit"`
	Allowlist   []string          `json:"allowlist,omitempty" yaml:"allowlist,omitempty"`
	Set         map[string]string `json:"set,omitempty" yaml:"set,omitempty"`
	ExcludeVars []string          `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// ReviewDecision is the user's answer to a pending approval request.
type ReviewDecision string

const (
	ReviewApproved           ReviewDecision = "approved"
	ReviewApprovedForSession ReviewDecision = "approved_for_session"
	ReviewDenied             ReviewDecision = "denied"
	ReviewAbort              ReviewDecision = "abort"
)

// TurnContext carries the per-turn overrides a session applies before
// invoking the provider: model, reasoning effort, working directory, and
// the three policies above.
type TurnContext struct {
	Model            string                 `json:"model,omitempty"`
	Effort           string                 `json:"effort,omitempty"`
	Cwd              string                 `json:"cwd,omitempty"`
	ApprovalPolicy   ApprovalPolicy         `json:"approval_policy,omitempty"`
	SandboxPolicy    SandboxPolicy          `json:"sandbox_policy,omitempty"`
	ShellEnvPolicy   ShellEnvironmentPolicy `json:"shell_environment_policy,omitempty"`
	BaseInstructions string                 `json:"base_instructions,omitempty"`
}

// Merge returns a copy of t with any non-zero fields of override applied.
func (t TurnContext) Merge(override TurnContext) TurnContext {
	out := t
	if override.Model != "" {
		out.Model = override.Model
	}
	if override.Effort != "" {
		out.Effort = override.Effort
	}
	if override.Cwd != "" {
		out.Cwd = override.Cwd
	}
	if override.ApprovalPolicy != "" {
		out.ApprovalPolicy = override.ApprovalPolicy
	}
	if override.SandboxPolicy.Mode != "" {
		out.SandboxPolicy = override.SandboxPolicy
	}
	if override.BaseInstructions != "" {
		out.BaseInstructions = override.BaseInstructions
	}
	return out
}
