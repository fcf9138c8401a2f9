package execengine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/session"
	"github.com/agentcore/coreagent/internal/core/turn"
)

// Model-facing output caps: the aggregated stdout/stderr text a tool call
// returns to the model is kept small enough to not blow a turn's context
// budget, while the UI keeps receiving the untruncated stream via
// session.EventExecEnd's Output field.
const (
	maxModelOutputBytes  = 10 * 1024
	maxModelOutputLines  = 256
	modelOutputHeadLines = 128
	modelOutputTailLines = 128
)

// truncateForModel caps s to maxModelOutputLines lines and maxModelOutputBytes
// bytes, keeping the first modelOutputHeadLines and last modelOutputTailLines
// lines and eliding the middle when s runs over either limit.
func truncateForModel(s string) string {
	if len(s) <= maxModelOutputBytes && countLines(s) <= maxModelOutputLines {
		return s
	}
	lines := strings.Split(s, "\n")
	total := len(lines)
	if total > maxModelOutputLines {
		head := strings.Join(lines[:modelOutputHeadLines], "\n")
		tail := strings.Join(lines[total-modelOutputTailLines:], "\n")
		omitted := total - modelOutputHeadLines - modelOutputTailLines
		s = head + fmt.Sprintf("\n[... omitted %d of %d lines ...]\n\n", omitted, total) + tail
	}
	return capBytes(s, maxModelOutputBytes)
}

func countLines(s string) int {
	if s == "" {
		return 1
	}
	return strings.Count(s, "\n") + 1
}

// capBytes trims s to at most max bytes by keeping its first and last
// halves, backing each cut off to a rune boundary so a multi-byte UTF-8
// character is never split.
func capBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	half := max / 2
	head := s[:half]
	for len(head) > 0 && !utf8.RuneStart(head[len(head)-1]) {
		head = head[:len(head)-1]
	}
	tail := s[len(s)-half:]
	for len(tail) > 0 && !utf8.RuneStart(tail[0]) {
		tail = tail[1:]
	}
	return head + tail
}

// ShellHandler wires Manager and ExecPolicy into a dispatch.Handler-shaped
// function: it assesses the command against the safety cascade, requests
// approval when needed (waiting on the session's approval channel), and
// only then runs it.
type ShellHandler struct {
	Manager *Manager
	Policy  ExecPolicy
}

// Handle implements the dispatch.Handler signature. args decodes to a
// models.ShellAction.
func (h *ShellHandler) Handle(ctx context.Context, sess turn.ApprovalSession, turnCtx models.TurnContext, args json.RawMessage) (string, error) {
	var action models.ShellAction
	if err := json.Unmarshal(args, &action); err != nil {
		return "", fmt.Errorf("execengine: invalid shell action: %w", err)
	}
	if len(action.Command) == 0 {
		return "", fmt.Errorf("execengine: empty command")
	}

	key := strings.Join(action.Command, "\x1f")
	if turnCtx.ApprovalPolicy != models.ApprovalNever && !sess.IsCommandApproved(key) {
		decision, reason := h.decide(turnCtx, action.Command[0])
		switch decision {
		case DecisionReject:
			return "", fmt.Errorf("command rejected by policy: %s", reason)
		case DecisionAskUser:
			approvalID := strings.Join(action.Command, " ") + "-approval"
			ch := sess.RegisterApproval(approvalID)
			sess.Emit(session.Event{
				Type:       session.EventExecApprovalRequest,
				ApprovalID: approvalID,
				Command:    action.Command,
				Reason:     reason,
			})
			select {
			case reviewed := <-ch:
				switch reviewed {
				case models.ReviewDenied, models.ReviewAbort:
					return "", fmt.Errorf("command denied by user")
				case models.ReviewApprovedForSession:
					sess.ApproveForSession(key)
				}
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	sess.Emit(session.Event{Type: session.EventExecBegin, Command: action.Command})
	result, err := h.Manager.Run(ctx, action, turnCtx.Cwd, turnCtx.SandboxPolicy)
	exitCode := result.ExitCode
	sess.Emit(session.Event{Type: session.EventExecEnd, Command: action.Command, ExitCode: &exitCode, Output: result.Stdout})
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return truncateForModel(fmt.Sprintf("exit code %d\nstdout:\n%s\nstderr:\n%s", result.ExitCode, result.Stdout, result.Stderr)), nil
	}
	return truncateForModel(result.Stdout), nil
}

// ExecCommandToolName and WriteStdinToolName are spec.md §4.3's
// streamable-shell tools, distinct from the one-shot "exec" ShellHandler:
// the model starts a long-lived shell with exec_command and drives it
// with write_stdin across multiple calls.
const (
	ExecCommandToolName = "exec_command"
	WriteStdinToolName  = "write_stdin"
)

// StreamHandler wires Manager's background-process tracker into the
// exec_command/write_stdin dispatch tools.
type StreamHandler struct {
	Manager *Manager
}

// HandleExecCommand implements dispatch.Handler for ExecCommandToolName:
// args decode to a models.ShellAction, and the process is tracked under a
// session id returned to the model for later write_stdin calls.
func (h *StreamHandler) HandleExecCommand(ctx context.Context, sess turn.ApprovalSession, turnCtx models.TurnContext, args json.RawMessage) (string, error) {
	var action models.ShellAction
	if err := json.Unmarshal(args, &action); err != nil {
		return "", fmt.Errorf("exec_command: invalid arguments: %w", err)
	}
	if len(action.Command) == 0 {
		return "", fmt.Errorf("exec_command: empty command")
	}
	info, err := h.Manager.StartBackground(ctx, action, turnCtx.Cwd, turnCtx.SandboxPolicy)
	if err != nil {
		return "", err
	}
	return encodeProcessInfo(info)
}

type writeStdinArgs struct {
	SessionID string `json:"session_id"`
	Chars     string `json:"chars"`
}

// HandleWriteStdin implements dispatch.Handler for WriteStdinToolName: args
// decode to {"session_id": "<id>", "chars": "<input>"}, returning the
// session's status and output captured so far.
func (h *StreamHandler) HandleWriteStdin(ctx context.Context, sess turn.ApprovalSession, turnCtx models.TurnContext, args json.RawMessage) (string, error) {
	var req writeStdinArgs
	if err := json.Unmarshal(args, &req); err != nil {
		return "", fmt.Errorf("write_stdin: invalid arguments: %w", err)
	}
	if req.SessionID == "" {
		return "", fmt.Errorf("write_stdin: session_id is required")
	}
	if req.Chars != "" {
		if err := h.Manager.WriteStdin(req.SessionID, req.Chars); err != nil {
			return "", err
		}
	}
	info, ok := h.Manager.Get(req.SessionID)
	if !ok {
		return "", fmt.Errorf("write_stdin: no such session %q", req.SessionID)
	}
	return encodeProcessInfo(info)
}

func encodeProcessInfo(info ProcessInfo) (string, error) {
	out, err := json.Marshal(struct {
		SessionID string `json:"session_id"`
		Status    string `json:"status"`
		ExitCode  int    `json:"exit_code"`
		Output    string `json:"output"`
	}{SessionID: info.ID, Status: info.Status, ExitCode: info.ExitCode, Output: truncateForModel(info.Output)})
	if err != nil {
		return "", fmt.Errorf("execengine: encode process info: %w", err)
	}
	return string(out), nil
}

// decide applies turnCtx's approval policy on top of the ExecPolicy
// cascade: "untrusted" never auto-approves bare commands outside the
// allowlist/safe-bins, "never" is handled by the caller before decide is
// reached, and "on-failure"/"on-request" defer entirely to the cascade.
func (h *ShellHandler) decide(turnCtx models.TurnContext, program string) (SafetyDecision, string) {
	decision, reason := h.Policy.Assess(program)
	if turnCtx.ApprovalPolicy == models.ApprovalUntrusted && decision == DecisionAutoApprove {
		if !matchesAny(h.Policy.Allowlist, program) && !matchesAny(h.Policy.SafeBins, program) {
			return DecisionAskUser, "untrusted policy requires approval outside the allowlist"
		}
	}
	return decision, reason
}
