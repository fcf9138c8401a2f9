package patch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/session"
	"github.com/agentcore/coreagent/internal/core/turn"
)

// Handler wires Parse/Plan/Apply into a dispatch.Handler-shaped function,
// requesting approval when Plan reports a path outside the sandbox's
// writable roots, per spec.md §4.5.
type Handler struct {
	mu            sync.Mutex
	turnDiffByID  map[string]string // conversation_id -> accumulated diff for the current turn
}

// NewHandler builds a Handler.
func NewHandler() *Handler {
	return &Handler{turnDiffByID: make(map[string]string)}
}

// Handle implements the dispatch.Handler signature. args decodes to
// {"input": "<patch body>"}.
func (h *Handler) Handle(ctx context.Context, sess turn.ApprovalSession, turnCtx models.TurnContext, args json.RawMessage) (string, error) {
	var req struct {
		Input string `json:"input"`
	}
	if err := json.Unmarshal(args, &req); err != nil {
		return "", fmt.Errorf("patch: invalid arguments: %w", err)
	}

	parsed, err := Parse(req.Input)
	if err != nil {
		return "", err
	}

	approvals := Plan(parsed, turnCtx.Cwd, turnCtx.SandboxPolicy)
	autoApproved := len(approvals) == 0

	key := hashPatch(req.Input)
	if !autoApproved && turnCtx.ApprovalPolicy != models.ApprovalNever && !sess.IsCommandApproved(key) {
		approvalID := key + "-patch-approval"
		reasons := make([]string, 0, len(approvals))
		for _, a := range approvals {
			reasons = append(reasons, fmt.Sprintf("%s (outside %s)", a.Path, a.OffendingRoot))
		}
		ch := sess.RegisterApproval(approvalID)
		sess.Emit(session.Event{
			Type:       session.EventPatchApprovalRequest,
			ApprovalID: approvalID,
			Diff:       req.Input,
			Reason:     "path(s) outside writable roots: " + strings.Join(reasons, ", "),
		})
		select {
		case decision := <-ch:
			switch decision {
			case models.ReviewDenied, models.ReviewAbort:
				return "", fmt.Errorf("patch denied by user")
			case models.ReviewApprovedForSession:
				sess.ApproveForSession(key)
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	sess.Emit(session.Event{Type: session.EventPatchBegin, Diff: req.Input})
	result, err := Apply(parsed, turnCtx.Cwd, turnCtx.SandboxPolicy)
	success := err == nil
	sess.Emit(session.Event{Type: session.EventPatchEnd, Success: success, Err: errString(err)})
	if err != nil {
		return "", err
	}

	diff := combinedDiff(result)
	h.accumulate(sess, diff)
	sess.Emit(session.Event{Type: session.EventTurnDiff, Diff: h.accumulated(sess)})

	return summarize(result), nil
}

func (h *Handler) accumulate(sess turn.ApprovalSession, diff string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turnDiffByID[sess.ID()] += diff
}

func (h *Handler) accumulated(sess turn.ApprovalSession) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.turnDiffByID[sess.ID()]
}

// ResetTurnDiff clears accumulated diff tracking for a session, called by
// the turn engine when a new task starts (diff tracking accumulates
// per-turn, not across the whole conversation, per spec.md §4.5).
func (h *Handler) ResetTurnDiff(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.turnDiffByID, sessionID)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func combinedDiff(result *Result) string {
	var b strings.Builder
	for _, f := range result.Files {
		b.WriteString(f.UnifiedDiff)
	}
	return b.String()
}

func summarize(result *Result) string {
	var b strings.Builder
	for _, f := range result.Files {
		fmt.Fprintf(&b, "%s %s (+%d/-%d)\n", f.Kind, f.Path, f.LinesAdded, f.LinesRemoved)
	}
	return b.String()
}

func hashPatch(body string) string {
	// A short, stable key for session-sticky approval; collisions are
	// harmless since the worst case is an extra approval prompt, not a
	// skipped one.
	sum := 0
	for _, r := range body {
		sum = sum*31 + int(r)
	}
	return fmt.Sprintf("patch-%x", uint32(sum))
}
