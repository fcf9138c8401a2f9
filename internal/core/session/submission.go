package session

import "github.com/agentcore/coreagent/internal/core/models"

// SubmissionOp enumerates the operations a front-end can send on the
// session's bounded submission queue (spec.md §4.1/§6).
type SubmissionOp string

const (
	OpInterrupt         SubmissionOp = "interrupt"
	OpOverrideTurnCtx   SubmissionOp = "override_turn_context"
	OpUserInput         SubmissionOp = "user_input"
	OpUserTurn          SubmissionOp = "user_turn"
	OpApprovalDecision  SubmissionOp = "approval_decision"
	OpAppendHistory     SubmissionOp = "append_history"
	OpGetHistory        SubmissionOp = "get_history"
	OpListMCPTools      SubmissionOp = "list_mcp_tools"
	OpListCommands      SubmissionOp = "list_commands"
	OpListPrompts       SubmissionOp = "list_prompts"
	OpCompact           SubmissionOp = "compact"
	OpShutdown          SubmissionOp = "shutdown"
)

// Submission is one entry on the bounded submission queue. Exactly the
// fields relevant to Op are populated; unknown Op values are ignored by the
// loop for forward compatibility (spec.md §4.1).
type Submission struct {
	ID  string       `json:"id"`
	Op  SubmissionOp `json:"op"`

	// user_input / user_turn
	Items      []*models.ResponseItem `json:"items,omitempty"`
	TurnCtx    models.TurnContext     `json:"turn_context,omitempty"`

	// override_turn_context
	Override models.TurnContext `json:"override,omitempty"`

	// approval_decision
	ApprovalID string                `json:"approval_id,omitempty"`
	Decision   models.ReviewDecision `json:"decision,omitempty"`

	// append_history
	Item *models.ResponseItem `json:"item,omitempty"`
}

// submissionQueueCapacity is the bounded capacity of a session's submission
// channel (spec.md §4.1/§5).
const submissionQueueCapacity = 64
