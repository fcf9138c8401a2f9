package session

import "github.com/agentcore/coreagent/internal/core/models"

// EventType enumerates every event the session emits back to the front-end
// over its single ordered event channel (spec.md §6).
type EventType string

const (
	EventAgentMessageDelta    EventType = "agent_message_delta"
	EventAgentMessage         EventType = "agent_message"
	EventReasoningDelta       EventType = "reasoning_delta"
	EventReasoningSummary     EventType = "reasoning_summary"
	EventExecBegin            EventType = "exec_begin"
	EventExecEnd              EventType = "exec_end"
	EventExecApprovalRequest  EventType = "exec_approval_request"
	EventPatchBegin           EventType = "patch_begin"
	EventPatchEnd             EventType = "patch_end"
	EventPatchApprovalRequest EventType = "patch_approval_request"
	EventMCPToolBegin         EventType = "mcp_tool_begin"
	EventMCPToolEnd           EventType = "mcp_tool_end"
	EventWebSearchBegin       EventType = "web_search_begin"
	EventSubAgentBegin        EventType = "sub_agent_begin"
	EventSubAgentEnd          EventType = "sub_agent_end"
	EventTokenCount           EventType = "token_count"
	EventTurnDiff             EventType = "turn_diff"
	EventStreamError          EventType = "stream_error"
	EventError                EventType = "error"
	EventTurnAborted          EventType = "turn_aborted"
	EventTaskComplete         EventType = "task_complete"
	EventCommandListUpdated   EventType = "command_list_updated"
	EventAgentListUpdated     EventType = "agent_list_updated"
	EventPlanUpdate           EventType = "plan_update"
)

// PlanStep is one entry of an update_plan call's plan array.
type PlanStep struct {
	Step   string `json:"step"`
	Status string `json:"status"`
}

// Event is the single envelope type carried on a Session's event channel.
type Event struct {
	Type         EventType             `json:"type"`
	SubID        string                `json:"sub_id,omitempty"`
	Text         string                `json:"text,omitempty"`
	CallID       string                `json:"call_id,omitempty"`
	Command      []string              `json:"command,omitempty"`
	ExitCode     *int                  `json:"exit_code,omitempty"`
	Output       string                `json:"output,omitempty"`
	ApprovalID   string                `json:"approval_id,omitempty"`
	TokenInfo    *models.TokenInfo     `json:"token_info,omitempty"`
	Diff         string                `json:"diff,omitempty"`
	Reason       string                `json:"reason,omitempty"`
	Err          string                `json:"error,omitempty"`
	LastMessage  string                `json:"last_agent_message,omitempty"`
	SubAgentName string                `json:"sub_agent_name,omitempty"`
	Success      bool                  `json:"success,omitempty"`
	Names        []string              `json:"names,omitempty"`
	Plan         []PlanStep            `json:"plan,omitempty"`
}

// ExecApprovalRequest is the unified shape used for both exec and apply-patch
// approval prompts, per the Open Questions resolution in spec.md §9: one
// structured request type, carried by distinct Exec*/Patch* events.
type ExecApprovalRequest struct {
	ID         string   `json:"id"`
	CallID     string   `json:"call_id"`
	Command    []string `json:"command"`
	Cwd        string   `json:"cwd"`
	Reason     string   `json:"reason,omitempty"`
}

// ApplyPatchApprovalRequest is the patch-specific analogue of
// ExecApprovalRequest, carrying the unified diff instead of an argv.
type ApplyPatchApprovalRequest struct {
	ID     string `json:"id"`
	CallID string `json:"call_id"`
	Diff   string `json:"diff"`
	Reason string `json:"reason,omitempty"`
}
