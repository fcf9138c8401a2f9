package turn

import (
	"context"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/session"
)

// ToolDispatcher is the interface the turn engine needs from
// internal/core/dispatch: run every call item concurrently and come back
// with one output item per call, plus the tool specs to advertise to the
// Provider for this turn.
type ToolDispatcher interface {
	Specs(turnCtx models.TurnContext) []ToolSpec
	ExecuteAll(ctx context.Context, sess ApprovalSession, calls []*models.ResponseItem, turnCtx models.TurnContext) []*models.ResponseItem
}

// ApprovalSession is the minimal surface the dispatcher needs from a
// session to request and await approval decisions, and to emit exec/patch
// lifecycle events. internal/core/session.Session implements it.
type ApprovalSession interface {
	RegisterApproval(id string) chan models.ReviewDecision
	IsCommandApproved(key string) bool
	ApproveForSession(key string)
	Emit(e session.Event)
	ID() string
	QueueInput(items ...*models.ResponseItem) error
}
