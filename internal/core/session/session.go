// Package session implements the per-conversation submission loop of
// spec.md §4.1: a bounded submission queue, an ordered event stream, and the
// session state (history, pending approvals, pending input, current task)
// that the turn engine mutates.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/agentcore/coreagent/internal/core/models"
)

// Task is the minimal surface the session needs from a running AgentTask:
// abort it with a reason, and observe when it has finished. The turn engine
// implements this; Session only depends on the interface to avoid an import
// cycle between session and turn.
type Task interface {
	Abort(reason string)
	Done() <-chan struct{}
}

// TaskSpawner creates a new AgentTask for a user-input/user-turn/compact
// submission. Session calls back into it from the submission loop; the
// concrete implementation lives in internal/core/turn.
type TaskSpawner interface {
	Spawn(ctx context.Context, sess *Session, items []*models.ResponseItem, turnCtx models.TurnContext) Task
	SpawnCompact(ctx context.Context, sess *Session) Task
}

// AgentRegistry is the read side of sub-agent discovery the session exposes
// to the turn engine / command dispatcher (internal/core/subagent provides
// the concrete implementation).
type AgentRegistry interface {
	List() []string
}

// MCPConnectionManager is the subset of internal/core/mcp.Manager that a
// session needs to hold a reference to.
type MCPConnectionManager interface {
	Status() []string
}

// Rollout is the subset of internal/core/rollout.Recorder a session needs.
type Rollout interface {
	Append(item *models.ResponseItem) error
	Close() error
}

// Session owns the state of one conversation: its append-only history, its
// pending approvals and pending input, and the single currently-running
// task. Exactly one Session exists per conversation_id.
type Session struct {
	mu sync.Mutex

	ConversationID string
	logger         *slog.Logger

	history          []*models.ResponseItem
	approvedCommands map[string]struct{}

	currentTask   Task
	spawner       TaskSpawner

	pendingApprovals map[string]chan models.ReviewDecision
	pendingInput     []*models.ResponseItem

	TokenInfo models.TokenInfo

	AgentRegistry AgentRegistry
	Rollout       Rollout
	UserShell     UserShellInfo
	MCP           MCPConnectionManager

	Cwd                    string
	ApprovalPolicy         models.ApprovalPolicy
	SandboxPolicy          models.SandboxPolicy
	ShellEnvironmentPolicy models.ShellEnvironmentPolicy

	submissions chan Submission
	events      chan Event

	closed bool
}

// UserShellInfo captures the resolved default shell, used for
// profile-aware command translation in the exec engine (spec.md §4.4).
type UserShellInfo struct {
	Path          string
	Name          string // "bash", "zsh", "powershell", "cmd", ...
	IsLoginShell  bool
	RCFile        string
}

// New creates a Session with a fresh conversation id and starts its
// submission loop goroutine. Call Close (via an OpShutdown submission, or
// directly) to flush the rollout and stop the loop.
func New(spawner TaskSpawner, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		ConversationID:   uuid.NewString(),
		logger:           logger.With("component", "session"),
		approvedCommands: make(map[string]struct{}),
		spawner:          spawner,
		pendingApprovals: make(map[string]chan models.ReviewDecision),
		submissions:      make(chan Submission, submissionQueueCapacity),
		events:           make(chan Event, submissionQueueCapacity),
	}
	go s.loop()
	return s
}

// Submit enqueues a submission. It blocks if the queue is full, applying
// the natural backpressure spec.md §5 calls for.
func (s *Session) Submit(sub Submission) {
	s.submissions <- sub
}

// Events returns the session's ordered event channel.
func (s *Session) Events() <-chan Event {
	return s.events
}

// History returns a snapshot copy of the session's history.
func (s *Session) History() []*models.ResponseItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ResponseItem, len(s.history))
	copy(out, s.history)
	return out
}

// AppendHistory appends an item to history and the rollout, under lock, in
// that order (rollout mirrors history per invariant 3).
func (s *Session) AppendHistory(item *models.ResponseItem) {
	s.mu.Lock()
	s.history = append(s.history, item)
	roll := s.Rollout
	s.mu.Unlock()
	if roll != nil {
		if err := roll.Append(item); err != nil {
			s.logger.Warn("rollout append failed", "error", err)
		}
	}
}

// TruncateHistoryTo replaces history with the given items (used by compact).
func (s *Session) TruncateHistoryTo(items []*models.ResponseItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append([]*models.ResponseItem(nil), items...)
}

// IsCommandApproved reports whether argv was approved for the rest of this
// session via ReviewApprovedForSession.
func (s *Session) IsCommandApproved(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.approvedCommands[key]
	return ok
}

// ApproveForSession records key (typically a joined argv, or a patch hash)
// as pre-approved for the remainder of the session.
func (s *Session) ApproveForSession(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvedCommands[key] = struct{}{}
}

// RegisterApproval creates a pending approval channel for id and returns it.
func (s *Session) RegisterApproval(id string) chan models.ReviewDecision {
	ch := make(chan models.ReviewDecision, 1)
	s.mu.Lock()
	s.pendingApprovals[id] = ch
	s.mu.Unlock()
	return ch
}

// resolveApproval delivers decision on id's channel and removes it. Returns
// false if id was not pending (already decided, or the task that created it
// has since aborted and dropped the channel).
func (s *Session) resolveApproval(id string, decision models.ReviewDecision) bool {
	s.mu.Lock()
	ch, ok := s.pendingApprovals[id]
	if ok {
		delete(s.pendingApprovals, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	ch <- decision
	return true
}

// dropApproval removes a pending approval without resolving it (task abort).
func (s *Session) dropApproval(id string) {
	s.mu.Lock()
	delete(s.pendingApprovals, id)
	s.mu.Unlock()
}

// emit pushes an event, dropping it if the event channel has been closed.
func (s *Session) emit(e Event) {
	defer func() { recover() }() //nolint:errcheck // send-on-closed-channel guard
	s.events <- e
}

// loop is the serial submission consumer described in spec.md §4.1: it
// performs exactly one of interrupt / override-turn-context / user-input /
// user-turn / approval-decision / history append-or-lookup /
// MCP-or-command-or-prompt listing / compact / shutdown / get-history per
// iteration, never overlapping two submissions.
func (s *Session) loop() {
	ctx := context.Background()
	for sub := range s.submissions {
		switch sub.Op {
		case OpInterrupt:
			s.abortCurrentTask("interrupted")

		case OpOverrideTurnCtx:
			s.applyOverride(sub.Override)

		case OpUserInput:
			s.mu.Lock()
			s.pendingInput = append(s.pendingInput, sub.Items...)
			s.mu.Unlock()
			if s.currentTaskRunning() {
				continue
			}
			s.spawnTask(ctx, sub.Items, s.defaultTurnContext())

		case OpUserTurn:
			s.spawnTask(ctx, sub.Items, s.defaultTurnContext().Merge(sub.TurnCtx))

		case OpApprovalDecision:
			if sub.Decision == models.ReviewApprovedForSession {
				s.ApproveForSession(sub.ApprovalID)
			}
			s.resolveApproval(sub.ApprovalID, sub.Decision)

		case OpAppendHistory:
			if sub.Item != nil {
				s.AppendHistory(sub.Item)
			}

		case OpGetHistory, OpListMCPTools, OpListCommands, OpListPrompts:
			// Read-only listing ops are served by direct method calls
			// (History(), etc.) from the front-end; nothing to do here
			// beyond acknowledging receipt in order.

		case OpCompact:
			s.spawnCompact(ctx)

		case OpShutdown:
			s.shutdown()
			return

		default:
			// Unknown ops are ignored for forward compatibility.
		}
	}
}

func (s *Session) currentTaskRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentTask == nil {
		return false
	}
	select {
	case <-s.currentTask.Done():
		return false
	default:
		return true
	}
}

func (s *Session) abortCurrentTask(reason string) {
	s.mu.Lock()
	task := s.currentTask
	pending := make([]string, 0, len(s.pendingApprovals))
	for id := range s.pendingApprovals {
		pending = append(pending, id)
	}
	s.mu.Unlock()
	if task == nil {
		return
	}
	for _, id := range pending {
		s.dropApproval(id)
	}
	task.Abort(reason)
	s.emit(Event{Type: EventTurnAborted, Reason: reason})
}

func (s *Session) spawnTask(ctx context.Context, items []*models.ResponseItem, turnCtx models.TurnContext) {
	s.abortCurrentTask("replaced")
	if s.spawner == nil {
		return
	}
	s.mu.Lock()
	pending := s.pendingInput
	s.pendingInput = nil
	s.mu.Unlock()
	all := append(append([]*models.ResponseItem(nil), items...), pending...)
	task := s.spawner.Spawn(ctx, s, all, turnCtx)
	s.mu.Lock()
	s.currentTask = task
	s.mu.Unlock()
}

func (s *Session) spawnCompact(ctx context.Context) {
	s.abortCurrentTask("replaced")
	if s.spawner == nil {
		return
	}
	task := s.spawner.SpawnCompact(ctx, s)
	s.mu.Lock()
	s.currentTask = task
	s.mu.Unlock()
}

func (s *Session) applyOverride(override models.TurnContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if override.Cwd != "" {
		s.Cwd = override.Cwd
	}
	if override.ApprovalPolicy != "" {
		s.ApprovalPolicy = override.ApprovalPolicy
	}
	if override.SandboxPolicy.Mode != "" {
		s.SandboxPolicy = override.SandboxPolicy
	}
}

func (s *Session) defaultTurnContext() models.TurnContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.TurnContext{
		Cwd:            s.Cwd,
		ApprovalPolicy: s.ApprovalPolicy,
		SandboxPolicy:  s.SandboxPolicy,
		ShellEnvPolicy: s.ShellEnvironmentPolicy,
	}
}

func (s *Session) shutdown() {
	s.abortCurrentTask("session_shutdown")
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	roll := s.Rollout
	s.mu.Unlock()
	if roll != nil {
		if err := roll.Close(); err != nil {
			s.logger.Warn("rollout close failed", "error", err)
		}
	}
	close(s.events)
}

// Emit is exported for the turn engine (and other task implementations
// outside this package) to publish events on the session's stream.
func (s *Session) Emit(e Event) {
	s.emit(e)
}

// ID returns the session's conversation id, satisfying turn.ApprovalSession
// for callers (e.g. the patch tool) that key per-turn state by session.
func (s *Session) ID() string {
	return s.ConversationID
}

// QueueInput appends items to pendingInput, where they ride along with the
// next turn's input (spawnTask folds pendingInput in ahead of the new
// items). Used by the view_image tool to attach an image to the
// conversation without a turn of its own. Fails if no task is currently
// running, since there is then no "current task" for the image to attach
// to.
func (s *Session) QueueInput(items ...*models.ResponseItem) error {
	if !s.currentTaskRunning() {
		return fmt.Errorf("session: no active task to attach input to")
	}
	s.mu.Lock()
	s.pendingInput = append(s.pendingInput, items...)
	s.mu.Unlock()
	return nil
}
