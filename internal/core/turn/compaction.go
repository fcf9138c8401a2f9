package turn

import (
	"context"
	"log/slog"
	"sync"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/session"
)

// CompactionConfig configures when and how the turn engine summarizes a
// session's history into a single digest message, adapted from the
// teacher's CompactionConfig (internal/agent/compaction.go) which drives
// the same threshold/flush-prompt shape for its own memory-flush feature.
type CompactionConfig struct {
	ThresholdPercent int
	SummaryPrompt    string
}

// DefaultCompactionConfig mirrors the teacher's DefaultCompactionConfig
// threshold, adapted to a compaction summary prompt instead of a
// memory-file flush prompt.
func DefaultCompactionConfig() CompactionConfig {
	return CompactionConfig{
		ThresholdPercent: 80,
		SummaryPrompt:    "Summarize the conversation so far concisely, preserving any decisions, open questions, and file paths mentioned. Reply with the summary only.",
	}
}

// Compactor runs compaction tasks for sessions whose context usage has
// crossed ThresholdPercent, or on an explicit OpCompact submission.
type Compactor struct {
	provider ProviderImpl
	config   CompactionConfig
	logger   *slog.Logger
}

// NewCompactor builds a Compactor.
func NewCompactor(provider ProviderImpl, config CompactionConfig, logger *slog.Logger) *Compactor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compactor{provider: provider, config: config, logger: logger.With("component", "compaction")}
}

// ShouldCompact reports whether the session's token usage has crossed the
// configured threshold.
func (c *Compactor) ShouldCompact(info models.TokenInfo) bool {
	if info.ContextWindow <= 0 {
		return false
	}
	used := info.InputTokens + info.OutputTokens
	percent := int(used * 100 / info.ContextWindow)
	return percent >= c.config.ThresholdPercent
}

// NewTask builds a compaction task for sess, implementing session.Task.
func (c *Compactor) NewTask(sess *session.Session) *CompactionTask {
	return &CompactionTask{compactor: c, sess: sess, done: make(chan struct{})}
}

// CompactionTask replaces a session's history with a single summary
// message produced by the provider. It is the "compaction as a special
// task variant" spec.md §4.2 calls for: it reuses the Task machinery's
// Done/Abort contract but runs a single summarize-and-truncate step rather
// than the full Stream/ExecuteTools loop.
type CompactionTask struct {
	compactor *Compactor
	sess      *session.Session

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (c *CompactionTask) Done() <-chan struct{} { return c.done }

func (c *CompactionTask) Abort(reason string) {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run summarizes the session's full history into one assistant message and
// truncates history to [summary]. If the provider is unavailable or fails,
// history is left untouched and an error event is emitted; compaction never
// drops history it could not confirm was captured by a summary.
func (c *CompactionTask) Run(parent context.Context) {
	defer close(c.done)
	ctx, cancel := context.WithCancel(parent)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	if c.compactor.provider == nil {
		c.sess.Emit(session.Event{Type: session.EventError, Err: ErrNoProvider.Error()})
		return
	}

	history := c.sess.History()
	req := StreamRequest{
		History: append(append([]*models.ResponseItem(nil), history...), models.NewUserMessage(c.compactor.config.SummaryPrompt)),
	}
	ch, err := c.compactor.provider.Stream(ctx, req)
	if err != nil {
		c.sess.Emit(session.Event{Type: session.EventError, Err: err.Error()})
		return
	}

	var summary string
	for ev := range ch {
		if ev.Kind == StreamEventTextDelta {
			summary += ev.Delta
		}
	}
	if summary == "" {
		c.sess.Emit(session.Event{Type: session.EventError, Err: "compaction produced empty summary, history retained"})
		return
	}

	c.compactor.logger.Info("compacted session history", "conversation_id", c.sess.ConversationID, "items_dropped", len(history))
	c.sess.TruncateHistoryTo([]*models.ResponseItem{models.NewAssistantMessage(summary)})
	c.sess.Emit(session.Event{Type: session.EventTaskComplete, Reason: "compacted", LastMessage: summary})
}
