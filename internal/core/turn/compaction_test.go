package turn

import (
	"context"
	"testing"
	"time"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/session"
)

func TestDefaultCompactionConfig_Values(t *testing.T) {
	c := DefaultCompactionConfig()
	if c.ThresholdPercent != 80 {
		t.Errorf("ThresholdPercent = %d, want 80", c.ThresholdPercent)
	}
	if c.SummaryPrompt == "" {
		t.Error("expected a non-empty SummaryPrompt")
	}
}

func TestCompactor_ShouldCompact_BelowAndAboveThreshold(t *testing.T) {
	c := NewCompactor(nil, DefaultCompactionConfig(), nil)

	below := models.TokenInfo{InputTokens: 100, OutputTokens: 100, ContextWindow: 1000}
	if c.ShouldCompact(below) {
		t.Error("expected ShouldCompact=false below threshold")
	}

	above := models.TokenInfo{InputTokens: 500, OutputTokens: 400, ContextWindow: 1000}
	if !c.ShouldCompact(above) {
		t.Error("expected ShouldCompact=true at/above threshold")
	}
}

func TestCompactor_ShouldCompact_ZeroContextWindowIsFalse(t *testing.T) {
	c := NewCompactor(nil, DefaultCompactionConfig(), nil)
	if c.ShouldCompact(models.TokenInfo{InputTokens: 1000, OutputTokens: 1000}) {
		t.Error("expected ShouldCompact=false when ContextWindow is unset")
	}
}

func TestCompactionTask_Run_SummarizesAndTruncatesHistory(t *testing.T) {
	sess := session.New(nil, nil)
	sess.AppendHistory(models.NewUserMessage("first"))
	sess.AppendHistory(models.NewUserMessage("second"))

	provider := &scriptedProvider{responses: [][]StreamEvent{
		{{Kind: StreamEventTextDelta, Delta: "the summary"}, {Kind: StreamEventDone}},
	}}
	compactor := NewCompactor(provider, DefaultCompactionConfig(), nil)
	task := compactor.NewTask(sess)

	go task.Run(context.Background())
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected compaction task to finish")
	}

	hist := sess.History()
	if len(hist) != 1 || hist[0].Content[0].Text != "the summary" {
		t.Errorf("History() = %+v", hist)
	}
}

func TestCompactionTask_Run_NoProviderEmitsErrorAndKeepsHistory(t *testing.T) {
	sess := session.New(nil, nil)
	sess.AppendHistory(models.NewUserMessage("keep me"))

	compactor := NewCompactor(nil, DefaultCompactionConfig(), nil)
	task := compactor.NewTask(sess)

	go task.Run(context.Background())
	var sawErr bool
	deadline := time.After(2 * time.Second)
loop:
	for {
		select {
		case e := <-sess.Events():
			if e.Type == session.EventError {
				sawErr = true
				break loop
			}
		case <-deadline:
			break loop
		}
	}
	if !sawErr {
		t.Fatal("expected an error event when no provider is configured")
	}
	if len(sess.History()) != 1 {
		t.Errorf("expected history to be untouched, got %+v", sess.History())
	}
}

func TestCompactionTask_Run_EmptySummaryKeepsHistory(t *testing.T) {
	sess := session.New(nil, nil)
	sess.AppendHistory(models.NewUserMessage("keep me too"))

	provider := &scriptedProvider{responses: [][]StreamEvent{
		{{Kind: StreamEventDone}},
	}}
	compactor := NewCompactor(provider, DefaultCompactionConfig(), nil)
	task := compactor.NewTask(sess)

	go task.Run(context.Background())
	var sawErr bool
	deadline := time.After(2 * time.Second)
loop:
	for {
		select {
		case e := <-sess.Events():
			if e.Type == session.EventError {
				sawErr = true
				break loop
			}
		case <-deadline:
			break loop
		}
	}
	if !sawErr {
		t.Fatal("expected an error event for an empty summary")
	}
	if len(sess.History()) != 1 {
		t.Errorf("expected history to be untouched, got %+v", sess.History())
	}
}

func TestCompactionTask_Abort_CancelsRunningSummarization(t *testing.T) {
	sess := session.New(nil, nil)
	task := NewCompactor(hangingProvider{}, DefaultCompactionConfig(), nil).NewTask(sess)

	go task.Run(context.Background())
	time.Sleep(20 * time.Millisecond)
	task.Abort("cut short")

	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected compaction task to finish after Abort")
	}
}
