package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/agentcore/coreagent/internal/core/command"
	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/session"
	"github.com/agentcore/coreagent/internal/observability"
)

// runREPL drives sess from stdin/stdout: one line of input per user turn,
// streaming the assistant's reply and surfacing approval prompts
// synchronously on the same terminal. catalog may be nil when no command
// directories were discovered; lines starting with "/" are then submitted
// verbatim. It returns when stdin closes.
func runREPL(ctx context.Context, sess *session.Session, catalog *command.Catalog, metrics *observability.Metrics, tracer *observability.Tracer, logger *slog.Logger) error {
	start := time.Now()
	metrics.SessionStarted()
	defer metrics.SessionEnded(time.Since(start).Seconds())

	go printEvents(ctx, sess, metrics, tracer, os.Stdout)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	fmt.Fprintln(os.Stdout, "agentcore ready. Type a message and press enter; Ctrl-D to exit.")
	for {
		fmt.Fprint(os.Stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if expanded, handled := tryExpandCommand(catalog, line); handled {
			if expanded == "" {
				continue
			}
			line = expanded
		}

		sess.Submit(session.Submission{
			Op:    session.OpUserTurn,
			Items: []*models.ResponseItem{models.NewUserMessage(line)},
		})
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	sess.Submit(session.Submission{Op: session.OpShutdown})
	return nil
}

// tryExpandCommand resolves a leading "/name args" line against the
// session's discovered command catalog, per spec.md §4.9's hot-reloaded
// custom-command surface. handled is false when line isn't a command
// invocation at all (left for the caller to submit verbatim).
func tryExpandCommand(catalog *command.Catalog, line string) (expanded string, handled bool) {
	if !strings.HasPrefix(line, "/") {
		return "", false
	}
	if catalog == nil {
		return "", false
	}
	rest := strings.TrimPrefix(line, "/")
	name, argText, _ := strings.Cut(rest, " ")
	prompt, err := catalog.Invoke(name, argText)
	if err != nil {
		fmt.Fprintf(os.Stdout, "command error: %v\n", err)
		return "", true
	}
	return prompt, true
}

// printEvents renders a Session's event stream to w until it closes,
// following the teacher's CLI rendering conventions: streamed text deltas
// with no trailing newline, structured lines for tool lifecycle and
// approval prompts. It also records one TurnCounter/TurnDuration sample
// per completed or failed turn, and opens one TraceTurn span per turn plus
// nested TraceExecCommand/TraceSubAgentRun spans for the tool activity a
// turn drives — closed on the matching *End/terminal event.
func printEvents(ctx context.Context, sess *session.Session, metrics *observability.Metrics, tracer *observability.Tracer, w *os.File) {
	turnStart := time.Now()
	_, turnSpan := tracer.TraceTurn(ctx, sess.ConversationID)
	var execSpan trace.Span
	var subAgentSpan trace.Span
	awaitedApproval := false
	subAgentStart := time.Now()
	for e := range sess.Events() {
		switch e.Type {
		case session.EventAgentMessageDelta:
			fmt.Fprint(w, e.Text)
		case session.EventAgentMessage:
			fmt.Fprintln(w)
		case session.EventExecBegin:
			fmt.Fprintf(w, "\n$ %s\n", strings.Join(e.Command, " "))
			decision := "auto_approve"
			if awaitedApproval {
				decision = "ask_user"
			} else {
				metrics.RecordExecApproval("auto_approve", "ran")
			}
			_, execSpan = tracer.TraceExecCommand(ctx, decision)
			awaitedApproval = false
		case session.EventExecEnd:
			if e.ExitCode != nil && *e.ExitCode != 0 {
				fmt.Fprintf(w, "(exit %d)\n", *e.ExitCode)
			}
			if execSpan != nil {
				tracer.SetAttributes(execSpan, "exit_code", derefExitCode(e.ExitCode))
				execSpan.End()
				execSpan = nil
			}
		case session.EventExecApprovalRequest:
			awaitedApproval = true
			handleApproval(sess, e, "run", metrics)
		case session.EventPatchApprovalRequest:
			handleApproval(sess, e, "apply patch", metrics)
		case session.EventSubAgentBegin:
			fmt.Fprintf(w, "\n[sub-agent %s started]\n", e.SubAgentName)
			subAgentStart = time.Now()
			_, subAgentSpan = tracer.TraceSubAgentRun(ctx, e.SubAgentName)
		case session.EventSubAgentEnd:
			fmt.Fprintf(w, "[sub-agent %s finished]\n", e.SubAgentName)
			outcome := "success"
			if !e.Success {
				outcome = "error"
			}
			metrics.RecordSubAgentRun(e.SubAgentName, outcome, time.Since(subAgentStart).Seconds())
			if subAgentSpan != nil {
				if !e.Success {
					tracer.RecordError(subAgentSpan, fmt.Errorf("sub-agent %s failed", e.SubAgentName))
				}
				subAgentSpan.End()
				subAgentSpan = nil
			}
		case session.EventTurnDiff:
			fmt.Fprintf(w, "\n%s\n", e.Diff)
		case session.EventError, session.EventStreamError:
			fmt.Fprintf(w, "\nerror: %s\n", e.Err)
			metrics.RecordTurn("error", time.Since(turnStart).Seconds())
			if e.Err != "" {
				tracer.RecordError(turnSpan, fmt.Errorf("%s", e.Err))
			}
			turnSpan.End()
			turnStart = time.Now()
			_, turnSpan = tracer.TraceTurn(ctx, sess.ConversationID)
		case session.EventTaskComplete:
			fmt.Fprintln(w)
			metrics.RecordTurn("success", time.Since(turnStart).Seconds())
			turnSpan.End()
			turnStart = time.Now()
			_, turnSpan = tracer.TraceTurn(ctx, sess.ConversationID)
		}
	}
	turnSpan.End()
}

func derefExitCode(code *int) int {
	if code == nil {
		return 0
	}
	return *code
}

// handleApproval prints the pending command/diff and blocks on stdin for
// a y/n/always/abort answer, submitting the decision back to sess. A
// minimal stand-in for the full terminal UI's approval widget. For exec
// approvals it also records the ask_user decision's outcome; apply_patch
// approvals have no dedicated exec-engine metric.
func handleApproval(sess *session.Session, e session.Event, verb string, metrics *observability.Metrics) {
	fmt.Printf("\napprove %s? %v [y/N/a=always/q=abort]: ", verb, e.Command)
	if e.Diff != "" {
		fmt.Printf("\n%s\n", e.Diff)
	}
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))

	decision := models.ReviewDenied
	switch answer {
	case "y", "yes":
		decision = models.ReviewApproved
	case "a", "always":
		decision = models.ReviewApprovedForSession
	case "q", "abort":
		decision = models.ReviewAbort
	}

	if verb == "run" {
		outcome := "rejected"
		if decision == models.ReviewApproved || decision == models.ReviewApprovedForSession {
			outcome = "ran"
		}
		metrics.RecordExecApproval("ask_user", outcome)
	}

	sess.Submit(session.Submission{
		Op:         session.OpApprovalDecision,
		ApprovalID: e.ApprovalID,
		Decision:   decision,
	})
}
