// Package rollout implements spec.md §4.8: an append-only JSONL recording
// of every item a session's history accumulates, with a header-first-line
// format, fsync-per-write durability, and an optional secondary index for
// fast cursor lookups — adapted from the teacher's internal/agent/trace.go
// TracePlugin/TraceReader.
package rollout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/agentcore/coreagent/internal/core/models"
)

// Header is the first line of a rollout file, carrying metadata needed to
// interpret and version the lines that follow.
type Header struct {
	Version        int       `json:"version"`
	ConversationID string    `json:"conversation_id"`
	StartedAt      time.Time `json:"started_at"`
	Cwd            string    `json:"cwd,omitempty"`
}

// CurrentVersion is the rollout schema version written by Recorder.
const CurrentVersion = 1

// Redactor mutates an item in place to strip sensitive content before it
// is written, mirroring the teacher's Redactor hook.
type Redactor func(item *models.ResponseItem)

// Recorder writes a session's history as JSONL: one Header line, then one
// ResponseItem per line, each flushed and fsynced immediately so a crash
// loses at most the write in flight.
type Recorder struct {
	mu       sync.Mutex
	writer   io.Writer
	file     *os.File
	redactor Redactor
	header   Header
	started  bool
}

// NewRecorder wraps an already-open writer (for testing, or a non-file sink).
func NewRecorder(w io.Writer, header Header, redactor Redactor) *Recorder {
	header.Version = CurrentVersion
	if header.StartedAt.IsZero() {
		header.StartedAt = time.Now()
	}
	return &Recorder{writer: w, header: header, redactor: redactor}
}

// NewFileRecorder creates (or truncates) path and returns a Recorder that
// writes to it, fsyncing after every line.
func NewFileRecorder(path string, header Header, redactor Redactor) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("rollout: create %s: %w", path, err)
	}
	r := NewRecorder(f, header, redactor)
	r.file = f
	return r, nil
}

// OpenFileRecorderForAppend reopens an existing rollout file in append
// mode, for resuming a conversation: the header line already on disk is
// kept as-is (not rewritten), and new Append calls add further item lines
// after it, preserving spec.md invariant 4's append-only guarantee across
// a resume.
func OpenFileRecorderForAppend(path string, redactor Redactor) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("rollout: open %s for append: %w", path, err)
	}
	return &Recorder{writer: f, file: f, redactor: redactor, started: true}, nil
}

// Append implements session.Rollout: writes the header (once, lazily, on
// the first call) then the item, each as its own JSON line.
func (r *Recorder) Append(item *models.ResponseItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		r.started = true
		if err := r.writeLine(r.header); err != nil {
			return err
		}
	}

	copied := *item
	if r.redactor != nil {
		r.redactor(&copied)
	}
	copied.Timestamp = time.Now()
	return r.writeLine(lineEnvelope{Timestamp: copied.Timestamp, Item: &copied})
}

// lineEnvelope is the on-disk shape of an item line. ResponseItem.Timestamp
// is tagged json:"-" (it plays no part in the provider-facing wire shape),
// so the rollout format carries it alongside the item instead.
type lineEnvelope struct {
	Timestamp time.Time             `json:"timestamp"`
	Item      *models.ResponseItem  `json:"item"`
}

func (r *Recorder) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("rollout: marshal: %w", err)
	}
	if _, err := r.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("rollout: write: %w", err)
	}
	if r.file != nil {
		if err := r.file.Sync(); err != nil {
			return fmt.Errorf("rollout: fsync: %w", err)
		}
	}
	return nil
}

// Close implements session.Rollout, closing the underlying file if one was
// opened by NewFileRecorder.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// DefaultRedactor replaces function-call arguments and outputs with a
// placeholder, matching the teacher's DefaultRedactor intent (tool
// input/output is the usual home for secrets leaking into a transcript).
func DefaultRedactor(item *models.ResponseItem) {
	switch item.Type {
	case models.ItemFunctionCall, models.ItemCustomToolCall:
		if len(item.Arguments) > 0 {
			item.Arguments = json.RawMessage(`"[REDACTED]"`)
		}
	case models.ItemFunctionCallOut, models.ItemCustomToolOut, models.ItemLocalShellOut:
		if item.Output != "" {
			item.Output = "[REDACTED]"
		}
	}
}
