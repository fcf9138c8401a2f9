package rollout

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/google/uuid"
)

// Reader reads a rollout file back into its Header and the ResponseItems
// that follow, adapted from the teacher's TraceReader (decode-header-then-
// decode-events shape), generalized from json.Decoder-streaming to
// line-based scanning so a cursor can resume mid-file.
type Reader struct {
	scanner *bufio.Scanner
	header  Header
}

// NewReader reads and validates the header line, then returns a Reader
// positioned at the first item line.
func NewReader(r io.Reader) (*Reader, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("rollout: empty file, no header")
	}
	var header Header
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return nil, fmt.Errorf("rollout: invalid header: %w", err)
	}
	if header.Version != CurrentVersion {
		return nil, fmt.Errorf("rollout: unsupported version %d", header.Version)
	}
	return &Reader{scanner: scanner, header: header}, nil
}

// Header returns the file's metadata line.
func (r *Reader) Header() Header { return r.header }

// Next returns the next item, or io.EOF once the file is exhausted.
func (r *Reader) Next() (*models.ResponseItem, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	var line lineEnvelope
	if err := json.Unmarshal(r.scanner.Bytes(), &line); err != nil {
		return nil, fmt.Errorf("rollout: invalid item line: %w", err)
	}
	if line.Item == nil {
		return nil, fmt.Errorf("rollout: item line missing \"item\"")
	}
	line.Item.Timestamp = line.Timestamp
	return line.Item, nil
}

// ReadAll drains every remaining item.
func (r *Reader) ReadAll() ([]*models.ResponseItem, error) {
	var items []*models.ResponseItem
	for {
		item, err := r.Next()
		if err == io.EOF {
			return items, nil
		}
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
}

// Cursor identifies one item's position for pagination:
// "<unix-nanos-timestamp>|<uuid>" — sortable lexically by timestamp, with
// a uuid tiebreaker for items sharing a timestamp.
type Cursor struct {
	TimestampNanos int64
	Tiebreaker     string
}

// String renders the wire form "<timestamp>|<uuid>".
func (c Cursor) String() string {
	return fmt.Sprintf("%d|%s", c.TimestampNanos, c.Tiebreaker)
}

// ParseCursor parses the "<timestamp>|<uuid>" wire form.
func ParseCursor(s string) (Cursor, error) {
	parts := strings.SplitN(s, "|", 2)
	if len(parts) != 2 {
		return Cursor{}, fmt.Errorf("rollout: malformed cursor %q", s)
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("rollout: malformed cursor timestamp %q: %w", s, err)
	}
	return Cursor{TimestampNanos: ts, Tiebreaker: parts[1]}, nil
}

// NewCursor builds a fresh cursor for an item recorded at nanos.
func NewCursor(nanos int64) Cursor {
	return Cursor{TimestampNanos: nanos, Tiebreaker: uuid.NewString()}
}

// Page reads up to limit items starting strictly after after (zero-value
// Cursor means "from the beginning"), returning the items and the cursor
// of the last one read (for the caller's next Page call).
func (r *Reader) Page(after Cursor, limit int) ([]*models.ResponseItem, Cursor, error) {
	var items []*models.ResponseItem
	last := after
	for len(items) < limit {
		item, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return items, last, err
		}
		cur := NewCursor(item.Timestamp.UnixNano())
		if after.TimestampNanos != 0 && cur.TimestampNanos <= after.TimestampNanos {
			continue
		}
		items = append(items, item)
		last = cur
	}
	return items, last, nil
}
