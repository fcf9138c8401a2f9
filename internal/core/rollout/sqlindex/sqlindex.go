// Package sqlindex provides a rebuildable secondary index over rollout
// files: conversation id, item timestamp, and byte offset, so a cursor
// lookup can seek directly to a line instead of scanning from the start
// of a (potentially large) JSONL file. Adapted from the teacher's
// sqlite-vec memory backend (internal/memory/backend/sqlitevec/backend.go)
// for its sql.Open("sqlite", ...) + CREATE TABLE IF NOT EXISTS + indexed-
// column shape, using the same pure-Go modernc.org/sqlite driver.
package sqlindex

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Index is a rebuildable cache: dropping and re-running Rebuild against
// the rollout directory always restores it, so it is never the source of
// truth (the JSONL files are) and can be deleted safely at any time.
type Index struct {
	db *sql.DB
}

// Open opens (creating if absent) the index database at path.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlindex: open %s: %w", path, err)
	}
	idx := &Index{db: db}
	if err := idx.init(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) init() error {
	_, err := idx.db.Exec(`
		CREATE TABLE IF NOT EXISTS rollout_items (
			conversation_id TEXT NOT NULL,
			timestamp_nanos INTEGER NOT NULL,
			tiebreaker TEXT NOT NULL,
			byte_offset INTEGER NOT NULL,
			item_type TEXT,
			PRIMARY KEY (conversation_id, timestamp_nanos, tiebreaker)
		)
	`)
	if err != nil {
		return fmt.Errorf("sqlindex: create table: %w", err)
	}
	_, err = idx.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_rollout_items_conv_ts
		ON rollout_items(conversation_id, timestamp_nanos)
	`)
	if err != nil {
		return fmt.Errorf("sqlindex: create index: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (idx *Index) Close() error { return idx.db.Close() }

// Entry is one indexed rollout item's position.
type Entry struct {
	ConversationID string
	TimestampNanos int64
	Tiebreaker     string
	ByteOffset     int64
	ItemType       string
}

// Put records (or replaces) one entry.
func (idx *Index) Put(ctx context.Context, e Entry) error {
	_, err := idx.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO rollout_items
			(conversation_id, timestamp_nanos, tiebreaker, byte_offset, item_type)
		VALUES (?, ?, ?, ?, ?)
	`, e.ConversationID, e.TimestampNanos, e.Tiebreaker, e.ByteOffset, e.ItemType)
	if err != nil {
		return fmt.Errorf("sqlindex: put: %w", err)
	}
	return nil
}

// SeekAfter returns the byte offset of the first entry for conversationID
// strictly after afterNanos, or ok=false if none exists (caller should
// fall back to scanning from the start of the file).
func (idx *Index) SeekAfter(ctx context.Context, conversationID string, afterNanos int64) (offset int64, ok bool, err error) {
	row := idx.db.QueryRowContext(ctx, `
		SELECT byte_offset FROM rollout_items
		WHERE conversation_id = ? AND timestamp_nanos > ?
		ORDER BY timestamp_nanos ASC
		LIMIT 1
	`, conversationID, afterNanos)
	if err := row.Scan(&offset); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("sqlindex: seek: %w", err)
	}
	return offset, true, nil
}

// DeleteConversation removes every entry for conversationID, used when a
// rollout file is deleted or about to be rebuilt.
func (idx *Index) DeleteConversation(ctx context.Context, conversationID string) error {
	_, err := idx.db.ExecContext(ctx, `DELETE FROM rollout_items WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("sqlindex: delete: %w", err)
	}
	return nil
}
