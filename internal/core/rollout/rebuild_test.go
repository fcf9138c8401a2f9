package rollout

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/rollout/sqlindex"
)

func TestRebuildIndex_PopulatesOneEntryPerItem(t *testing.T) {
	dir := t.TempDir()
	rolloutPath := filepath.Join(dir, "conv-1.jsonl")

	rec, err := NewFileRecorder(rolloutPath, Header{ConversationID: "conv-1"}, nil)
	if err != nil {
		t.Fatalf("NewFileRecorder error: %v", err)
	}
	for _, text := range []string{"one", "two", "three"} {
		if err := rec.Append(models.NewUserMessage(text)); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	idx, err := sqlindex.Open(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("sqlindex.Open error: %v", err)
	}
	defer idx.Close()

	ctx := context.Background()
	if err := RebuildIndex(ctx, idx, rolloutPath); err != nil {
		t.Fatalf("RebuildIndex error: %v", err)
	}

	_, ok, err := idx.SeekAfter(ctx, "conv-1", 0)
	if err != nil {
		t.Fatalf("SeekAfter error: %v", err)
	}
	if !ok {
		t.Error("expected at least one entry after rebuild")
	}
}

func TestRebuildIndex_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	rolloutPath := filepath.Join(dir, "conv-1.jsonl")

	rec, err := NewFileRecorder(rolloutPath, Header{ConversationID: "conv-1"}, nil)
	if err != nil {
		t.Fatalf("NewFileRecorder error: %v", err)
	}
	if err := rec.Append(models.NewUserMessage("hello")); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	idx, err := sqlindex.Open(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("sqlindex.Open error: %v", err)
	}
	defer idx.Close()

	ctx := context.Background()
	if err := RebuildIndex(ctx, idx, rolloutPath); err != nil {
		t.Fatalf("first RebuildIndex error: %v", err)
	}
	if err := RebuildIndex(ctx, idx, rolloutPath); err != nil {
		t.Fatalf("second RebuildIndex error: %v", err)
	}

	offset, ok, err := idx.SeekAfter(ctx, "conv-1", 0)
	if err != nil {
		t.Fatalf("SeekAfter error: %v", err)
	}
	if !ok {
		t.Fatal("expected entry to survive a second rebuild")
	}
	_ = offset
}

func TestRebuildIndex_MissingFileErrors(t *testing.T) {
	dir := t.TempDir()
	idx, err := sqlindex.Open(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("sqlindex.Open error: %v", err)
	}
	defer idx.Close()

	err = RebuildIndex(context.Background(), idx, filepath.Join(dir, "does-not-exist.jsonl"))
	if err == nil {
		t.Fatal("expected an error for a missing rollout file")
	}
}

func TestRebuildIndex_EmptyFileErrors(t *testing.T) {
	dir := t.TempDir()
	emptyPath := filepath.Join(dir, "empty.jsonl")
	if err := os.WriteFile(emptyPath, nil, 0o644); err != nil {
		t.Fatalf("write empty file: %v", err)
	}

	idx, err := sqlindex.Open(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("sqlindex.Open error: %v", err)
	}
	defer idx.Close()

	if err := RebuildIndex(context.Background(), idx, emptyPath); err == nil {
		t.Fatal("expected an error for an empty rollout file")
	}
}
