package rollout

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/agentcore/coreagent/internal/core/rollout/sqlindex"
)

// RebuildIndex scans the rollout file at path and repopulates idx with one
// entry per item line, recording each line's starting byte offset. Safe to
// call repeatedly: it clears any stale entries for the file's conversation
// id first, so the index never drifts from the file it was built from.
func RebuildIndex(ctx context.Context, idx *sqlindex.Index, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("rollout: rebuild open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		return fmt.Errorf("rollout: rebuild: empty file %s", path)
	}
	var header Header
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return fmt.Errorf("rollout: rebuild: invalid header in %s: %w", path, err)
	}
	if err := idx.DeleteConversation(ctx, header.ConversationID); err != nil {
		return err
	}

	offset := int64(len(scanner.Bytes())) + 1
	for scanner.Scan() {
		line := scanner.Bytes()
		lineLen := int64(len(line)) + 1

		var env lineEnvelope
		if err := json.Unmarshal(line, &env); err != nil || env.Item == nil {
			offset += lineLen
			continue
		}

		entry := sqlindex.Entry{
			ConversationID: header.ConversationID,
			TimestampNanos: env.Timestamp.UnixNano(),
			Tiebreaker:     fmt.Sprintf("%d", offset),
			ByteOffset:     offset,
			ItemType:       string(env.Item.Type),
		}
		if err := idx.Put(ctx, entry); err != nil {
			return err
		}
		offset += lineLen
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("rollout: rebuild scan %s: %w", path, err)
	}
	return nil
}
