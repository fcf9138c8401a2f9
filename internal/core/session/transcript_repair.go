package session

import "github.com/agentcore/coreagent/internal/core/models"

// RepairTranscript drops orphaned tool/shell/custom-tool outputs (no
// matching call earlier in history) and synthesizes an "aborted" output
// for any call left pending at the end of history, adapted from the
// teacher's internal/agent/transcript_repair.go (pending-call-id tracking
// across a linear scan) to models.ResponseItem's single tagged-union shape
// in place of the teacher's Message/ToolCalls/ToolResults triple. This is
// what lets a resumed rollout satisfy spec.md invariant 1 (every
// FunctionCall has exactly one matching output) even if the recorded file
// was truncated mid-turn by a crash.
func RepairTranscript(history []*models.ResponseItem) []*models.ResponseItem {
	if len(history) == 0 {
		return history
	}

	pending := make(map[string]struct{})
	order := make([]string, 0)
	repaired := make([]*models.ResponseItem, 0, len(history))

	for _, item := range history {
		if item == nil {
			continue
		}
		switch {
		case item.IsCall():
			pending[item.CallID] = struct{}{}
			order = append(order, item.CallID)
			repaired = append(repaired, item)

		case item.IsOutput():
			id := item.MatchID()
			if _, ok := pending[id]; !ok {
				continue // orphaned output, no matching call in history
			}
			delete(pending, id)
			order = removeID(order, id)
			repaired = append(repaired, item)

		default:
			repaired = append(repaired, item)
		}
	}

	for _, id := range order {
		repaired = append(repaired, models.NewAbortedOutput(id))
	}
	return repaired
}

func removeID(ids []string, target string) []string {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
