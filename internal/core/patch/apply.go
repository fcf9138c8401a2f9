package patch

import (
	"fmt"
	"os"
	"strings"

	"github.com/agentcore/coreagent/internal/core/models"
)

// ApprovalRequirement describes why applying a patch needs user approval:
// at least one target path fell outside every writable root.
type ApprovalRequirement struct {
	Path         string
	OffendingRoot string
}

// Plan resolves every change's target path against policy and reports any
// paths that would require approval before Apply can run, per spec.md
// §4.5: "a single path outside a writable root downgrades to user
// approval (with the offending root surfaced so the user may grant it)."
func Plan(p *Patch, cwd string, policy models.SandboxPolicy) []ApprovalRequirement {
	resolver := Resolver{Cwd: cwd, Policy: policy}
	var needsApproval []ApprovalRequirement
	for _, change := range p.Changes {
		path := change.Path
		if change.Kind == ChangeUpdate && change.MovePath != "" {
			path = change.MovePath
		}
		if _, _, err := resolver.Resolve(path); err != nil {
			needsApproval = append(needsApproval, ApprovalRequirement{Path: path, OffendingRoot: firstRoot(policy)})
		}
	}
	return needsApproval
}

func firstRoot(policy models.SandboxPolicy) string {
	if len(policy.WritableRoots) > 0 {
		return policy.WritableRoots[0]
	}
	return ""
}

// FileResult summarizes what happened to one file during Apply.
type FileResult struct {
	Path         string
	Kind         ChangeKind
	LinesAdded   int
	LinesRemoved int
	UnifiedDiff  string
}

// Result is the outcome of applying a whole patch.
type Result struct {
	Files []FileResult
}

// Apply resolves and executes every change in p against the filesystem,
// confined to policy's writable roots via Resolver. It stops at the first
// failing change, leaving prior changes in p already applied (patches are
// not transactional across files, matching the teacher's
// ApplyPatchTool.Execute behavior, which writes each file as it goes).
func Apply(p *Patch, cwd string, policy models.SandboxPolicy) (*Result, error) {
	resolver := Resolver{Cwd: cwd, Policy: policy}
	result := &Result{}

	for _, change := range p.Changes {
		switch change.Kind {
		case ChangeAdd:
			abs, _, err := resolver.Resolve(change.Path)
			if err != nil {
				return result, err
			}
			if err := os.WriteFile(abs, []byte(change.Content), 0o644); err != nil {
				return result, fmt.Errorf("patch: write %q: %w", change.Path, err)
			}
			added := strings.Count(change.Content, "\n")
			result.Files = append(result.Files, FileResult{
				Path: change.Path, Kind: ChangeAdd, LinesAdded: added,
				UnifiedDiff: addedFileDiff(change.Path, change.Content),
			})

		case ChangeDelete:
			abs, _, err := resolver.Resolve(change.Path)
			if err != nil {
				return result, err
			}
			data, readErr := os.ReadFile(abs)
			if err := os.Remove(abs); err != nil {
				return result, fmt.Errorf("patch: delete %q: %w", change.Path, err)
			}
			removed := 0
			if readErr == nil {
				removed = strings.Count(string(data), "\n")
			}
			result.Files = append(result.Files, FileResult{
				Path: change.Path, Kind: ChangeDelete, LinesRemoved: removed,
				UnifiedDiff: deletedFileDiff(change.Path),
			})

		case ChangeUpdate:
			abs, _, err := resolver.Resolve(change.Path)
			if err != nil {
				return result, err
			}
			data, err := os.ReadFile(abs)
			if err != nil {
				return result, fmt.Errorf("patch: read %q: %w", change.Path, err)
			}
			updated, added, removed, err := applyHunks(string(data), change.Hunks)
			if err != nil {
				return result, fmt.Errorf("patch: apply hunks to %q: %w", change.Path, err)
			}

			destPath := change.Path
			destAbs := abs
			if change.MovePath != "" {
				destAbs, _, err = resolver.Resolve(change.MovePath)
				if err != nil {
					return result, err
				}
				destPath = change.MovePath
			}
			if err := os.WriteFile(destAbs, []byte(updated), 0o644); err != nil {
				return result, fmt.Errorf("patch: write %q: %w", destPath, err)
			}
			if destAbs != abs {
				if err := os.Remove(abs); err != nil {
					return result, fmt.Errorf("patch: remove old path %q after move: %w", change.Path, err)
				}
			}
			result.Files = append(result.Files, FileResult{
				Path: destPath, Kind: ChangeUpdate, LinesAdded: added, LinesRemoved: removed,
				UnifiedDiff: hunksDiff(change.Path, destPath, change.Hunks),
			})
		}
	}
	return result, nil
}

// applyHunks applies a sequence of context-located hunks to content,
// adapted directly from the teacher's internal/tools/files/patch.go
// applyFilePatch: each hunk's lines are matched against content starting
// from the position the previous hunk left off, context lines (' ') must
// match exactly, '-' lines must match and are removed, '+' lines are
// inserted. Unlike the teacher, hunk position is found by scanning for the
// first context/remove line match near the previous cursor rather than
// trusting a stale @@ offset, since a model-authored patch rarely carries
// reliable line numbers.
func applyHunks(content string, hunks []Hunk) (string, int, int, error) {
	hadTrailingNewline := strings.HasSuffix(content, "\n")
	trimmed := strings.TrimSuffix(content, "\n")
	var lines []string
	if trimmed != "" {
		lines = strings.Split(trimmed, "\n")
	}

	added, removed := 0, 0
	cursor := 0

	for _, h := range hunks {
		firstAnchor := firstContextOrRemoveLine(h.Lines)
		if firstAnchor != "" {
			if pos := indexFrom(lines, firstAnchor, cursor); pos >= 0 {
				cursor = pos
			}
		}

		for _, line := range h.Lines {
			if line == "" {
				continue
			}
			prefix := line[0]
			text := line[1:]
			switch prefix {
			case ' ':
				if cursor >= len(lines) || lines[cursor] != text {
					return "", 0, 0, fmt.Errorf("context mismatch at line %d", cursor+1)
				}
				cursor++
			case '-':
				if cursor >= len(lines) || lines[cursor] != text {
					return "", 0, 0, fmt.Errorf("delete mismatch at line %d", cursor+1)
				}
				lines = append(lines[:cursor], lines[cursor+1:]...)
				removed++
			case '+':
				lines = append(lines[:cursor], append([]string{text}, lines[cursor:]...)...)
				cursor++
				added++
			}
		}
	}

	out := strings.Join(lines, "\n")
	if hadTrailingNewline && out != "" {
		out += "\n"
	}
	return out, added, removed, nil
}

func firstContextOrRemoveLine(lines []string) string {
	for _, l := range lines {
		if l == "" {
			continue
		}
		if l[0] == ' ' || l[0] == '-' {
			return l[1:]
		}
	}
	return ""
}

func indexFrom(lines []string, text string, from int) int {
	for i := from; i < len(lines); i++ {
		if lines[i] == text {
			return i
		}
	}
	for i := 0; i < from && i < len(lines); i++ {
		if lines[i] == text {
			return i
		}
	}
	return -1
}

func addedFileDiff(path, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- /dev/null\n+++ b/%s\n", path)
	for _, line := range strings.Split(strings.TrimSuffix(content, "\n"), "\n") {
		b.WriteString("+" + line + "\n")
	}
	return b.String()
}

func deletedFileDiff(path string) string {
	return fmt.Sprintf("--- a/%s\n+++ /dev/null\n", path)
}

func hunksDiff(oldPath, newPath string, hunks []Hunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", oldPath, newPath)
	for _, h := range hunks {
		b.WriteString("@@ @@\n")
		for _, line := range h.Lines {
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}
