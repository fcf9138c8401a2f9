package patch

import (
	"fmt"
	"strings"
)

const (
	markerBegin  = "*** Begin Patch"
	markerEnd    = "*** End Patch"
	prefixAdd    = "*** Add File: "
	prefixUpdate = "*** Update File: "
	prefixDelete = "*** Delete File: "
	prefixMove   = "*** Move to: "
	prefixHunk   = "@@"
)

// Parse reads a patch body in the structured Add/Update/Delete/Move
// envelope spec.md §4.5 names: a `*** Begin Patch` / `*** End Patch`
// wrapper around one or more `*** Add File: path` / `*** Update File: path`
// / `*** Delete File: path` sections, each followed by its body (added
// content for Add, unified-diff hunk lines for Update, an optional
// `*** Move to: path` rename for Update, nothing for Delete).
//
// The hunk body grammar (leading ' '/'+'/'-' per line) and its application
// algorithm are adapted from the teacher's
// internal/tools/files/patch.go unified-diff engine; the outer
// Add/Update/Delete/Move envelope has no unified-diff equivalent and is
// new, required by spec.md's tagged-union change model.
func Parse(body string) (*Patch, error) {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")

	start := indexOfTrimmed(lines, markerBegin)
	end := indexOfTrimmed(lines, markerEnd)
	if start < 0 || end < 0 || end <= start {
		return nil, fmt.Errorf("patch: missing %q/%q markers", markerBegin, markerEnd)
	}
	lines = lines[start+1 : end]

	var p Patch
	var current *FileChange

	flush := func() {
		if current != nil {
			p.Changes = append(p.Changes, *current)
			current = nil
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, prefixAdd):
			flush()
			current = &FileChange{Kind: ChangeAdd, Path: strings.TrimSpace(strings.TrimPrefix(line, prefixAdd))}

		case strings.HasPrefix(line, prefixUpdate):
			flush()
			current = &FileChange{Kind: ChangeUpdate, Path: strings.TrimSpace(strings.TrimPrefix(line, prefixUpdate))}

		case strings.HasPrefix(line, prefixDelete):
			flush()
			current = &FileChange{Kind: ChangeDelete, Path: strings.TrimSpace(strings.TrimPrefix(line, prefixDelete))}

		case strings.HasPrefix(line, prefixMove):
			if current == nil || current.Kind != ChangeUpdate {
				return nil, fmt.Errorf("patch: %q with no preceding Update File section", strings.TrimSpace(line))
			}
			current.MovePath = strings.TrimSpace(strings.TrimPrefix(line, prefixMove))

		case strings.HasPrefix(line, prefixHunk):
			if current == nil || current.Kind != ChangeUpdate {
				return nil, fmt.Errorf("patch: hunk marker outside an Update File section")
			}
			current.Hunks = append(current.Hunks, Hunk{})

		case current == nil:
			if strings.TrimSpace(line) == "" {
				continue
			}
			return nil, fmt.Errorf("patch: content outside any file section: %q", line)

		default:
			switch current.Kind {
			case ChangeAdd:
				current.Content += strings.TrimPrefix(line, "+") + "\n"
			case ChangeUpdate:
				if line == "" {
					continue
				}
				if len(current.Hunks) == 0 {
					current.Hunks = append(current.Hunks, Hunk{})
				}
				prefix := line[0]
				if prefix != ' ' && prefix != '+' && prefix != '-' {
					return nil, fmt.Errorf("patch: invalid hunk line (must start with ' ', '+', or '-'): %q", line)
				}
				h := &current.Hunks[len(current.Hunks)-1]
				h.Lines = append(h.Lines, line)
			case ChangeDelete:
				// Delete sections carry no body; ignore stray blank lines.
				if strings.TrimSpace(line) != "" {
					return nil, fmt.Errorf("patch: Delete File section for %q has unexpected content", current.Path)
				}
			}
		}
	}
	flush()

	if len(p.Changes) == 0 {
		return nil, fmt.Errorf("patch: no file changes found")
	}
	return &p, nil
}

func indexOfTrimmed(lines []string, marker string) int {
	for i, l := range lines {
		if strings.TrimSpace(l) == marker {
			return i
		}
	}
	return -1
}
