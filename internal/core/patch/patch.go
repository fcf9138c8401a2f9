// Package patch implements the apply-patch engine of spec.md §4.5: a
// structured-diff parser over Add/Update/Delete/Move file changes, and
// application of those changes under a sandbox policy's writable roots.
package patch

// ChangeKind tags the kind of change one file entry in a patch represents.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// Hunk is one contiguous block of context/add/remove lines within an
// Update change, adapted from the teacher's internal/tools/files/patch.go
// hunk type (it additionally has no header line counts here; positions are
// located by context-line matching rather than trusted @@ offsets, since a
// model-authored patch's line numbers are frequently stale).
type Hunk struct {
	// Lines carries unified-diff body lines: a leading ' ' (context),
	// '-' (remove), or '+' (add) byte followed by the line text.
	Lines []string
}

// FileChange is one file's change within a patch.
type FileChange struct {
	Kind ChangeKind
	Path string

	// Add
	Content string

	// Update
	Hunks    []Hunk
	MovePath string // non-empty when the update also renames the file
}

// Patch is a parsed, ordered set of file changes.
type Patch struct {
	Changes []FileChange
}
