package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentcore/coreagent/internal/core/models"
)

// Resolver confines relative paths to one of a sandbox policy's writable
// roots, adapted from the teacher's internal/tools/files/resolver.go
// (single-root Resolve) generalized to the multi-root WritableRoots list
// spec.md's SandboxPolicy carries.
type Resolver struct {
	Cwd    string
	Policy models.SandboxPolicy
}

// Resolve returns an absolute, cleaned path, and the writable root it fell
// under (empty if DangerFullAccess). An error is returned if the path
// escapes every candidate root.
func (r Resolver) Resolve(path string) (abs string, root string, err error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", "", fmt.Errorf("patch: path is required")
	}

	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		base := r.Cwd
		if base == "" {
			base = "."
		}
		target = filepath.Join(base, clean)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", "", fmt.Errorf("patch: resolve path: %w", err)
	}

	if r.Policy.Mode == models.SandboxDangerFullAccess {
		return targetAbs, "", nil
	}

	for _, candidate := range r.candidateRoots() {
		rootAbs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(rootAbs, targetAbs)
		if err != nil {
			continue
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			continue
		}
		return targetAbs, rootAbs, nil
	}
	return "", "", fmt.Errorf("patch: path %q escapes every writable root", path)
}

func (r Resolver) candidateRoots() []string {
	if len(r.Policy.WritableRoots) > 0 {
		return r.Policy.WritableRoots
	}
	if r.Cwd != "" {
		return []string{r.Cwd}
	}
	return []string{"."}
}
