package patch

import (
	"path/filepath"
	"testing"

	"github.com/agentcore/coreagent/internal/core/models"
)

func TestResolver_ResolveWithinWritableRoot(t *testing.T) {
	root := t.TempDir()
	r := Resolver{Cwd: root, Policy: models.SandboxPolicy{Mode: models.SandboxWorkspaceWrite, WritableRoots: []string{root}}}

	abs, gotRoot, err := r.Resolve("sub/file.txt")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	wantAbs, _ := filepath.Abs(filepath.Join(root, "sub/file.txt"))
	if abs != wantAbs {
		t.Errorf("abs = %q, want %q", abs, wantAbs)
	}
	wantRoot, _ := filepath.Abs(root)
	if gotRoot != wantRoot {
		t.Errorf("root = %q, want %q", gotRoot, wantRoot)
	}
}

func TestResolver_EscapingPathRejected(t *testing.T) {
	root := t.TempDir()
	r := Resolver{Cwd: root, Policy: models.SandboxPolicy{Mode: models.SandboxWorkspaceWrite, WritableRoots: []string{root}}}

	if _, _, err := r.Resolve("../outside.txt"); err == nil {
		t.Fatal("expected escaping path to be rejected")
	}
}

func TestResolver_DangerFullAccessAllowsAnyPath(t *testing.T) {
	r := Resolver{Cwd: "/tmp", Policy: models.SandboxPolicy{Mode: models.SandboxDangerFullAccess}}

	abs, root, err := r.Resolve("/etc/anything")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if abs != "/etc/anything" {
		t.Errorf("abs = %q", abs)
	}
	if root != "" {
		t.Errorf("root = %q, want empty under full access", root)
	}
}

func TestResolver_MultipleWritableRootsTriesEach(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	r := Resolver{Cwd: rootA, Policy: models.SandboxPolicy{
		Mode:          models.SandboxWorkspaceWrite,
		WritableRoots: []string{rootA, rootB},
	}}

	abs, gotRoot, err := r.Resolve(filepath.Join(rootB, "in-b.txt"))
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	wantAbs, _ := filepath.Abs(filepath.Join(rootB, "in-b.txt"))
	if abs != wantAbs {
		t.Errorf("abs = %q, want %q", abs, wantAbs)
	}
	wantRoot, _ := filepath.Abs(rootB)
	if gotRoot != wantRoot {
		t.Errorf("root = %q, want %q", gotRoot, wantRoot)
	}
}

func TestResolver_EmptyPathRejected(t *testing.T) {
	r := Resolver{Cwd: t.TempDir(), Policy: models.SandboxPolicy{Mode: models.SandboxWorkspaceWrite}}
	if _, _, err := r.Resolve("   "); err == nil {
		t.Fatal("expected an error for an empty path")
	}
}

func TestResolver_NoWritableRootsFallsBackToCwd(t *testing.T) {
	root := t.TempDir()
	r := Resolver{Cwd: root, Policy: models.SandboxPolicy{Mode: models.SandboxWorkspaceWrite}}

	abs, _, err := r.Resolve("file.txt")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	want, _ := filepath.Abs(filepath.Join(root, "file.txt"))
	if abs != want {
		t.Errorf("abs = %q, want %q", abs, want)
	}
}
