package subagent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeAgentDef(t *testing.T, root, name, frontBody string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, DefinitionFilename), []byte(frontBody), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirSource_Discover(t *testing.T) {
	root := t.TempDir()
	writeAgentDef(t, root, "reviewer", "---\ndescription: reviews code\n---\nReview the diff.\n")
	writeAgentDef(t, root, "broken", "not even frontmatter")

	src := NewDirSource(root, SourceProject)
	defs, err := src.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover error: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("expected 1 valid definition (malformed entries skipped), got %d", len(defs))
	}
	if defs[0].Name != "reviewer" {
		t.Errorf("name = %q", defs[0].Name)
	}
	if defs[0].Source != SourceProject || defs[0].SourcePriority != SourceProject.priority() {
		t.Errorf("source metadata not set: %+v", defs[0])
	}
}

func TestDirSource_Discover_MissingDirReturnsEmpty(t *testing.T) {
	src := NewDirSource(filepath.Join(t.TempDir(), "does-not-exist"), SourceUser)
	defs, err := src.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error for missing directory: %v", err)
	}
	if len(defs) != 0 {
		t.Errorf("expected no definitions, got %d", len(defs))
	}
}

func TestDiscoverAll_ProjectOverridesUser(t *testing.T) {
	userRoot := t.TempDir()
	projectRoot := t.TempDir()
	writeAgentDef(t, userRoot, "reviewer", "---\ndescription: user version\n---\nUser instructions.\n")
	writeAgentDef(t, projectRoot, "reviewer", "---\ndescription: project version\n---\nProject instructions.\n")

	merged, err := DiscoverAll(context.Background(),
		NewDirSource(userRoot, SourceUser),
		NewDirSource(projectRoot, SourceProject),
	)
	if err != nil {
		t.Fatalf("DiscoverAll error: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged definition, got %d", len(merged))
	}
	if merged["reviewer"].Description != "project version" {
		t.Errorf("expected project source to win, got %q", merged["reviewer"].Description)
	}
}

func TestNames_Sorted(t *testing.T) {
	defs := map[string]*Definition{
		"zeta":  {Name: "zeta"},
		"alpha": {Name: "alpha"},
		"mid":   {Name: "mid"},
	}
	names := Names(defs)
	want := []string{"alpha", "mid", "zeta"}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], n)
		}
	}
}
