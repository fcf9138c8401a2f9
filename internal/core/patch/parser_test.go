package patch

import "testing"

func TestParse_AddFile(t *testing.T) {
	body := `*** Begin Patch
*** Add File: hello.txt
+line one
+line two
*** End Patch`

	p, err := Parse(body)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(p.Changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(p.Changes))
	}
	c := p.Changes[0]
	if c.Kind != ChangeAdd || c.Path != "hello.txt" {
		t.Errorf("change = %+v", c)
	}
	if c.Content != "line one\nline two\n" {
		t.Errorf("content = %q", c.Content)
	}
}

func TestParse_DeleteFile(t *testing.T) {
	body := `*** Begin Patch
*** Delete File: old.txt
*** End Patch`

	p, err := Parse(body)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if p.Changes[0].Kind != ChangeDelete || p.Changes[0].Path != "old.txt" {
		t.Errorf("change = %+v", p.Changes[0])
	}
}

func TestParse_UpdateFileWithHunk(t *testing.T) {
	body := `*** Begin Patch
*** Update File: main.go
@@
 unchanged line
-old line
+new line
*** End Patch`

	p, err := Parse(body)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	c := p.Changes[0]
	if c.Kind != ChangeUpdate || c.Path != "main.go" {
		t.Errorf("change = %+v", c)
	}
	if len(c.Hunks) != 1 || len(c.Hunks[0].Lines) != 3 {
		t.Fatalf("hunks = %+v", c.Hunks)
	}
}

func TestParse_UpdateFileWithMove(t *testing.T) {
	body := `*** Begin Patch
*** Update File: old.go
*** Move to: new.go
@@
-before
+after
*** End Patch`

	p, err := Parse(body)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	c := p.Changes[0]
	if c.MovePath != "new.go" {
		t.Errorf("MovePath = %q", c.MovePath)
	}
}

func TestParse_MultipleFileChanges(t *testing.T) {
	body := `*** Begin Patch
*** Add File: a.txt
+content a
*** Delete File: b.txt
*** Update File: c.txt
@@
-old c
+new c
*** End Patch`

	p, err := Parse(body)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(p.Changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(p.Changes))
	}
}

func TestParse_MissingMarkersErrors(t *testing.T) {
	if _, err := Parse("*** Add File: a.txt\n+x"); err == nil {
		t.Fatal("expected error without Begin/End markers")
	}
}

func TestParse_NoChangesErrors(t *testing.T) {
	body := "*** Begin Patch\n*** End Patch"
	if _, err := Parse(body); err == nil {
		t.Fatal("expected error for a patch with no file changes")
	}
}

func TestParse_MoveOutsideUpdateErrors(t *testing.T) {
	body := `*** Begin Patch
*** Add File: a.txt
*** Move to: b.txt
*** End Patch`
	if _, err := Parse(body); err == nil {
		t.Fatal("expected error for Move to outside an Update section")
	}
}

func TestParse_HunkOutsideUpdateErrors(t *testing.T) {
	body := `*** Begin Patch
*** Add File: a.txt
@@
 x
*** End Patch`
	if _, err := Parse(body); err == nil {
		t.Fatal("expected error for a hunk marker outside an Update section")
	}
}

func TestParse_ContentOutsideSectionErrors(t *testing.T) {
	body := `*** Begin Patch
stray content
*** End Patch`
	if _, err := Parse(body); err == nil {
		t.Fatal("expected error for content before any file section")
	}
}

func TestParse_InvalidHunkLinePrefixErrors(t *testing.T) {
	body := `*** Begin Patch
*** Update File: a.txt
@@
*bad prefix
*** End Patch`
	if _, err := Parse(body); err == nil {
		t.Fatal("expected error for a hunk line without a valid prefix")
	}
}

func TestParse_DeleteSectionWithContentErrors(t *testing.T) {
	body := `*** Begin Patch
*** Delete File: a.txt
unexpected
*** End Patch`
	if _, err := Parse(body); err == nil {
		t.Fatal("expected error for content inside a Delete File section")
	}
}
