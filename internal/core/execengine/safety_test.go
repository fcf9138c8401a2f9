package execengine

import "testing"

func TestSanitizeValue_RejectsEmpty(t *testing.T) {
	if _, err := SanitizeValue(""); err != ErrEmptyValue {
		t.Errorf("err = %v, want ErrEmptyValue", err)
	}
	if _, err := SanitizeValue("   "); err != ErrEmptyValue {
		t.Errorf("err = %v, want ErrEmptyValue for whitespace-only", err)
	}
}

func TestSanitizeValue_RejectsNullByte(t *testing.T) {
	if _, err := SanitizeValue("foo\x00bar"); err != ErrNullByte {
		t.Errorf("err = %v, want ErrNullByte", err)
	}
}

func TestSanitizeValue_RejectsControlChars(t *testing.T) {
	if _, err := SanitizeValue("foo\nbar"); err != ErrControlChar {
		t.Errorf("err = %v, want ErrControlChar", err)
	}
}

func TestSanitizeValue_RejectsShellMetachars(t *testing.T) {
	for _, v := range []string{"a;b", "a|b", "a&b", "a`b", "a$b", "a<b", "a>b"} {
		if _, err := SanitizeValue(v); err != ErrShellMetachar {
			t.Errorf("SanitizeValue(%q) err = %v, want ErrShellMetachar", v, err)
		}
	}
}

func TestSanitizeValue_RejectsQuoteChars(t *testing.T) {
	if _, err := SanitizeValue(`foo"bar`); err != ErrQuoteChar {
		t.Errorf("err = %v, want ErrQuoteChar", err)
	}
}

func TestSanitizeValue_AllowsPathsStartingWithDash(t *testing.T) {
	got, err := SanitizeValue("./-weird-file")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "./-weird-file" {
		t.Errorf("got = %q", got)
	}
}

func TestSanitizeValue_RejectsOptionInjectionForBareNames(t *testing.T) {
	if _, err := SanitizeValue("-rf"); err != ErrOptionInjection {
		t.Errorf("err = %v, want ErrOptionInjection", err)
	}
}

func TestSanitizeValue_RejectsInvalidBareNameChars(t *testing.T) {
	if _, err := SanitizeValue("foo bar"); err != ErrControlChar && err != ErrInvalidBareNameChars {
		t.Errorf("err = %v", err)
	}
	if _, err := SanitizeValue("foo#bar"); err != ErrInvalidBareNameChars {
		t.Errorf("err = %v, want ErrInvalidBareNameChars", err)
	}
}

func TestSanitizeValue_AllowsBareNamesAndPaths(t *testing.T) {
	for _, v := range []string{"ls", "grep", "file.txt", "./rel/path", "/abs/path", "~/home", "a-b_c+d.e"} {
		if _, err := SanitizeValue(v); err != nil {
			t.Errorf("SanitizeValue(%q) unexpected error: %v", v, err)
		}
	}
}

func TestSanitizeValue_TrimsSurroundingWhitespace(t *testing.T) {
	got, err := SanitizeValue("  ls  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ls" {
		t.Errorf("got = %q", got)
	}
}

func TestSanitizeArgv_ReturnsFirstFailingIndex(t *testing.T) {
	idx, err := SanitizeArgv([]string{"ls", "-la", "foo;bar"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if idx != 2 {
		t.Errorf("idx = %d, want 2", idx)
	}
}

func TestSanitizeArgv_AllValidReturnsNoError(t *testing.T) {
	idx, err := SanitizeArgv([]string{"ls", "-la", "./dir"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != -1 {
		t.Errorf("idx = %d, want -1", idx)
	}
}
