package command

import "testing"

func TestCatalog_ReplaceAndGet(t *testing.T) {
	c := NewCatalog()
	c.Replace(map[string]*Definition{
		"deploy": {Name: "deploy", Template: "go $1", Aliases: []string{"ship"}},
	})

	t.Run("direct name", func(t *testing.T) {
		def, ok := c.Get("deploy")
		if !ok || def.Name != "deploy" {
			t.Fatalf("Get(deploy) = %v, %v", def, ok)
		}
	})

	t.Run("alias", func(t *testing.T) {
		def, ok := c.Get("ship")
		if !ok || def.Name != "deploy" {
			t.Fatalf("Get(ship) = %v, %v", def, ok)
		}
	})

	t.Run("case insensitive", func(t *testing.T) {
		def, ok := c.Get("DEPLOY")
		if !ok || def.Name != "deploy" {
			t.Fatalf("Get(DEPLOY) = %v, %v", def, ok)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, ok := c.Get("nope"); ok {
			t.Error("expected Get(nope) to fail")
		}
	})
}

func TestCatalog_AliasConflictWithRealNameDropped(t *testing.T) {
	c := NewCatalog()
	c.Replace(map[string]*Definition{
		"deploy": {Name: "deploy", Template: "a"},
		"ship":   {Name: "ship", Template: "b", Aliases: []string{"deploy"}},
	})

	def, ok := c.Get("deploy")
	if !ok || def.Name != "deploy" {
		t.Fatalf("expected deploy's own definition to win, got %v", def)
	}
}

func TestCatalog_Invoke(t *testing.T) {
	c := NewCatalog()
	c.Replace(map[string]*Definition{
		"greet": {Name: "greet", Template: "hello $1"},
	})

	t.Run("renders template", func(t *testing.T) {
		out, err := c.Invoke("greet", "world")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "hello world" {
			t.Errorf("got %q", out)
		}
	})

	t.Run("unknown command errors", func(t *testing.T) {
		if _, err := c.Invoke("missing", ""); err == nil {
			t.Error("expected error for unknown command")
		}
	})

	t.Run("disabled command errors", func(t *testing.T) {
		c.Replace(map[string]*Definition{
			"off": {Name: "off", Template: "x", Disabled: true},
		})
		if _, err := c.Invoke("off", ""); err == nil {
			t.Error("expected error for disabled command")
		}
	})
}

func TestCatalog_ListVisibleSkipsHiddenAndDisabled(t *testing.T) {
	c := NewCatalog()
	c.Replace(map[string]*Definition{
		"a": {Name: "a", Template: "x", Visibility: VisibilityVisible},
		"b": {Name: "b", Template: "x", Visibility: VisibilityHidden},
		"c": {Name: "c", Template: "x", Disabled: true},
	})

	visible := c.ListVisible()
	if len(visible) != 1 || visible[0].Name != "a" {
		t.Errorf("ListVisible() = %v, want only [a]", visible)
	}
}
