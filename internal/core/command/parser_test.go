package command

import "testing"

func TestParseDefinitionFile(t *testing.T) {
	t.Run("with frontmatter", func(t *testing.T) {
		raw := []byte(`---
description: Deploys the current branch
aliases: [dep, ship]
tags: [ops]
version: "1.0"
---
Deploy $1 to $2, notes: $*
`)
		def, err := ParseDefinitionFile(raw, "deploy")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if def.Name != "deploy" {
			t.Errorf("name = %q, want deploy", def.Name)
		}
		if def.Description != "Deploys the current branch" {
			t.Errorf("description = %q", def.Description)
		}
		if len(def.Aliases) != 2 || def.Aliases[0] != "dep" || def.Aliases[1] != "ship" {
			t.Errorf("aliases = %v", def.Aliases)
		}
		if def.Template != "Deploy $1 to $2, notes: $*" {
			t.Errorf("template = %q", def.Template)
		}
	})

	t.Run("filename always wins over frontmatter name", func(t *testing.T) {
		raw := []byte(`---
name: wrong-name
description: something
---
body
`)
		def, err := ParseDefinitionFile(raw, "right-name")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if def.Name != "right-name" {
			t.Errorf("name = %q, want right-name", def.Name)
		}
	})

	t.Run("no frontmatter treats whole file as template", func(t *testing.T) {
		raw := []byte("just a plain template $1")
		def, err := ParseDefinitionFile(raw, "plain")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if def.Template != "just a plain template $1" {
			t.Errorf("template = %q", def.Template)
		}
	})

	t.Run("unterminated frontmatter errors", func(t *testing.T) {
		raw := []byte("---\ndescription: oops\nno closing delimiter\n")
		_, err := ParseDefinitionFile(raw, "broken")
		if err == nil {
			t.Fatal("expected an error for unterminated frontmatter")
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("rejects empty template", func(t *testing.T) {
		def := &Definition{Name: "ok", Template: ""}
		if err := Validate(def); err == nil {
			t.Error("expected error for empty template")
		}
	})

	t.Run("rejects invalid name", func(t *testing.T) {
		def := &Definition{Name: "Not Valid!", Template: "x"}
		if err := Validate(def); err == nil {
			t.Error("expected error for invalid name")
		}
	})

	t.Run("accepts well-formed definition", func(t *testing.T) {
		def := &Definition{Name: "deploy-prod", Template: "go"}
		if err := Validate(def); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
