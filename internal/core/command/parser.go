package command

import (
	"bufio"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileExtension is the suffix command files are discovered by.
const FileExtension = ".md"

// FrontmatterDelimiter opens and closes a command file's YAML header.
const FrontmatterDelimiter = "---"

// NormalizeID normalizes a command name into a stable id: lowercase,
// spaces/underscores/hyphens collapse to single hyphens, every other
// non-alphanumeric character is dropped, and leading/trailing hyphens are
// trimmed. An empty result falls back to "unnamed". Idempotent:
// NormalizeID(NormalizeID(s)) == NormalizeID(s) for all s.
func NormalizeID(name string) string {
	lowered := strings.ToLower(name)
	var out strings.Builder
	out.Grow(len(lowered))
	prevHyphen := false
	for _, ch := range lowered {
		switch {
		case (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9'):
			out.WriteRune(ch)
			prevHyphen = false
		case ch == ' ' || ch == '_' || ch == '-':
			if !prevHyphen {
				out.WriteRune('-')
				prevHyphen = true
			}
		}
	}
	trimmed := strings.Trim(out.String(), "-")
	if trimmed == "" {
		return "unnamed"
	}
	return trimmed
}

type frontmatterFields struct {
	Name        string   `yaml:"name"`
	Aliases     []string `yaml:"aliases"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Version     string   `yaml:"version"`
	Disabled    bool     `yaml:"disabled"`
	Visibility  string   `yaml:"visibility"`
}

// ParseDefinitionFile parses one command file's bytes. fileName is the
// file's base name without extension (e.g. "deploy" from "deploy.md"),
// and always wins over a frontmatter "name" field, mirroring the
// sub-agent convention that the on-disk identity is authoritative. The id
// is derived from fileName through NormalizeID, so "Hello World.md" and
// "foo@bar!baz.md" load as "hello-world" and "foobarbaz" rather than
// being rejected.
func ParseDefinitionFile(raw []byte, fileName string) (*Definition, error) {
	frontmatter, body, err := splitFrontmatter(string(raw))
	if err != nil {
		return nil, err
	}

	var fm frontmatterFields
	if strings.TrimSpace(frontmatter) != "" {
		if err := yaml.Unmarshal([]byte(frontmatter), &fm); err != nil {
			return nil, fmt.Errorf("command: invalid frontmatter: %w", err)
		}
	}

	visibility := VisibilityVisible
	if fm.Visibility == string(VisibilityHidden) {
		visibility = VisibilityHidden
	}

	def := &Definition{
		Name:        NormalizeID(fileName),
		Aliases:     fm.Aliases,
		Description: fm.Description,
		Template:    strings.TrimSpace(body),
		Tags:        fm.Tags,
		Version:     fm.Version,
		Disabled:    fm.Disabled,
		Visibility:  visibility,
	}
	return def, nil
}

// splitFrontmatter separates a leading "---"-delimited YAML block from
// the remaining body. A file with no frontmatter block is treated as an
// all-body template (empty frontmatter).
func splitFrontmatter(content string) (frontmatter, body string, err error) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		return "", "", nil
	}
	first := scanner.Text()
	if strings.TrimSpace(first) != FrontmatterDelimiter {
		var b strings.Builder
		b.WriteString(first)
		for scanner.Scan() {
			b.WriteString("\n")
			b.WriteString(scanner.Text())
		}
		return "", b.String(), nil
	}

	var fm strings.Builder
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == FrontmatterDelimiter {
			closed = true
			break
		}
		fm.WriteString(line)
		fm.WriteString("\n")
	}
	if !closed {
		return "", "", fmt.Errorf("command: unterminated frontmatter block")
	}

	var rest strings.Builder
	for scanner.Scan() {
		rest.WriteString(scanner.Text())
		rest.WriteString("\n")
	}
	return fm.String(), rest.String(), nil
}

// Validate checks a parsed definition's required fields. Name's shape is
// guaranteed by NormalizeID upstream, so only the template is checked here.
func Validate(def *Definition) error {
	if def.Template == "" {
		return fmt.Errorf("command: %q has an empty template", def.Name)
	}
	return nil
}
