package subagent

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefinitionFilename is the file a sub-agent directory must contain.
const DefinitionFilename = "AGENT.md"

// FrontmatterDelimiter marks the start and end of the YAML header.
const FrontmatterDelimiter = "---"

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// ParseDefinitionFile parses raw into a Definition. dirName is the
// containing directory's basename; per spec.md §4.6 it wins over any
// "name" field the frontmatter declares, so two directories can never
// collide on name.
func ParseDefinitionFile(raw []byte, dirName string) (*Definition, error) {
	front, body, err := splitFrontmatter(string(raw))
	if err != nil {
		return nil, err
	}
	var def Definition
	if err := yaml.Unmarshal([]byte(front), &def); err != nil {
		return nil, fmt.Errorf("subagent: invalid frontmatter: %w", err)
	}
	def.Name = dirName
	def.Instructions = strings.TrimSpace(body)
	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// splitFrontmatter separates the leading "---\n...\n---\n" YAML block from
// the markdown body that follows it.
func splitFrontmatter(content string) (frontmatter, body string, err error) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return "", "", fmt.Errorf("subagent: empty definition file")
	}
	if strings.TrimSpace(scanner.Text()) != FrontmatterDelimiter {
		return "", "", fmt.Errorf("subagent: definition file must start with %q", FrontmatterDelimiter)
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
		fm.WriteByte('\n')
	}
	if !closed {
		return "", "", fmt.Errorf("subagent: unterminated frontmatter block")
	}

	var rest strings.Builder
	for scanner.Scan() {
		rest.WriteString(scanner.Text())
		rest.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("subagent: reading definition file: %w", err)
	}
	return fm.String(), rest.String(), nil
}

// Validate checks the structural requirements of a Definition.
func Validate(def *Definition) error {
	if !namePattern.MatchString(def.Name) {
		return fmt.Errorf("subagent: invalid name %q: must be lowercase alphanumeric with hyphens", def.Name)
	}
	if strings.TrimSpace(def.Description) == "" {
		return fmt.Errorf("subagent %q: description is required", def.Name)
	}
	if strings.TrimSpace(def.Instructions) == "" {
		return fmt.Errorf("subagent %q: body (instructions) is required", def.Name)
	}
	return nil
}
