package command

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Catalog holds the merged, currently-discovered set of command
// definitions and resolves invocations (including aliases) to a
// rendered prompt, adapted from the teacher's commands.Registry but
// templated rather than handler-dispatched: a command expands to turn
// input text instead of running Go code directly.
type Catalog struct {
	mu      sync.RWMutex
	defs    map[string]*Definition
	aliases map[string]string
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		defs:    make(map[string]*Definition),
		aliases: make(map[string]string),
	}
}

// Replace swaps in a freshly discovered definition set, rebuilding the
// alias index. Called after each discovery/hot-reload pass.
func (c *Catalog) Replace(defs map[string]*Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.defs = make(map[string]*Definition, len(defs))
	c.aliases = make(map[string]string)
	for name, def := range defs {
		c.defs[name] = def
		for _, alias := range def.Aliases {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias == "" || alias == name {
				continue
			}
			if _, taken := c.defs[alias]; taken {
				continue
			}
			c.aliases[alias] = name
		}
	}
}

// Get resolves a name or alias to its Definition.
func (c *Catalog) Get(name string) (*Definition, bool) {
	name = strings.ToLower(strings.TrimSpace(name))

	c.mu.RLock()
	defer c.mu.RUnlock()

	if def, ok := c.defs[name]; ok {
		return def, true
	}
	if real, ok := c.aliases[name]; ok {
		def, ok := c.defs[real]
		return def, ok
	}
	return nil, false
}

// List returns every discovered definition, sorted by name.
func (c *Catalog) List() []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Definition, 0, len(c.defs))
	for _, def := range c.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListVisible returns non-hidden, non-disabled definitions.
func (c *Catalog) ListVisible() []*Definition {
	all := c.List()
	visible := make([]*Definition, 0, len(all))
	for _, def := range all {
		if !def.Disabled && def.Visibility != VisibilityHidden {
			visible = append(visible, def)
		}
	}
	return visible
}

// Invoke resolves name and renders its template against argText (split
// on whitespace), returning the prompt text to submit as a user turn.
func (c *Catalog) Invoke(name, argText string) (string, error) {
	def, ok := c.Get(name)
	if !ok {
		return "", fmt.Errorf("command: %q not found", name)
	}
	if def.Disabled {
		return "", fmt.Errorf("command: %q is disabled", name)
	}
	return Render(def.Template, SplitArgs(argText))
}
