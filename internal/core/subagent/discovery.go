package subagent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Source discovers Definitions from one location. internal/core/discovery
// drives a WatchPaths-capable Source to trigger re-discovery on change.
type Source interface {
	Type() SourceType
	Discover(ctx context.Context) ([]*Definition, error)
	WatchPaths() []string
}

// DirSource discovers Definitions from subdirectories of Root, each
// expected to contain a DefinitionFilename.
type DirSource struct {
	Root       string
	SourceType SourceType
}

// NewDirSource builds a DirSource.
func NewDirSource(root string, sourceType SourceType) *DirSource {
	return &DirSource{Root: root, SourceType: sourceType}
}

func (s *DirSource) Type() SourceType { return s.SourceType }

func (s *DirSource) WatchPaths() []string { return []string{s.Root} }

// Discover scans s.Root for subdirectories containing a definition file.
// A malformed entry is skipped (not fatal) so one bad definition cannot
// break discovery of the rest.
func (s *DirSource) Discover(ctx context.Context) ([]*Definition, error) {
	entries, err := os.ReadDir(s.Root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("subagent: reading %s: %w", s.Root, err)
	}

	var out []*Definition
	for _, e := range entries {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}
		if !e.IsDir() {
			continue
		}
		defPath := filepath.Join(s.Root, e.Name(), DefinitionFilename)
		raw, err := os.ReadFile(defPath)
		if err != nil {
			continue
		}
		def, err := ParseDefinitionFile(raw, e.Name())
		if err != nil {
			continue
		}
		def.Source = s.SourceType
		def.SourcePriority = s.SourceType.priority()
		def.Path = defPath
		out = append(out, def)
	}
	return out, nil
}

// DiscoverAll merges Definitions from sources, highest priority wins on a
// name collision (spec.md §4.6: project overrides user).
func DiscoverAll(ctx context.Context, sources ...Source) (map[string]*Definition, error) {
	merged := make(map[string]*Definition)
	for _, src := range sources {
		defs, err := src.Discover(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range defs {
			existing, ok := merged[d.Name]
			if !ok || d.SourcePriority >= existing.SourcePriority {
				merged[d.Name] = d
			}
		}
	}
	return merged, nil
}

// Names returns the sorted set of discovered sub-agent names.
func Names(defs map[string]*Definition) []string {
	names := make([]string, 0, len(defs))
	for n := range defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
