package command

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source discovers command definitions from one location.
type Source interface {
	Type() SourceType
	Discover(ctx context.Context) ([]*Definition, error)
	WatchPaths() []string
}

// DirSource discovers commands from flat `*.md` files directly inside
// Root (unlike sub-agents, which live one-per-subdirectory, command
// files live directly in `.codex/commands/`).
type DirSource struct {
	Root       string
	SourceType SourceType
	logger     *slog.Logger
}

// NewDirSource creates a DirSource rooted at path.
func NewDirSource(path string, sourceType SourceType) *DirSource {
	return &DirSource{
		Root:       path,
		SourceType: sourceType,
		logger:     slog.Default().With("component", "command.discovery", "source", sourceType),
	}
}

func (s *DirSource) Type() SourceType { return s.SourceType }

func (s *DirSource) WatchPaths() []string { return []string{s.Root} }

func (s *DirSource) Discover(ctx context.Context) ([]*Definition, error) {
	entries, err := os.ReadDir(s.Root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var defs []*Definition
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return defs, ctx.Err()
		default:
		}

		if entry.IsDir() || !strings.HasSuffix(entry.Name(), FileExtension) {
			continue
		}
		fileName := strings.TrimSuffix(entry.Name(), FileExtension)
		path := filepath.Join(s.Root, entry.Name())

		raw, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("failed to read command file", "path", path, "error", err)
			continue
		}
		def, err := ParseDefinitionFile(raw, fileName)
		if err != nil {
			s.logger.Warn("failed to parse command file", "path", path, "error", err)
			continue
		}
		if err := Validate(def); err != nil {
			s.logger.Warn("invalid command definition", "path", path, "error", err)
			continue
		}
		def.Source = s.SourceType
		def.SourcePriority = s.SourceType.priority()
		def.Path = path
		defs = append(defs, def)
	}
	return defs, nil
}

// DiscoverAll runs every source and merges results by name, higher
// SourcePriority winning ties, mirroring subagent.DiscoverAll.
func DiscoverAll(ctx context.Context, sources ...Source) (map[string]*Definition, error) {
	merged := make(map[string]*Definition)
	for _, src := range sources {
		defs, err := src.Discover(ctx)
		if err != nil {
			return nil, err
		}
		for _, def := range defs {
			existing, ok := merged[def.Name]
			if !ok || def.SourcePriority >= existing.SourcePriority {
				merged[def.Name] = def
			}
		}
	}
	return merged, nil
}

// Names returns the sorted names of a discovered definition map.
func Names(defs map[string]*Definition) []string {
	out := make([]string, 0, len(defs))
	for name := range defs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
