package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/agentcore/coreagent/internal/core/config"
	"github.com/agentcore/coreagent/internal/core/rollout"
)

func buildRolloutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollout",
		Short: "Inspect recorded rollouts",
	}
	cmd.AddCommand(buildRolloutLsCmd())
	return cmd
}

func buildRolloutLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List recorded conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			entries, err := listRollouts(cfg)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no recorded conversations")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s\tstarted %s\tcwd %s\n", e.ConversationID, e.StartedAt.Format("2006-01-02 15:04:05"), e.Cwd)
			}
			return nil
		},
	}
}

// listRollouts reads every "*.jsonl" file's header directly under
// cfg.Rollout.Dir, sorted newest-first. A file whose header can't be
// parsed is skipped with a warning rather than aborting the listing.
func listRollouts(cfg *config.Config) ([]rollout.Header, error) {
	matches, err := filepath.Glob(filepath.Join(cfg.Rollout.Dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("agentcore: list rollouts: %w", err)
	}

	var headers []rollout.Header
	for _, path := range matches {
		f, err := os.Open(path)
		if err != nil {
			slog.Default().Warn("skipping unreadable rollout", "path", path, "error", err)
			continue
		}
		reader, err := rollout.NewReader(f)
		f.Close()
		if err != nil {
			slog.Default().Warn("skipping invalid rollout", "path", path, "error", err)
			continue
		}
		headers = append(headers, reader.Header())
	}

	sort.Slice(headers, func(i, j int) bool { return headers[i].StartedAt.After(headers[j].StartedAt) })
	return headers, nil
}
