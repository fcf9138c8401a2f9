// Command agentcore is a minimal terminal front-end for the agentcore
// runtime: a single-session read-eval-print loop over the session/turn
// engine, plus commands to resume a recorded rollout and list past
// conversations. It is not the full terminal UI the teacher ships for
// Nexus — just enough surface to drive the runtime end to end.
//
// Usage:
//
//	agentcore run --config agentcore.yaml
//	agentcore resume <conversation-id>
//	agentcore rollout ls
//
// Environment variables:
//
//	ANTHROPIC_API_KEY   Anthropic provider credentials (config file overrides)
//	OPENAI_API_KEY      OpenAI provider credentials
//	AWS_REGION          Bedrock region, if not set in config
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	configPath string
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentcore",
		Short: "Run and inspect agentcore sessions",
		Long: "agentcore drives the session/turn engine from a terminal: start a new\n" +
			"conversation, resume a recorded one, or list past rollouts.",
		Version:      fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config YAML (default ~/.agentcore/config.yaml)")

	rootCmd.AddCommand(
		buildRunCmd(),
		buildResumeCmd(),
		buildRolloutCmd(),
	)
	return rootCmd
}
