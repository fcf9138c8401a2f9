package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/agentcore/coreagent/internal/core/command"
)

func buildRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start a new conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			logger := slog.Default()

			rt, err := buildRuntime(ctx, logger)
			if err != nil {
				return err
			}
			defer rt.shutdown(ctx)

			sess, err := rt.buildSession(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("conversation %s (rollout: %s)\n", sess.ConversationID, rolloutPath(rt.cfg, sess.ConversationID))

			var catalog *command.Catalog
			if rt.cmdHub != nil {
				catalog = rt.cmdHub.Catalog()
			}
			return runREPL(ctx, sess, catalog, rt.metrics, rt.tracer, logger)
		},
	}
}
