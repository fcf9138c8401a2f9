package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/agentcore/coreagent/internal/core/command"
)

func buildResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <conversation-id>",
		Short: "Resume a conversation from its recorded rollout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			logger := slog.Default()

			rt, err := buildRuntime(ctx, logger)
			if err != nil {
				return err
			}
			defer rt.shutdown(ctx)

			sess, err := rt.resumeSession(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("resumed conversation %s (%d history items)\n", sess.ConversationID, len(sess.History()))

			var catalog *command.Catalog
			if rt.cmdHub != nil {
				catalog = rt.cmdHub.Catalog()
			}
			return runREPL(ctx, sess, catalog, rt.metrics, rt.tracer, logger)
		},
	}
}
