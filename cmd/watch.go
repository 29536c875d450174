package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dkoval/poolctl/internal/adapters/events"
	"github.com/dkoval/poolctl/internal/application"
)

// newWatchCmd runs the background monitors (quota check and session timeout)
// and streams pool events to stderr until interrupted.
func newWatchCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the quota and session-timeout monitors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelInfo
			if strings.EqualFold(envOrDefault("POOLCTL_LOG_LEVEL", "info"), "debug") {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			sink := events.NewLogSink(logger)

			stream, cancelSub := app.bus.Subscribe(64)
			defer cancelSub()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				for event := range stream {
					sink.Publish(event)
				}
			}()

			settings := app.pool.Settings()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Watching pool (quota check every %s, session check every %s)\n",
				settings.QuotaCheckInterval, settings.SessionCheckInterval)

			application.NewMonitor(app.pool, logger).Run(ctx)
			return nil
		},
	}
}
