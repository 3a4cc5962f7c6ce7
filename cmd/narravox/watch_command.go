package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWatchCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the server event feed and print override state changes",
		Long: `Subscribes to the narration server's event stream and prints a line for
every override state replacement (added, removed and changed tokens), keeping
the local snapshot cache warm for the next editing session. Runs until
interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := cc.configValue()

			// This command is a log follower; state changes go to stdout.
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cc.levelVar()})))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Metrics.Enabled {
				flush, err := initTelemetry(ctx)
				if err != nil {
					return err
				}
				defer flush()
			}

			sess, err := cc.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer sess.close()

			if err := sess.studio.Hydrate(ctx); err != nil {
				return err
			}
			snap := sess.studio.Snapshot()
			fmt.Printf("watching %s against %s (overrides=%d, cache=%s)\n",
				sess.scope, cfg.Server.BaseURL, snap.Overrides, snap.CacheKey)

			if w := startConfigWatcher(cc); w != nil {
				defer w.Stop()
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return sess.studio.RunFeed(gctx)
			})
			if cfg.Metrics.Enabled {
				g.Go(func() error {
					return runMetricsServer(gctx, cfg.Metrics.Listen, sessionChecks(cfg, sess))
				})
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
