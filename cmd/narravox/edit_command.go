package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/narravoxlabs/narravox/internal/tui"
)

func newEditCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open the interactive override editor",
		Long: `Opens a full-screen editing session for the current directory's book
project. Edits are staged as you type and flushed to the server in the
background; quitting waits for outstanding saves.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !stdoutIsTerminal() {
				return errors.New("edit requires an interactive terminal")
			}
			cfg := cc.configValue()

			// The TUI owns the terminal; logs go to a session file instead
			// of stderr.
			logPath := filepath.Join(filepath.Dir(cc.cachePath()), "edit.log")
			if logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
				defer logFile.Close()
				slog.SetDefault(slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: cc.levelVar()})))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Metrics.Enabled {
				flush, err := initTelemetry(ctx)
				if err != nil {
					return err
				}
				defer flush()
			}

			sess, err := cc.openSession(ctx, true)
			if err != nil {
				return err
			}
			defer sess.close()

			if err := sess.studio.Hydrate(ctx); err != nil {
				slog.Warn("initial refresh failed; starting with an empty registry", "err", err)
			}

			if w := startConfigWatcher(cc); w != nil {
				defer w.Stop()
			}

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			g, gctx := errgroup.WithContext(runCtx)
			g.Go(func() error {
				return sess.studio.RunFeed(gctx)
			})
			if cfg.Metrics.Enabled {
				g.Go(func() error {
					return runMetricsServer(gctx, cfg.Metrics.Listen, sessionChecks(cfg, sess))
				})
			}
			g.Go(func() error {
				defer cancel()
				return tui.Run(gctx, tui.Options{
					Studio:        sess.studio,
					Updates:       sess.updates,
					Preview:       previewDefaults(cfg),
					SettleTimeout: cfg.Studio.SettleTimeout(),
					Logger:        slog.Default(),
				})
			})

			err = g.Wait()
			if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
				// Clean exit, or an external interrupt killed the program.
				return nil
			}
			return err
		},
	}
}
