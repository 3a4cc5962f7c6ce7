package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/narravoxlabs/narravox/internal/cache"
	"github.com/narravoxlabs/narravox/internal/config"
	"github.com/narravoxlabs/narravox/internal/health"
	"github.com/narravoxlabs/narravox/internal/observe"
)

// initTelemetry stands up the OTel providers with the Prometheus bridge.
// Must run before the first studio or transport is built, because
// observe.DefaultMetrics latches the global meter provider on first use.
// The returned function flushes and shuts the providers down.
func initTelemetry(ctx context.Context) (func(), error) {
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "narravox",
		ServiceVersion: version,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}, nil
}

// runMetricsServer serves /metrics plus the health probes on listen until
// ctx is cancelled. The Prometheus exporter registered by
// observe.InitProvider feeds the default handler.
func runMetricsServer(ctx context.Context, listen string, checks []health.Check) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(checks).Register(mux)

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("metrics listener up", "addr", listen)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics listener: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics listener shutdown", "err", err)
	}
	return ctx.Err()
}

// sessionChecks builds the readiness probes for a long-running session: the
// narration server must answer HTTP and the snapshot store must answer
// queries.
func sessionChecks(cfg *config.Config, sess *session) []health.Check {
	return []health.Check{
		{Name: "server", Probe: serverProbe(cfg.Server.BaseURL)},
		{Name: "cache", Probe: cacheProbe(sess.store, sess.scope)},
	}
}

// serverProbe reports reachability, not API health: any HTTP response
// counts, only transport errors fail the probe.
func serverProbe(baseURL string) func(context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/", nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	}
}

func cacheProbe(store *cache.Store, scope string) func(context.Context) error {
	return func(ctx context.Context) error {
		_, _, err := store.LoadSnapshot(ctx, scope)
		if errors.Is(err, cache.ErrNoSnapshot) {
			return nil
		}
		return err
	}
}
