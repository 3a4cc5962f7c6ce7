package studio

import (
	"context"
	"time"

	"github.com/narravoxlabs/narravox/pkg/client"
)

// Event feed reconnect tuning.
const (
	feedInitialBackoff = 1 * time.Second
	feedMaxBackoff     = 30 * time.Second
)

// RunFeed subscribes to the server's event stream and keeps local state
// aligned with pushes from other sessions and background detection runs. It
// reconnects with exponential backoff whenever the stream drops and blocks
// until ctx is cancelled.
func (s *Studio) RunFeed(ctx context.Context) error {
	backoff := feedInitialBackoff
	for {
		start := time.Now()
		err := s.backend.SubscribeEvents(ctx, func(ev client.Event) {
			s.handleEvent(ctx, ev)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(start) > feedMaxBackoff {
			// The stream held for a while; treat the drop as fresh.
			backoff = feedInitialBackoff
		}

		s.logger.Warn("event stream dropped; reconnecting",
			"err", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, feedMaxBackoff)
	}
}

// handleEvent reacts to one push event. Refresh failures are logged and the
// last-known state stays in place; the next event retries naturally.
func (s *Studio) handleEvent(ctx context.Context, ev client.Event) {
	s.metrics.RecordEvent(ctx, string(ev.Type))

	switch ev.Type {
	case client.EventPing:
		return
	case client.EventEntitiesUpdated:
		if ev.CacheKey != "" && ev.CacheKey == s.registry.CacheKey() {
			return // already current
		}
		_ = s.RefreshEntities(ctx, false)
	case client.EventOverridesChanged:
		_ = s.RefreshEntities(ctx, false)
	}
}
