package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/coder/websocket"
)

// EventType identifies a server push event.
type EventType string

const (
	// EventEntitiesUpdated signals that entity detection finished and a
	// fresh payload is available under the event's cache key.
	EventEntitiesUpdated EventType = "entities_updated"

	// EventOverridesChanged signals that override state changed outside
	// this session.
	EventOverridesChanged EventType = "overrides_changed"

	// EventPing is a keepalive frame.
	EventPing EventType = "ping"
)

// IsValid reports whether t is a known event type.
func (t EventType) IsValid() bool {
	switch t {
	case EventEntitiesUpdated, EventOverridesChanged, EventPing:
		return true
	}
	return false
}

// Event is one frame from the server's event stream.
type Event struct {
	Type       EventType `json:"type"`
	CacheKey   string    `json:"cache_key,omitempty"`
	OverrideID string    `json:"override_id,omitempty"`
}

// SubscribeEvents connects to the server's event stream and invokes handler
// for every recognized event, keepalive pings included. It blocks until ctx
// is cancelled (returning nil) or the connection drops (returning the read
// error), so callers own the reconnect policy.
func (c *Client) SubscribeEvents(ctx context.Context, handler func(Event)) error {
	wsURL, err := c.eventsURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("client: dial event stream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "subscription closed")

	c.logger.Debug("event stream connected", "url", wsURL)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("client: read event stream: %w", err)
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue // skip malformed frames
		}
		if !ev.Type.IsValid() {
			continue
		}

		handler(ev)
	}
}

// eventsURL derives the ws:// endpoint from the HTTP base URL.
func (c *Client) eventsURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("client: parse base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("client: base URL scheme %q does not support event streams", u.Scheme)
	}
	u.Path = eventsEndpoint
	return u.String(), nil
}
