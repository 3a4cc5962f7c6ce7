package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/narravoxlabs/narravox/internal/cache"
	"github.com/narravoxlabs/narravox/internal/studio"
	"github.com/narravoxlabs/narravox/internal/workspace"
)

// session bundles everything a long-running command needs: the workspace
// lock, the snapshot store, and a studio wired to both. Commands that only
// read or write single overrides talk to the client directly instead.
type session struct {
	scope   string
	lock    *workspace.Lock
	store   *cache.Store
	studio  *studio.Studio
	updates chan studio.Snapshot
}

// openSession acquires the workspace lock, opens the snapshot store, and
// builds a studio for the current directory's book project. withUpdates
// additionally wires a snapshot channel for UI consumption.
func (c *commandContext) openSession(ctx context.Context, withUpdates bool) (*session, error) {
	cfg := c.configValue()
	if cfg == nil {
		return nil, c.cfgErr
	}

	scope, err := workspaceScope()
	if err != nil {
		return nil, err
	}

	lock, err := workspace.Acquire(c.cachePath())
	if err != nil {
		if errors.Is(err, workspace.ErrLocked) {
			return nil, fmt.Errorf("%w; close the other session or remove a stale lock", err)
		}
		return nil, err
	}

	store, err := cache.Open(ctx, c.cachePath())
	if err != nil {
		lock.Release()
		return nil, err
	}

	cli, err := c.client()
	if err != nil {
		store.Close()
		lock.Release()
		return nil, err
	}

	opts := []studio.Option{
		studio.WithLogger(slog.Default()),
		studio.WithSnapshotStore(store, scope),
		studio.WithFlushDebounce(cfg.Studio.FlushDebounce()),
	}

	var updates chan studio.Snapshot
	if withUpdates {
		updates = make(chan studio.Snapshot, 8)
		opts = append(opts, studio.WithOnChange(func(sn studio.Snapshot) {
			// Keep the freshest snapshot when the consumer lags: drop one
			// stale value and retry, never block the studio.
			select {
			case updates <- sn:
			default:
				select {
				case <-updates:
				default:
				}
				select {
				case updates <- sn:
				default:
				}
			}
		}))
	}

	return &session{
		scope:   scope,
		lock:    lock,
		store:   store,
		studio:  studio.New(cli, opts...),
		updates: updates,
	}, nil
}

func (s *session) close() {
	s.studio.Close()
	if err := s.store.Close(); err != nil {
		slog.Warn("closing snapshot store", "err", err)
	}
	if err := s.lock.Release(); err != nil {
		slog.Warn("releasing workspace lock", "err", err)
	}
}
