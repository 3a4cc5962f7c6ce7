// Package studio implements the override editing session for one workspace:
// staged field edits, dirty tracking, serialized flush batches, audio
// previews, and the event feed that keeps local state aligned with the
// narration server.
//
// A [Studio] owns the override registry and dirty tracker exclusively; there
// is no cross-session synchronization. Sessions are created once per
// workspace and closed when the surface (TUI or CLI command) exits.
package studio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/narravoxlabs/narravox/internal/observe"
	"github.com/narravoxlabs/narravox/pkg/client"
	"github.com/narravoxlabs/narravox/pkg/override"
	"github.com/narravoxlabs/narravox/pkg/voicemix"
)

// ErrPreviewSuperseded is returned by [Studio.Preview] when a newer preview
// aborted this one. It signals replacement, not failure, and must not be
// surfaced as an error state.
var ErrPreviewSuperseded = errors.New("studio: preview superseded")

// Backend is the server API surface the session depends on. Satisfied by
// [client.Client].
type Backend interface {
	UpsertOverride(ctx context.Context, req client.UpsertRequest) (*override.Payload, error)
	DeleteOverride(ctx context.Context, id string) (*override.Payload, error)
	RefreshEntities(ctx context.Context, force bool, cacheKey string) (*override.Payload, error)
	SearchOverrides(ctx context.Context, q string) ([]override.Override, error)
	PreviewSpeaker(ctx context.Context, req client.PreviewRequest) ([]byte, error)
	PreviewProfile(ctx context.Context, req client.PreviewRequest) ([]byte, error)
	SubscribeEvents(ctx context.Context, handler func(client.Event)) error
}

var _ Backend = (*client.Client)(nil)

// SnapshotStore persists the last-known server payload between sessions so
// a new session can render immediately while the first refresh runs.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, scope, cacheKey string, payload []byte) error
	LoadSnapshot(ctx context.Context, scope string) (cacheKey string, payload []byte, err error)
}

// Snapshot is the UI-facing projection of session state.
type Snapshot struct {
	// Status is the derived save state.
	Status Status

	// Dirty is the number of overrides with unsaved edits.
	Dirty int

	// Overrides is the total number of overrides in the registry.
	Overrides int

	// CacheKey identifies the server payload generation currently loaded.
	CacheKey string

	// Summary carries the server's detection counts.
	Summary override.Summary

	// LastError is the most recent flush failure, nil once a new edit or a
	// clean flush supersedes it.
	LastError error
}

// Option is a functional option for configuring a [Studio].
type Option func(*Studio)

// WithLogger sets the session logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Studio) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Studio) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSnapshotStore enables payload persistence under the given scope,
// typically the workspace path.
func WithSnapshotStore(store SnapshotStore, scope string) Option {
	return func(s *Studio) {
		s.cache = store
		s.scope = scope
	}
}

// WithFlushDebounce makes every staged edit arm a timer that flushes the
// dirty set after d of keyboard silence. Zero (the default) disables the
// timer; flushes then happen only on explicit triggers.
func WithFlushDebounce(d time.Duration) Option {
	return func(s *Studio) {
		s.debounce = d
	}
}

// WithOnChange installs a callback invoked with a fresh [Snapshot] after
// every state change. It may be called from multiple goroutines.
func WithOnChange(fn func(Snapshot)) Option {
	return func(s *Studio) {
		s.onChange = fn
	}
}

// Studio is one override editing session. All methods are safe for
// concurrent use.
type Studio struct {
	backend  Backend
	registry *override.Registry
	tracker  *Tracker
	flusher  *Flusher
	cache    SnapshotStore
	scope    string
	logger   *slog.Logger
	metrics  *observe.Metrics
	debounce time.Duration
	onChange func(Snapshot)

	// unregisterDirty removes the dirty-set gauge callback on Close.
	unregisterDirty func() error

	mu            sync.Mutex
	drafts        map[string]override.Override
	debounceTimer *time.Timer
	lastErr       error
	everSaved     bool

	finalizing atomic.Bool

	previewMu     sync.Mutex
	previewCancel context.CancelFunc
	previewSeq    uint64

	closeOnce sync.Once
}

// New creates a session backed by the given server API.
func New(backend Backend, opts ...Option) *Studio {
	s := &Studio{
		backend:  backend,
		registry: override.NewRegistry(),
		tracker:  NewTracker(),
		drafts:   make(map[string]override.Override),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	unreg, err := s.metrics.RegisterDirtyGauge(func() int64 {
		return int64(s.tracker.Len())
	})
	if err != nil {
		s.logger.Warn("register dirty gauge", "err", err)
	} else {
		s.unregisterDirty = unreg
	}
	s.flusher = NewFlusher(s.saveOverride, s.tracker,
		WithFlushLogger(s.logger),
		WithBatchDone(s.batchDone),
	)
	return s
}

// Registry exposes the authoritative override state for rendering.
func (s *Studio) Registry() *override.Registry {
	return s.registry
}

// Dirty returns the ids with unsaved edits, sorted.
func (s *Studio) Dirty() []string {
	return s.tracker.IDs()
}

// Status returns the derived save state.
func (s *Studio) Status() Status {
	return s.Snapshot().Status
}

// Snapshot returns the current UI projection.
func (s *Studio) Snapshot() Snapshot {
	s.mu.Lock()
	lastErr := s.lastErr
	everSaved := s.everSaved
	s.mu.Unlock()

	dirty := s.tracker.Len()
	return Snapshot{
		Status:    projectStatus(s.flusher.Busy(), dirty, lastErr, everSaved),
		Dirty:     dirty,
		Overrides: s.registry.Len(),
		CacheKey:  s.registry.CacheKey(),
		Summary:   s.registry.Summary(),
		LastError: lastErr,
	}
}

// ── Edit operations ────────────────────────────────────────────────────────────

// SetPronunciation stages a pronunciation edit for the override with id.
func (s *Studio) SetPronunciation(id, pronunciation string) error {
	return s.stage(id, func(o *override.Override) {
		o.Pronunciation = pronunciation
	})
}

// SetVoice stages a voice assignment. formula is parsed defensively and
// stored in canonical form; an empty formula clears the assignment.
func (s *Studio) SetVoice(id, formula string) error {
	voice := ""
	if formula != "" {
		mix := voicemix.Parse(formula)
		if len(mix) == 0 {
			return fmt.Errorf("studio: %q is not a valid voice mix", formula)
		}
		voice = voicemix.Format(mix)
	}
	return s.stage(id, func(o *override.Override) {
		o.Voice = voice
	})
}

// SetContext stages a disambiguation-context edit.
func (s *Studio) SetContext(id, context string) error {
	return s.stage(id, func(o *override.Override) {
		o.Context = context
	})
}

// SetNotes stages a notes edit.
func (s *Studio) SetNotes(id, notes string) error {
	return s.stage(id, func(o *override.Override) {
		o.Notes = notes
	})
}

// stage applies a field edit to the draft for id, creating the draft from
// registry state on first edit, and marks the id dirty.
func (s *Studio) stage(id string, apply func(*override.Override)) error {
	if id == "" {
		return errors.New("studio: override id must not be empty")
	}

	s.mu.Lock()
	d, ok := s.drafts[id]
	if !ok {
		base, found := s.registry.ByID(id)
		if !found {
			s.mu.Unlock()
			return fmt.Errorf("studio: stage edit: %w: %s", override.ErrNotFound, id)
		}
		d = base
	}
	apply(&d)
	s.drafts[id] = d
	s.lastErr = nil
	s.tracker.Mark(id)
	s.mu.Unlock()

	s.armDebounce()
	s.notify()
	return nil
}

func (s *Studio) armDebounce() {
	if s.debounce <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debounceTimer == nil {
		s.debounceTimer = time.AfterFunc(s.debounce, func() {
			s.Flush()
		})
		return
	}
	s.debounceTimer.Reset(s.debounce)
}

// ── Persistence ────────────────────────────────────────────────────────────────

// Flush schedules persistence of dirty overrides: all of them when called
// with no arguments, the given ids restricted to the dirty set otherwise.
// Target ids leave the dirty set immediately; ids whose saves fail re-enter
// it. Returns nil when no target is dirty.
func (s *Studio) Flush(ids ...string) *Ticket {
	targets := s.tracker.Take(ids...)
	if len(targets) == 0 {
		return nil
	}

	t := s.flusher.Request(targets)
	s.notify()
	return t
}

// Settle blocks until every requested flush batch has settled. Batch
// failures are reported on their tickets, not here; the only error is
// ctx.Err().
func (s *Studio) Settle(ctx context.Context) error {
	return s.flusher.Settle(ctx)
}

// saveOverride is the [SaveFunc] behind the flusher. It snapshots the draft
// at network time so the batch writes the freshest edit, and treats the
// server response as the new authoritative state.
func (s *Studio) saveOverride(ctx context.Context, id string) error {
	s.mu.Lock()
	d, ok := s.drafts[id]
	s.mu.Unlock()
	if !ok {
		// Deleted (or never staged) after being marked; nothing to persist.
		return nil
	}

	payload, err := s.backend.UpsertOverride(ctx, upsertRequest(d))
	if err != nil {
		s.metrics.RecordOverrideSave(ctx, "error")
		return err
	}
	s.metrics.RecordOverrideSave(ctx, "ok")
	s.applyPayload(ctx, payload)

	s.mu.Lock()
	if !s.tracker.Has(id) {
		// No re-edit arrived while saving; registry state is now current.
		delete(s.drafts, id)
	}
	s.mu.Unlock()
	return nil
}

func upsertRequest(d override.Override) client.UpsertRequest {
	return client.UpsertRequest{
		ID:            d.ID,
		Token:         d.Token,
		Normalized:    d.Normalized,
		Context:       d.Context,
		Pronunciation: d.Pronunciation,
		Voice:         d.Voice,
		Notes:         d.Notes,
		Source:        d.Source,
	}
}

func (s *Studio) batchDone(res BatchResult) {
	s.mu.Lock()
	s.lastErr = res.Err
	if res.Err == nil {
		s.everSaved = true
	}
	s.mu.Unlock()

	status := "ok"
	if res.Err != nil {
		status = "failed"
	}
	s.metrics.RecordFlushBatch(context.Background(), status, res.Took.Seconds())
	s.notify()
}

// applyPayload replaces local override state wholesale from a server
// response and persists it for the next session.
func (s *Studio) applyPayload(ctx context.Context, p *override.Payload) {
	diff := s.registry.Replace(p)
	if !diff.Empty() {
		s.logger.Info("override state replaced", "diff", diff.String(), "cache_key", p.CacheKey)
	}
	s.persistSnapshot(ctx, p)
	s.notify()
}

func (s *Studio) persistSnapshot(ctx context.Context, p *override.Payload) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Warn("marshal snapshot", "err", err)
		return
	}
	if err := s.cache.SaveSnapshot(ctx, s.scope, p.CacheKey, data); err != nil {
		s.logger.Warn("persist snapshot", "scope", s.scope, "err", err)
	}
}

// ── Override lifecycle ─────────────────────────────────────────────────────────

// AddOverride stages a brand-new override and immediately schedules its
// save. Until the server assigns an id the draft is keyed by the canonical
// token, so follow-up edits land on the same draft.
func (s *Studio) AddOverride(ov override.Override) (*Ticket, error) {
	if ov.Source == "" {
		ov.Source = override.SourceManual
	}
	if ov.Normalized == "" {
		ov.Normalized = override.Canonicalize(ov.Token)
	}
	if ov.Voice != "" {
		mix := voicemix.Parse(ov.Voice)
		if len(mix) == 0 {
			return nil, fmt.Errorf("studio: add override: %q is not a valid voice mix", ov.Voice)
		}
		ov.Voice = voicemix.Format(mix)
	}
	if err := override.Validate(ov); err != nil {
		return nil, fmt.Errorf("studio: add override: %w", err)
	}

	key := ov.ID
	if key == "" {
		key = ov.Normalized
	}

	s.mu.Lock()
	s.drafts[key] = ov
	s.lastErr = nil
	s.tracker.Mark(key)
	s.mu.Unlock()

	s.notify()
	return s.Flush(key), nil
}

// DeleteOverride removes an override on the server and locally. Staged
// edits and dirtiness for the id are discarded up front, so a concurrent
// flush will not resurrect it.
func (s *Studio) DeleteOverride(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("studio: delete override: id must not be empty")
	}

	s.mu.Lock()
	delete(s.drafts, id)
	s.mu.Unlock()
	s.tracker.Drop(id)

	payload, err := s.backend.DeleteOverride(ctx, id)
	if err != nil {
		return fmt.Errorf("studio: delete override %s: %w", id, err)
	}
	s.applyPayload(ctx, payload)
	return nil
}

// RefreshEntities pulls detection state from the server. With force the
// server recomputes even when the cache key is current. On failure the
// last-known state stays in place and no retry is scheduled.
func (s *Studio) RefreshEntities(ctx context.Context, force bool) error {
	payload, err := s.backend.RefreshEntities(ctx, force, s.registry.CacheKey())
	if err != nil {
		s.logger.Warn("entity refresh failed; keeping last known state", "err", err)
		return fmt.Errorf("studio: refresh entities: %w", err)
	}
	s.applyPayload(ctx, payload)
	return nil
}

// Search queries the server's override index.
func (s *Studio) Search(ctx context.Context, q string) ([]override.Override, error) {
	results, err := s.backend.SearchOverrides(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("studio: search overrides: %w", err)
	}
	return results, nil
}

// ── Preview ────────────────────────────────────────────────────────────────────

// Preview renders a short audio sample for req, choosing the profile
// endpoint when req.Profile is set and the speaker endpoint otherwise. At
// most one preview is in flight; starting a new one aborts the previous,
// which then returns [ErrPreviewSuperseded].
func (s *Studio) Preview(ctx context.Context, req client.PreviewRequest) ([]byte, error) {
	s.previewMu.Lock()
	if s.previewCancel != nil {
		s.previewCancel()
	}
	pctx, cancel := context.WithCancel(ctx)
	s.previewCancel = cancel
	s.previewSeq++
	seq := s.previewSeq
	s.previewMu.Unlock()

	defer func() {
		s.previewMu.Lock()
		if s.previewSeq == seq {
			s.previewCancel = nil
		}
		s.previewMu.Unlock()
		cancel()
	}()

	kind := "speaker"
	start := time.Now()
	var (
		audio []byte
		err   error
	)
	if req.Profile != "" {
		kind = "profile"
		audio, err = s.backend.PreviewProfile(pctx, req)
	} else {
		audio, err = s.backend.PreviewSpeaker(pctx, req)
	}

	if err != nil {
		if pctx.Err() != nil && ctx.Err() == nil {
			s.metrics.RecordPreview(ctx, kind, "superseded", time.Since(start).Seconds())
			return nil, ErrPreviewSuperseded
		}
		s.metrics.RecordPreview(ctx, kind, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("studio: preview: %w", err)
	}
	s.metrics.RecordPreview(ctx, kind, "ok", time.Since(start).Seconds())
	return audio, nil
}

// PreviewOverride auditions the override with id, reading the staged draft
// when one exists so the clip reflects unsaved edits. A dirty id is handed
// to the flush queue first without waiting on it; the save lands behind any
// in-flight batch while the preview renders. defaults supplies text,
// language, speed, and clip cap; the override's pronunciation (or token)
// replaces the text and its voice assignment selects the endpoint: the
// profile endpoint for a mix formula, the speaker endpoint otherwise.
func (s *Studio) PreviewOverride(ctx context.Context, id string, defaults client.PreviewRequest) ([]byte, error) {
	if id == "" {
		return nil, errors.New("studio: preview override: id must not be empty")
	}

	s.mu.Lock()
	ov, ok := s.drafts[id]
	s.mu.Unlock()
	if !ok {
		if ov, ok = s.registry.ByID(id); !ok {
			return nil, fmt.Errorf("studio: preview override: %w: %s", override.ErrNotFound, id)
		}
	}

	if s.tracker.Has(id) {
		s.Flush(id)
	}

	req := defaults
	if ov.Voice != "" {
		if strings.ContainsAny(ov.Voice, "*+") {
			req.Profile, req.Voice = ov.Voice, ""
		} else {
			req.Voice, req.Profile = ov.Voice, ""
		}
	}
	if p := strings.TrimSpace(ov.Pronunciation); p != "" {
		req.Text = p
	} else if ov.Token != "" {
		req.Text = ov.Token
	}

	return s.Preview(ctx, req)
}

// ── Session lifecycle ──────────────────────────────────────────────────────────

// Hydrate primes the session: the last persisted snapshot is loaded first
// when a store is configured, then detection state is refreshed from the
// server. A refresh failure is tolerated when a snapshot was restored.
func (s *Studio) Hydrate(ctx context.Context) error {
	restored := false
	if s.cache != nil {
		cacheKey, data, err := s.cache.LoadSnapshot(ctx, s.scope)
		switch {
		case err != nil:
			s.logger.Debug("no usable snapshot", "scope", s.scope, "err", err)
		case len(data) > 0:
			var p override.Payload
			if err := json.Unmarshal(data, &p); err != nil {
				s.logger.Warn("discarding corrupt snapshot", "scope", s.scope, "err", err)
				break
			}
			if p.CacheKey == "" {
				p.CacheKey = cacheKey
			}
			s.registry.Replace(&p)
			restored = true
			s.logger.Info("session restored from snapshot", "scope", s.scope, "cache_key", p.CacheKey)
			s.notify()
		}
	}

	if err := s.RefreshEntities(ctx, false); err != nil {
		if restored {
			return nil
		}
		return err
	}
	return nil
}

// Finalize flushes outstanding edits, waits for the queue to settle, and
// then runs submit exactly once. A nested Finalize issued from inside
// submit skips interception and runs its submit directly, so submission can
// never loop. Flush failures do not block the submission; they surface via
// the dirty set and status.
func (s *Studio) Finalize(ctx context.Context, submit func(context.Context) error) error {
	if submit == nil {
		return errors.New("studio: finalize: submit must not be nil")
	}
	if !s.finalizing.CompareAndSwap(false, true) {
		return submit(ctx)
	}
	defer s.finalizing.Store(false)

	if s.tracker.Len() > 0 || s.flusher.Busy() {
		if t := s.Flush(); t != nil {
			if err := t.Wait(ctx); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}
		if err := s.flusher.Settle(ctx); err != nil {
			return err
		}
	}
	return submit(ctx)
}

// Close stops the debounce timer, aborts any in-flight preview, and shuts
// down the flush queue. Ids whose saves were cancelled stay dirty.
func (s *Studio) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.debounceTimer != nil {
			s.debounceTimer.Stop()
		}
		s.mu.Unlock()

		s.previewMu.Lock()
		if s.previewCancel != nil {
			s.previewCancel()
			s.previewCancel = nil
		}
		s.previewMu.Unlock()

		s.flusher.Close()

		if s.unregisterDirty != nil {
			_ = s.unregisterDirty()
		}
	})
}

func (s *Studio) notify() {
	if s.onChange == nil {
		return
	}
	s.onChange(s.Snapshot())
}
