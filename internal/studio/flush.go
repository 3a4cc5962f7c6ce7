package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrFlusherClosed is reported by tickets requested after [Flusher.Close].
var ErrFlusherClosed = errors.New("studio: flusher closed")

// SaveFunc persists the current draft of one override id. Implementations
// must read the draft at call time, not at enqueue time, so a batch always
// writes the freshest edit.
type SaveFunc func(ctx context.Context, id string) error

// BatchResult summarizes one settled flush batch.
type BatchResult struct {
	// Err is the joined per-id save errors, nil when every save succeeded.
	Err error

	// FailedIDs lists the ids whose saves failed, sorted.
	FailedIDs []string

	// Size is the number of ids the batch targeted.
	Size int

	// Took is the wall time the batch spent in the network layer.
	Took time.Duration
}

// Ticket tracks one flush batch through settlement. All requests that
// coalesce into the same batch share a single ticket.
type Ticket struct {
	batchID string
	done    chan struct{}

	mu     sync.Mutex
	err    error
	failed []string
}

func newTicket() *Ticket {
	return &Ticket{
		batchID: uuid.NewString(),
		done:    make(chan struct{}),
	}
}

// Done returns a channel closed when the batch settles.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the batch settles or ctx is cancelled. It returns the
// batch outcome, or ctx.Err() when the context fires first. A Wait error
// never means the batch was abandoned; it still settles in the background.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the settled batch outcome. It is nil before settlement and on
// full success.
func (t *Ticket) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// FailedIDs returns the ids whose saves failed, nil when all succeeded or
// the batch has not settled yet.
func (t *Ticket) FailedIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.failed)
}

func (t *Ticket) complete(err error, failed []string) {
	t.mu.Lock()
	t.err = err
	t.failed = failed
	t.mu.Unlock()
	close(t.done)
}

// FlusherOption configures a [Flusher].
type FlusherOption func(*Flusher)

// WithFlushLogger sets the logger for batch lifecycle logging. Defaults to
// [slog.Default].
func WithFlushLogger(l *slog.Logger) FlusherOption {
	return func(f *Flusher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithBatchDone installs a callback invoked with each batch's outcome. It
// runs on the flush goroutine, after the queue slot is released and before
// the batch ticket settles, so a caller woken by [Ticket.Wait] observes the
// callback's effects.
func WithBatchDone(fn func(BatchResult)) FlusherOption {
	return func(f *Flusher) {
		f.onDone = fn
	}
}

// Flusher serializes save batches so no two are ever in the network layer
// at once. While a batch is in flight, every new request coalesces into one
// pending batch that starts strictly after the current batch settles; the
// logical queue therefore never holds more than two batches. Within a batch
// the per-id saves run concurrently.
//
// Ids whose saves fail are restored to the tracker for a later retry.
type Flusher struct {
	save    SaveFunc
	tracker *Tracker
	logger  *slog.Logger
	onDone  func(BatchResult)

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	inflight   *Ticket
	pending    *Ticket
	pendingIDs map[string]struct{}
	closed     bool
}

// NewFlusher creates a [Flusher] that persists ids via save and restores
// failed ids to tracker.
func NewFlusher(save SaveFunc, tracker *Tracker, opts ...FlusherOption) *Flusher {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Flusher{
		save:    save,
		tracker: tracker,
		logger:  slog.Default(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Request schedules a save batch for ids and returns its ticket. When a
// batch is already in flight the ids join the single pending batch and the
// returned ticket is shared with every other caller waiting on it.
func (f *Flusher) Request(ids []string) *Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		t := newTicket()
		t.complete(ErrFlusherClosed, nil)
		return t
	}

	if f.inflight == nil {
		t := newTicket()
		f.inflight = t
		targets := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			targets[id] = struct{}{}
		}
		go f.run(t, sortedKeys(targets))
		return t
	}

	if f.pending == nil {
		f.pending = newTicket()
		f.pendingIDs = make(map[string]struct{}, len(ids))
	}
	for _, id := range ids {
		f.pendingIDs[id] = struct{}{}
	}
	return f.pending
}

// Busy reports whether a batch is currently in flight.
func (f *Flusher) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inflight != nil
}

// Settle blocks until the queue drains, following any batch promoted from
// the pending slot along the way. It returns nil even when batches failed;
// outcomes are reported on their tickets. The only error is ctx.Err().
func (f *Flusher) Settle(ctx context.Context) error {
	for {
		f.mu.Lock()
		t := f.inflight
		f.mu.Unlock()
		if t == nil {
			return nil
		}
		select {
		case <-t.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close cancels in-flight saves and rejects future requests. Cancelled ids
// fail their batch and are restored to the tracker. Close is idempotent.
func (f *Flusher) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.mu.Unlock()
	f.cancel()
}

// run processes one batch, then keeps draining the pending slot until the
// queue is empty. It owns the inflight marker for its whole lifetime.
//
// Settlement order matters: the queue slot is promoted first, onDone runs
// second, and the ticket completes last. A caller woken by Wait therefore
// sees the slot and the onDone bookkeeping already updated.
func (f *Flusher) run(t *Ticket, ids []string) {
	for {
		res := f.runBatch(t, ids)

		f.mu.Lock()
		next := f.pending
		nextIDs := f.pendingIDs
		f.pending = nil
		f.pendingIDs = nil
		f.inflight = next
		f.mu.Unlock()

		if f.onDone != nil {
			f.onDone(res)
		}
		t.complete(res.Err, res.FailedIDs)

		if next == nil {
			return
		}
		t, ids = next, sortedKeys(nextIDs)
	}
}

func (f *Flusher) runBatch(t *Ticket, ids []string) BatchResult {
	start := time.Now()
	f.logger.Debug("flush batch started", "batch", t.batchID, "ids", len(ids))

	var (
		mu     sync.Mutex
		errs   []error
		failed []string
	)
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.save(f.ctx, id); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("save %s: %w", id, err))
				failed = append(failed, id)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	slices.Sort(failed)
	took := time.Since(start)

	var err error
	if len(errs) > 0 {
		err = errors.Join(errs...)
		f.tracker.Restore(failed...)
		f.logger.Warn("flush batch had failures",
			"batch", t.batchID, "ids", len(ids), "failed", len(failed), "took", took)
	} else {
		f.logger.Debug("flush batch saved", "batch", t.batchID, "ids", len(ids), "took", took)
	}

	return BatchResult{Err: err, FailedIDs: failed, Size: len(ids), Took: took}
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
