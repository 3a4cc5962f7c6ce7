package studio

import (
	"slices"
	"sync"
)

// Tracker records which override ids carry unsaved local edits. An id enters
// the set on any field edit and leaves it when a flush targets it; ids whose
// saves fail are restored so the next flush retries them. Safe for
// concurrent use.
type Tracker struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewTracker returns an empty, ready-to-use [Tracker].
func NewTracker() *Tracker {
	return &Tracker{ids: make(map[string]struct{})}
}

// Mark records id as dirty and reports whether it was newly added. Empty
// ids are ignored.
func (t *Tracker) Mark(id string) bool {
	if id == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ids[id]; ok {
		return false
	}
	t.ids[id] = struct{}{}
	return true
}

// MarkAll records every given id as dirty.
func (t *Tracker) MarkAll(ids ...string) {
	for _, id := range ids {
		t.Mark(id)
	}
}

// Drop removes the given ids from the dirty set, e.g. when an override is
// deleted or its save is about to start. Absent ids are ignored.
func (t *Tracker) Drop(ids ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		delete(t.ids, id)
	}
}

// Restore re-inserts ids whose saves failed so a later flush retries them.
func (t *Tracker) Restore(ids ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if id == "" {
			continue
		}
		t.ids[id] = struct{}{}
	}
}

// Has reports whether id is currently dirty.
func (t *Tracker) Has(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.ids[id]
	return ok
}

// Len returns the number of dirty ids.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ids)
}

// IDs returns the dirty ids in sorted order.
func (t *Tracker) IDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sortedLocked()
}

// Take removes ids from the dirty set and returns them in sorted order,
// assembling a flush batch. With no arguments it drains the whole set;
// otherwise only the intersection of the given ids with the dirty set is
// removed, so clean ids never enter a batch. Ids marked after Take returns
// are unaffected and stay dirty.
func (t *Tracker) Take(ids ...string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(ids) == 0 {
		all := t.sortedLocked()
		clear(t.ids)
		return all
	}

	taken := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := t.ids[id]; ok {
			taken[id] = struct{}{}
			delete(t.ids, id)
		}
	}
	if len(taken) == 0 {
		return nil
	}
	out := make([]string, 0, len(taken))
	for id := range taken {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (t *Tracker) sortedLocked() []string {
	if len(t.ids) == 0 {
		return nil
	}
	ids := make([]string, 0, len(t.ids))
	for id := range t.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
