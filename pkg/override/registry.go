package override

import (
	"sort"
	"sync"
)

// Registry holds the authoritative override state for one narration
// session. It is populated exclusively through [Registry.Replace] with
// server payloads; the client never mutates individual entries, which keeps
// local state exactly equal to server state after every write.
//
// The zero value is ready to use and empty.
type Registry struct {
	mu         sync.RWMutex
	manual     []Override
	history    []Override
	heteronyms []Heteronym
	index      map[string]Override
	cacheKey   string
	summary    Summary
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]Override)}
}

// Replace swaps the entire registry contents for the collections in p and
// returns what changed. A nil payload empties the registry.
//
// The lookup index is rebuilt from scratch: history entries first, manual
// entries second, so a manual override always shadows a history override
// with the same canonical key.
func (r *Registry) Replace(p *Payload) Diff {
	var (
		manual     []Override
		history    []Override
		heteronyms []Heteronym
		cacheKey   string
		summary    Summary
	)
	if p != nil {
		manual = append(manual, p.ManualOverrides...)
		history = append(history, p.PronunciationOverrides...)
		heteronyms = append(heteronyms, p.HeteronymOverrides...)
		cacheKey = p.CacheKey
		summary = p.Summary
	}

	index := make(map[string]Override, len(manual)+len(history))
	for _, o := range history {
		index[keyFor(o)] = o
	}
	for _, o := range manual {
		index[keyFor(o)] = o
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	diff := diffIndex(r.index, index)

	r.manual = manual
	r.history = history
	r.heteronyms = heteronyms
	r.index = index
	r.cacheKey = cacheKey
	r.summary = summary

	return diff
}

// Lookup resolves the override governing token, if any. The token is
// canonicalized before the index lookup, so casing and whitespace
// differences do not matter.
func (r *Registry) Lookup(token string) (Override, bool) {
	key := Canonicalize(token)

	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.index[key]
	return o, ok
}

// ByID resolves an override by its stable id. Manual entries win when a
// manual and a history entry share an id.
func (r *Registry) ByID(id string) (Override, bool) {
	if id == "" {
		return Override{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, o := range r.manual {
		if o.ID == id {
			return o, true
		}
	}
	for _, o := range r.history {
		if o.ID == id {
			return o, true
		}
	}
	return Override{}, false
}

// CacheKey returns the server cache key from the last replace.
func (r *Registry) CacheKey() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cacheKey
}

// Summary returns the detection summary from the last replace.
func (r *Registry) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.summary
}

// Manual returns a copy of the manual override collection.
func (r *Registry) Manual() []Override {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Override(nil), r.manual...)
}

// History returns a copy of the history override collection.
func (r *Registry) History() []Override {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Override(nil), r.history...)
}

// Heteronyms returns a copy of the resolved heteronym collection.
func (r *Registry) Heteronyms() []Heteronym {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Heteronym(nil), r.heteronyms...)
}

// All returns the merged view (manual shadowing history), sorted by
// canonical key for deterministic output.
func (r *Registry) All() []Override {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.index))
	for k := range r.index {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Override, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.index[k])
	}
	return out
}

// Len returns the number of distinct canonical keys in the merged view.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.index)
}

// keyFor derives the index key for an override, preferring the
// server-provided normalized form and falling back to the raw token. The
// result is canonicalized client-side as well, so a server that sends
// unnormalized keys cannot split one subject across two entries.
func keyFor(o Override) string {
	key := o.Normalized
	if key == "" {
		key = o.Token
	}
	return Canonicalize(key)
}
