// Package voicemix implements the weighted voice blend model and its
// formula string codec.
//
// A Mix maps voice ids to relative weights. Weights are kept inside
// [MinWeight, MaxWeight] at rest and are only normalized to sum 1 when a
// mix is serialized ([Format]) or explicitly normalized ([Normalize]).
// The formula string format is "id*weight+id*weight+...", e.g.
// "af_bella*0.60+af_sky*0.40"; it is the literal value preview and
// profile requests carry in their voice field.
//
// All operations are synchronous and touch nothing but the mix itself.
package voicemix

import (
	"math"
	"sort"
)

// Weight bounds and defaults for mix entries.
const (
	// MinWeight is the lowest weight a voice may carry in a mix.
	MinWeight = 0.05

	// MaxWeight is the highest weight a voice may carry in a mix.
	MaxWeight = 1.0

	// DefaultWeight is assigned when a voice is added without an explicit
	// weight.
	DefaultWeight = 0.5

	// FloorTotal is the minimum raw weight sum a formula encodes. Mixes
	// whose weights sum below it are rescaled up before serialization so
	// that no formula term rounds to a near-zero share.
	FloorTotal = 0.5
)

// Mix maps voice ids to relative weights. Use [New] (or a make call) before
// mutating; methods on a nil Mix that would insert will panic, matching map
// semantics.
type Mix map[string]float64

// New returns an empty mix ready for use.
func New() Mix {
	return make(Mix)
}

// Add inserts id with [DefaultWeight]. No-op when id is already present or
// empty.
func (m Mix) Add(id string) {
	m.AddWeighted(id, DefaultWeight)
}

// AddWeighted inserts id with w clamped to the weight bounds. No-op when id
// is already present or empty.
func (m Mix) AddWeighted(id string, w float64) {
	if id == "" {
		return
	}
	if _, ok := m[id]; ok {
		return
	}
	m[id] = Clamp(w)
}

// Remove deletes id from the mix. Absent ids are ignored.
func (m Mix) Remove(id string) {
	delete(m, id)
}

// SetWeight overwrites the weight of an existing voice, clamped to the
// weight bounds. No-op when id is absent.
func (m Mix) SetWeight(id string, w float64) {
	if _, ok := m[id]; !ok {
		return
	}
	m[id] = Clamp(w)
}

// Total returns the raw (pre-normalization) weight sum.
func (m Mix) Total() float64 {
	total := 0.0
	for _, w := range m {
		total += w
	}
	return total
}

// Voices returns the voice ids sorted lexicographically for deterministic
// output.
func (m Mix) Voices() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns an independent copy of the mix.
func (m Mix) Clone() Mix {
	out := make(Mix, len(m))
	for id, w := range m {
		out[id] = w
	}
	return out
}

// Equal reports whether m and other hold the same voices with weights equal
// within epsilon.
func (m Mix) Equal(other Mix, epsilon float64) bool {
	if len(m) != len(other) {
		return false
	}
	for id, w := range m {
		ow, ok := other[id]
		if !ok || math.Abs(w-ow) > epsilon {
			return false
		}
	}
	return true
}

// Clamp forces w into [MinWeight, MaxWeight]. NaN is mapped to MinWeight so
// a corrupted value can never poison a weight sum.
func Clamp(w float64) float64 {
	if math.IsNaN(w) {
		return MinWeight
	}
	if w < MinWeight {
		return MinWeight
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return w
}
