package voicemix

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parse decodes a formula string into a Mix. Parsing is defensive and never
// fails: malformed terms degrade to a best-effort mix instead of an error.
//
//   - Terms are separated by '+', id and weight inside a term by '*'.
//   - A term without '*' gets weight 1.
//   - Non-numeric and non-positive weights default to 1.
//   - Every weight is clamped to [MinWeight, MaxWeight].
//   - Duplicate ids: the last occurrence wins.
//   - Terms with an empty voice id are discarded.
//
// The empty string decodes to an empty, non-nil Mix.
func Parse(formula string) Mix {
	m := New()
	for _, term := range strings.Split(formula, "+") {
		parts := strings.Split(term, "*")
		id := strings.TrimSpace(parts[0])
		if id == "" {
			continue
		}
		weight := 1.0
		if len(parts) > 1 {
			weight = parseWeight(parts[1])
		}
		m[id] = Clamp(weight)
	}
	return m
}

// parseWeight interprets a raw weight token, defaulting to 1 for anything
// that is not a positive finite number.
func parseWeight(raw string) float64 {
	w, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(w) || w <= 0 {
		return 1.0
	}
	return w
}

// Normalize returns a copy of m whose weights sum to 1. A mix with weight
// sum 0 (only possible when empty) is returned unchanged. Normalized
// weights may fall below MinWeight; normalization is a derived view, not a
// resting state.
func Normalize(m Mix) Mix {
	out := m.Clone()
	total := out.Total()
	if total == 0 {
		return out
	}
	for id, w := range out {
		out[id] = w / total
	}
	return out
}

// Format encodes m canonically: weights normalized to sum 1, printed with
// exactly two decimals, terms sorted by voice id and joined with '+'. An
// empty mix encodes to "".
//
// When the raw weight sum is below [FloorTotal] the weights are first
// rescaled by FloorTotal/total and re-clamped. This deliberately changes
// the meaning of very low sums (a {0.1, 0.1} mix becomes 50/50) so that no
// serialized term rounds to a near-zero share.
func Format(m Mix) string {
	if len(m) == 0 {
		return ""
	}

	adjusted := m.Clone()
	if total := adjusted.Total(); total > 0 && total < FloorTotal {
		scale := FloorTotal / total
		for id, w := range adjusted {
			adjusted[id] = Clamp(w * scale)
		}
	}
	adjusted = Normalize(adjusted)

	terms := make([]string, 0, len(adjusted))
	for _, id := range adjusted.Voices() {
		terms = append(terms, fmt.Sprintf("%s*%.2f", id, adjusted[id]))
	}
	return strings.Join(terms, "+")
}
