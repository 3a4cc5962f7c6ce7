package override

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// SuggestOption is a functional option for configuring a [Suggester].
type SuggestOption func(*Suggester)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score a phonetically
// matched entry needs to be suggested. Default: 0.70.
func WithPhoneticThreshold(threshold float64) SuggestOption {
	return func(s *Suggester) {
		s.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score an entry without
// phonetic overlap needs to be suggested. Default: 0.85.
func WithFuzzyThreshold(threshold float64) SuggestOption {
	return func(s *Suggester) {
		s.fuzzyThreshold = threshold
	}
}

// Suggestion pairs an existing override with its similarity to the queried
// token.
type Suggestion struct {
	Override Override

	// Score is the Jaro-Winkler similarity in [0, 1].
	Score float64

	// Phonetic is true when the match was found via Double Metaphone code
	// overlap rather than pure string similarity.
	Phonetic bool
}

// Suggester finds existing overrides that sound like a token the user is
// about to create an override for, catching near-duplicate entries such as
// "Kaelith" vs "Kaelyth" before they diverge.
//
// Matching runs in two stages: Double Metaphone codes are compared first
// (tolerant of spelling differences that sound alike), then candidates are
// ranked by Jaro-Winkler similarity. Entries without phonetic overlap are
// still suggested when their string similarity alone clears the stricter
// fuzzy threshold.
//
// A Suggester is read-only after construction and safe for concurrent use.
type Suggester struct {
	registry          *Registry
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewSuggester returns a [Suggester] reading candidates from r.
func NewSuggester(r *Registry, opts ...SuggestOption) *Suggester {
	s := &Suggester{
		registry:          r,
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Suggest returns up to limit overrides similar to token, best match
// first. An empty token or an empty registry yields no suggestions; a
// limit < 1 means no limit.
func (s *Suggester) Suggest(token string, limit int) []Suggestion {
	query := Canonicalize(token)
	if query == "" {
		return nil
	}

	queryTokens := strings.Fields(query)
	queryCodes := metaphoneCodes(queryTokens)

	var matches []Suggestion
	for _, o := range s.registry.All() {
		key := keyFor(o)
		if key == "" {
			continue
		}
		keyTokens := strings.Fields(key)

		phonetic := codesOverlap(queryCodes, metaphoneCodes(keyTokens))
		score := bestSimilarity(queryTokens, keyTokens, query, key)

		switch {
		case phonetic && score >= s.phoneticThreshold:
			matches = append(matches, Suggestion{Override: o, Score: score, Phonetic: true})
		case !phonetic && score >= s.fuzzyThreshold:
			matches = append(matches, Suggestion{Override: o, Score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Phonetic != matches[j].Phonetic {
			return matches[i].Phonetic
		}
		return keyFor(matches[i].Override) < keyFor(matches[j].Override)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// metaphoneCodes returns the union of Double Metaphone codes for the given
// tokens. Empty codes are excluded.
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		primary, secondary := matchr.DoubleMetaphone(t)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestSimilarity computes the highest Jaro-Winkler score between query and
// candidate: full strings, space-stripped strings, and the best pairwise
// token score. Multi-word tokens ("Lady Kaelith") match single-word entries
// this way.
func bestSimilarity(queryTokens, keyTokens []string, queryFull, keyFull string) float64 {
	score := matchr.JaroWinkler(queryFull, keyFull, false)

	if len(queryTokens) > 1 || len(keyTokens) > 1 {
		joinedQuery := strings.Join(queryTokens, "")
		joinedKey := strings.Join(keyTokens, "")
		if s := matchr.JaroWinkler(joinedQuery, joinedKey, false); s > score {
			score = s
		}
	}

	for _, qt := range queryTokens {
		for _, kt := range keyTokens {
			if s := matchr.JaroWinkler(qt, kt, false); s > score {
				score = s
			}
		}
	}

	return score
}
