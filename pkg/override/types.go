// Package override models pronunciation and voice corrections for entities
// the narration server detects in book text.
//
// An override binds a detected token (a name, place, or other entity) to how
// it should be narrated: a phonetic pronunciation, a voice or voice-mix
// formula, or both. Overrides come from two server-side collections: manual
// entries the user typed in, and history entries inferred from earlier
// pronunciation disambiguation. The [Registry] merges both into one lookup
// table keyed by canonicalized token, with manual entries shadowing history
// entries on key collisions.
//
// All registry operations are safe for concurrent use.
package override

import (
	"errors"
	"fmt"
	"strings"

	"github.com/narravoxlabs/narravox/pkg/voicemix"
)

// ErrNotFound is returned when a lookup key resolves to no override.
var ErrNotFound = errors.New("override not found")

// Source records where an override came from.
type Source string

const (
	// SourceManual marks overrides the user entered explicitly.
	SourceManual Source = "manual"

	// SourceHistory marks overrides inferred from earlier pronunciation
	// disambiguation.
	SourceHistory Source = "history"
)

// IsValid reports whether s is a recognised source.
func (s Source) IsValid() bool {
	switch s {
	case SourceManual, SourceHistory:
		return true
	}
	return false
}

// Override is one pronunciation/voice correction.
type Override struct {
	// ID is the stable identifier, assigned by the server on first save.
	ID string `json:"id" yaml:"id,omitempty"`

	// Token is the entity text as it appears in the book.
	Token string `json:"token" yaml:"token"`

	// Normalized is the canonicalized lookup key derived from Token.
	Normalized string `json:"normalized" yaml:"normalized,omitempty"`

	// Context is a short text fragment around the first occurrence,
	// shown so the user can tell similar tokens apart.
	Context string `json:"context,omitempty" yaml:"context,omitempty"`

	// Pronunciation is the phonetic respelling to narrate, empty when only
	// the voice is overridden.
	Pronunciation string `json:"pronunciation,omitempty" yaml:"pronunciation,omitempty"`

	// Voice is a plain voice id or a voicemix formula string, empty when
	// only the pronunciation is overridden.
	Voice string `json:"voice,omitempty" yaml:"voice,omitempty"`

	// Notes is free-form user text, never interpreted.
	Notes string `json:"notes,omitempty" yaml:"notes,omitempty"`

	// Source is manual or history.
	Source Source `json:"source" yaml:"source,omitempty"`

	// UpdatedAt is the server-side modification timestamp, opaque to the
	// client.
	UpdatedAt string `json:"updated_at,omitempty" yaml:"-"`
}

// Heteronym is a word whose pronunciation depends on meaning (e.g. "lead",
// "bass"). The server reports resolved heteronyms alongside overrides; they
// are display-only and never merged into the registry lookup.
type Heteronym struct {
	Token         string `json:"token"`
	Normalized    string `json:"normalized"`
	Pronunciation string `json:"pronunciation"`
	Context       string `json:"context,omitempty"`
}

// Summary is the server's entity-detection headline.
type Summary struct {
	Entities    int    `json:"entities"`
	People      int    `json:"people"`
	Heteronyms  int    `json:"heteronyms"`
	Chapters    int    `json:"chapters"`
	GeneratedAt string `json:"generated_at,omitempty"`
}

// Payload is the authoritative server state returned by every write and by
// entity refreshes. Clients replace their local state with it wholesale;
// nothing is ever merged incrementally.
type Payload struct {
	Summary                Summary     `json:"summary"`
	ManualOverrides        []Override  `json:"manual_overrides"`
	PronunciationOverrides []Override  `json:"pronunciation_overrides"`
	HeteronymOverrides     []Heteronym `json:"heteronym_overrides"`
	CacheKey               string      `json:"cache_key"`

	// Override echoes the row affected by an upsert, nil otherwise.
	Override *Override `json:"override,omitempty"`
}

// Canonicalize derives the lookup key for a token: lower-cased, internal
// whitespace collapsed to single spaces, trimmed. Tokens with identical
// canonical forms are the same override subject regardless of displayed
// casing.
func Canonicalize(token string) string {
	return strings.Join(strings.Fields(strings.ToLower(token)), " ")
}

// Validate checks an [Override] before it is sent to the server.
//
// Rules:
//   - Token must canonicalize to a non-empty key.
//   - Source must be a recognised value.
//   - A Voice containing a '*' or '+' must parse to a non-empty mix.
func Validate(o Override) error {
	var errs []error

	if Canonicalize(o.Token) == "" {
		errs = append(errs, errors.New("token must not be empty"))
	}

	if !o.Source.IsValid() {
		errs = append(errs, fmt.Errorf("source %q is not a recognised override source", o.Source))
	}

	if strings.ContainsAny(o.Voice, "*+") {
		if len(voicemix.Parse(o.Voice)) == 0 {
			errs = append(errs, fmt.Errorf("voice formula %q parses to an empty mix", o.Voice))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
