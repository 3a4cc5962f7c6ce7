// Package catalog describes the synthesizer voice inventory exposed by the
// narration server.
//
// Voice ids follow the synthesizer's naming convention: the first rune
// selects the language, the second the gender, and the remainder (after an
// underscore) is the display name. Example: "af_bella" is an American
// English female voice named Bella. The mix engine (pkg/voicemix) treats
// ids as opaque strings; only this package interprets their structure.
package catalog

import (
	"sort"
	"strings"
	"unicode"
)

// Gender classifies a voice, or acts as a filter when selecting voices.
type Gender string

const (
	// GenderFemale matches female voices.
	GenderFemale Gender = "female"

	// GenderMale matches male voices.
	GenderMale Gender = "male"

	// GenderAny matches every voice. Only meaningful as a filter; no voice
	// carries it as metadata.
	GenderAny Gender = "any"
)

// IsValid reports whether g is a recognised gender value.
func (g Gender) IsValid() bool {
	switch g {
	case GenderFemale, GenderMale, GenderAny:
		return true
	}
	return false
}

// Language identifies the language a voice speaks, using the synthesizer's
// single-letter codes. The raw value is what preview requests carry in
// their "language" field.
type Language string

const (
	LangAmericanEnglish Language = "a"
	LangBritishEnglish  Language = "b"
	LangSpanish         Language = "e"
	LangFrench          Language = "f"
	LangHindi           Language = "h"
	LangItalian         Language = "i"
	LangJapanese        Language = "j"
	LangPortuguese      Language = "p"
	LangMandarin        Language = "z"
)

// languageNames maps language codes to human-readable descriptions.
var languageNames = map[Language]string{
	LangAmericanEnglish: "English (US)",
	LangBritishEnglish:  "English (UK)",
	LangSpanish:         "Spanish",
	LangFrench:          "French",
	LangHindi:           "Hindi",
	LangItalian:         "Italian",
	LangJapanese:        "Japanese",
	LangPortuguese:      "Portuguese (BR)",
	LangMandarin:        "Mandarin Chinese",
}

// IsValid reports whether l is a recognised language code.
func (l Language) IsValid() bool {
	_, ok := languageNames[l]
	return ok
}

// DisplayName returns a human-readable description of l, or the raw code
// when l is not recognised.
func (l Language) DisplayName() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return string(l)
}

// Voice is one entry in the synthesizer inventory.
type Voice struct {
	// ID is the wire identifier, e.g. "af_bella".
	ID string

	// Name is the display name derived from the id, e.g. "Bella".
	Name string

	// Gender is female or male for inventory voices.
	Gender Gender

	// Language is the single-letter language code.
	Language Language
}

// inventory lists every voice id the narration server ships. Kept sorted
// by id within each language block.
var inventory = []string{
	// English (US)
	"af_alloy", "af_aoede", "af_bella", "af_heart", "af_jessica",
	"af_kore", "af_nicole", "af_nova", "af_river", "af_sarah", "af_sky",
	"am_adam", "am_echo", "am_eric", "am_fenrir", "am_liam",
	"am_michael", "am_onyx", "am_puck", "am_santa",
	// English (UK)
	"bf_alice", "bf_emma", "bf_isabella", "bf_lily",
	"bm_daniel", "bm_fable", "bm_george", "bm_lewis",
	// Spanish
	"ef_dora", "em_alex", "em_santa",
	// French
	"ff_siwis",
	// Hindi
	"hf_alpha", "hf_beta", "hm_omega", "hm_psi",
	// Italian
	"if_sara", "im_nicola",
	// Japanese
	"jf_alpha", "jf_gongitsune", "jf_nezumi", "jf_tebukuro", "jm_kumo",
	// Portuguese (BR)
	"pf_dora", "pm_alex", "pm_santa",
	// Mandarin
	"zf_xiaobei", "zf_xiaoni", "zf_xiaoxiao", "zf_xiaoyi",
	"zm_yunjian", "zm_yunxi", "zm_yunxia", "zm_yunyang",
}

// All returns the full voice inventory, sorted by id. The returned slice is
// a fresh copy on every call.
func All() []Voice {
	voices := make([]Voice, 0, len(inventory))
	for _, id := range inventory {
		v, ok := ParseID(id)
		if !ok {
			continue
		}
		voices = append(voices, v)
	}
	sort.Slice(voices, func(i, j int) bool { return voices[i].ID < voices[j].ID })
	return voices
}

// ParseID derives voice metadata from an id of the form "<lang><gender>_<name>".
// It reports false for ids that do not follow the convention; such ids are
// still usable in mixes, they just carry no catalog metadata.
func ParseID(id string) (Voice, bool) {
	underscore := strings.IndexByte(id, '_')
	if underscore != 2 || len(id) < 4 {
		return Voice{}, false
	}

	lang := Language(id[0:1])
	if !lang.IsValid() {
		return Voice{}, false
	}

	var gender Gender
	switch id[1] {
	case 'f':
		gender = GenderFemale
	case 'm':
		gender = GenderMale
	default:
		return Voice{}, false
	}

	return Voice{
		ID:       id,
		Name:     capitalize(id[underscore+1:]),
		Gender:   gender,
		Language: lang,
	}, true
}

// ByID looks up a single inventory voice.
func ByID(id string) (Voice, bool) {
	for _, known := range inventory {
		if known == id {
			return ParseID(id)
		}
	}
	return Voice{}, false
}

// Filter returns the subset of voices matching g. GenderAny (or the empty
// string) matches everything. The input slice is not modified.
func Filter(voices []Voice, g Gender) []Voice {
	if g == GenderAny || g == "" {
		out := make([]Voice, len(voices))
		copy(out, voices)
		return out
	}

	out := make([]Voice, 0, len(voices))
	for _, v := range voices {
		if v.Gender == g {
			out = append(out, v)
		}
	}
	return out
}

// capitalize upper-cases the first rune of s.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
