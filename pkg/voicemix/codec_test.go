package voicemix_test

import (
	"math"
	"testing"

	"github.com/narravoxlabs/narravox/pkg/voicemix"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		formula string
		want    voicemix.Mix
	}{
		{
			name:    "empty string",
			formula: "",
			want:    voicemix.Mix{},
		},
		{
			name:    "single term with weight",
			formula: "af_bella*0.60",
			want:    voicemix.Mix{"af_bella": 0.60},
		},
		{
			name:    "two terms",
			formula: "af_bella*0.60+af_sky*0.40",
			want:    voicemix.Mix{"af_bella": 0.60, "af_sky": 0.40},
		},
		{
			name:    "missing weight defaults to one",
			formula: "af_bella",
			want:    voicemix.Mix{"af_bella": 1.0},
		},
		{
			name:    "non-numeric weight defaults to one",
			formula: "af_bella*fast",
			want:    voicemix.Mix{"af_bella": 1.0},
		},
		{
			name:    "negative weight defaults to one",
			formula: "af_bella*-0.3",
			want:    voicemix.Mix{"af_bella": 1.0},
		},
		{
			name:    "zero weight defaults to one",
			formula: "af_bella*0",
			want:    voicemix.Mix{"af_bella": 1.0},
		},
		{
			name:    "nan weight defaults to one",
			formula: "af_bella*NaN",
			want:    voicemix.Mix{"af_bella": 1.0},
		},
		{
			name:    "oversized weight clamps to max",
			formula: "af_bella*3.5",
			want:    voicemix.Mix{"af_bella": 1.0},
		},
		{
			name:    "tiny weight clamps to min",
			formula: "af_bella*0.01",
			want:    voicemix.Mix{"af_bella": 0.05},
		},
		{
			name:    "duplicate id last write wins",
			formula: "a*0.5+b*0.3+a*0.9",
			want:    voicemix.Mix{"a": 0.9, "b": 0.3},
		},
		{
			name:    "empty terms discarded",
			formula: "+af_bella*0.5++",
			want:    voicemix.Mix{"af_bella": 0.5},
		},
		{
			name:    "blank voice id discarded",
			formula: "*0.5+af_sky*0.5",
			want:    voicemix.Mix{"af_sky": 0.5},
		},
		{
			name:    "surrounding whitespace trimmed",
			formula: " af_bella * 0.60 + af_sky * 0.40 ",
			want:    voicemix.Mix{"af_bella": 0.60, "af_sky": 0.40},
		},
		{
			name:    "extra star parts discarded",
			formula: "af_bella*0.5*0.9",
			want:    voicemix.Mix{"af_bella": 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := voicemix.Parse(tt.formula)
			if got == nil {
				t.Fatalf("Parse(%q): expected non-nil mix", tt.formula)
			}
			if !got.Equal(tt.want, 1e-9) {
				t.Fatalf("Parse(%q): expected %v, got %v", tt.formula, tt.want, got)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	t.Run("weights sum to one", func(t *testing.T) {
		t.Parallel()
		m := voicemix.Mix{"a": 0.6, "b": 0.3}
		got := voicemix.Normalize(m)
		if total := got.Total(); math.Abs(total-1.0) > 1e-9 {
			t.Fatalf("Normalize: expected total 1.0, got %v", total)
		}
		if math.Abs(got["a"]-2.0/3.0) > 1e-9 || math.Abs(got["b"]-1.0/3.0) > 1e-9 {
			t.Fatalf("Normalize: expected {a:0.667, b:0.333}, got %v", got)
		}
	})

	t.Run("empty mix unchanged", func(t *testing.T) {
		t.Parallel()
		got := voicemix.Normalize(voicemix.Mix{})
		if len(got) != 0 {
			t.Fatalf("Normalize: expected empty mix, got %v", got)
		}
	})

	t.Run("input not mutated", func(t *testing.T) {
		t.Parallel()
		m := voicemix.Mix{"a": 0.6, "b": 0.3}
		_ = voicemix.Normalize(m)
		if m["a"] != 0.6 || m["b"] != 0.3 {
			t.Fatalf("Normalize: mutated its input: %v", m)
		}
	})
}

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mix  voicemix.Mix
		want string
	}{
		{
			name: "empty mix",
			mix:  voicemix.Mix{},
			want: "",
		},
		{
			name: "single voice always weight one",
			mix:  voicemix.Mix{"af_bella": 0.7},
			want: "af_bella*1.00",
		},
		{
			name: "single low voice floors then normalizes to one",
			mix:  voicemix.Mix{"a": 0.1},
			want: "a*1.00",
		},
		{
			name: "symmetric low sum becomes even split",
			mix:  voicemix.Mix{"a": 0.1, "b": 0.1},
			want: "a*0.50+b*0.50",
		},
		{
			name: "asymmetric low sum keeps proportions",
			mix:  voicemix.Mix{"a": 0.1, "b": 0.3},
			want: "a*0.25+b*0.75",
		},
		{
			name: "terms sorted by voice id",
			mix:  voicemix.Mix{"zf_xiaoni": 0.5, "af_bella": 0.5},
			want: "af_bella*0.50+zf_xiaoni*0.50",
		},
		{
			name: "two thirds one third",
			mix:  voicemix.Mix{"af_bella": 0.6, "af_sky": 0.3},
			want: "af_bella*0.67+af_sky*0.33",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := voicemix.Format(tt.mix); got != tt.want {
				t.Fatalf("Format(%v): expected %q, got %q", tt.mix, tt.want, got)
			}
		})
	}
}

func TestFormatDoesNotMutate(t *testing.T) {
	t.Parallel()

	m := voicemix.Mix{"a": 0.1, "b": 0.1}
	_ = voicemix.Format(m)
	if m["a"] != 0.1 || m["b"] != 0.1 {
		t.Fatalf("Format: mutated its input: %v", m)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	mixes := []voicemix.Mix{
		{"af_bella": 0.6, "af_sky": 0.3},
		{"af_bella": 1.0},
		{"af_bella": 0.05, "am_adam": 1.0},
		{"a": 0.25, "b": 0.25, "c": 0.25, "d": 0.25},
		{"af_heart": 0.9, "am_echo": 0.42, "bf_emma": 0.18},
		{"a": 0.1, "b": 0.1},
	}

	for _, m := range mixes {
		normalized := voicemix.Normalize(m)
		back := voicemix.Parse(voicemix.Format(normalized))

		if len(back) != len(normalized) {
			t.Fatalf("round trip of %v: expected %d voices, got %d", m, len(normalized), len(back))
		}
		for id, want := range normalized {
			got, ok := back[id]
			if !ok {
				t.Fatalf("round trip of %v: lost voice %q", m, id)
			}
			if math.Abs(got-want) > 0.01 {
				t.Fatalf("round trip of %v: voice %q expected %.4f, got %.4f", m, id, want, got)
			}
		}
	}
}

func TestFormatParseEndToEnd(t *testing.T) {
	t.Parallel()

	m := voicemix.Mix{"af_bella": 0.6, "af_sky": 0.3}
	back := voicemix.Parse(voicemix.Format(m))

	if total := back.Total(); math.Abs(total-1.0) > 0.01 {
		t.Fatalf("end to end: expected parsed total 1.0 +- 0.01, got %v", total)
	}
	want := voicemix.Normalize(m)
	if !back.Equal(want, 0.01) {
		t.Fatalf("end to end: expected %v, got %v", want, back)
	}
}
