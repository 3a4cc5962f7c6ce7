package voicemix

import (
	"math/rand/v2"

	"github.com/narravoxlabs/narravox/pkg/catalog"
)

// Random builds a surprise mix of 1 to 4 voices drawn from the
// gender-filtered catalog. See [RandomN].
func Random(voices []catalog.Voice, g catalog.Gender, rng *rand.Rand) Mix {
	return RandomN(voices, g, 1, 4, rng)
}

// RandomN builds a mix of minVoices to maxVoices voices drawn without
// replacement from the gender-filtered catalog. Each picked voice gets a
// weight of rng.Float64()+0.2 and the result is normalized; the +0.2 floor
// keeps every normalized weight above MinWeight for up to four voices.
//
// rng may be nil, in which case a throwaway source seeded from the shared
// generator is used. Pass a seeded *rand.Rand for deterministic output.
// An empty filtered catalog yields an empty mix.
func RandomN(voices []catalog.Voice, g catalog.Gender, minVoices, maxVoices int, rng *rand.Rand) Mix {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	pool := catalog.Filter(voices, g)
	if len(pool) == 0 {
		return New()
	}

	if minVoices < 1 {
		minVoices = 1
	}
	if maxVoices < minVoices {
		maxVoices = minVoices
	}
	count := minVoices + rng.IntN(maxVoices-minVoices+1)
	if count > len(pool) {
		count = len(pool)
	}

	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	draws := make(map[string]float64, count)
	total := 0.0
	for _, v := range pool[:count] {
		w := rng.Float64() + 0.2
		draws[v.ID] = w
		total += w
	}

	m := make(Mix, count)
	for id, w := range draws {
		m[id] = Clamp(w / total)
	}
	return m
}
