package voicemix_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/narravoxlabs/narravox/pkg/catalog"
	"github.com/narravoxlabs/narravox/pkg/voicemix"
)

func TestRandomDeterministic(t *testing.T) {
	t.Parallel()

	voices := catalog.All()
	first := voicemix.Random(voices, catalog.GenderAny, rand.New(rand.NewPCG(42, 0)))
	second := voicemix.Random(voices, catalog.GenderAny, rand.New(rand.NewPCG(42, 0)))

	if !first.Equal(second, 0) {
		t.Fatalf("Random: same seed produced different mixes: %v vs %v", first, second)
	}
}

func TestRandomBounds(t *testing.T) {
	t.Parallel()

	voices := catalog.All()
	for seed := uint64(0); seed < 50; seed++ {
		m := voicemix.Random(voices, catalog.GenderAny, rand.New(rand.NewPCG(seed, 0)))

		if len(m) < 1 || len(m) > 4 {
			t.Fatalf("Random(seed=%d): expected 1-4 voices, got %d", seed, len(m))
		}
		if total := m.Total(); math.Abs(total-1.0) > 1e-9 {
			t.Fatalf("Random(seed=%d): expected normalized total 1.0, got %v", seed, total)
		}
		for id, w := range m {
			if w < voicemix.MinWeight || w > voicemix.MaxWeight {
				t.Fatalf("Random(seed=%d): voice %q weight %v out of bounds", seed, id, w)
			}
		}
	}
}

func TestRandomGenderFilter(t *testing.T) {
	t.Parallel()

	voices := catalog.All()
	for seed := uint64(0); seed < 20; seed++ {
		m := voicemix.Random(voices, catalog.GenderMale, rand.New(rand.NewPCG(seed, 1)))
		for id := range m {
			v, ok := catalog.ParseID(id)
			if !ok {
				t.Fatalf("Random: picked unparseable id %q", id)
			}
			if v.Gender != catalog.GenderMale {
				t.Fatalf("Random(male): picked %q with gender %q", id, v.Gender)
			}
		}
	}
}

func TestRandomNCapsAtPoolSize(t *testing.T) {
	t.Parallel()

	pool := []catalog.Voice{{ID: "ff_siwis", Gender: catalog.GenderFemale, Language: catalog.LangFrench}}
	m := voicemix.RandomN(pool, catalog.GenderFemale, 3, 4, rand.New(rand.NewPCG(7, 7)))

	if len(m) != 1 {
		t.Fatalf("RandomN: expected pool cap of 1 voice, got %d", len(m))
	}
	if _, ok := m["ff_siwis"]; !ok {
		t.Fatalf("RandomN: expected ff_siwis in mix, got %v", m)
	}
}

func TestRandomEmptyPool(t *testing.T) {
	t.Parallel()

	m := voicemix.Random(nil, catalog.GenderFemale, rand.New(rand.NewPCG(1, 1)))
	if len(m) != 0 {
		t.Fatalf("Random: expected empty mix from empty pool, got %v", m)
	}
	if m == nil {
		t.Fatal("Random: expected non-nil mix")
	}
}
