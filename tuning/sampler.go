package tuning

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/coupling/core/params"
)

// Sampler proposes the searched values of the next trial. history holds
// every earlier trial of the study, failed ones included.
type Sampler interface {
	Name() string
	Sample(space Space, history []TrialRecord) params.Set
}

// RandomSampler draws every entry independently of the history.
type RandomSampler struct {
	rng *rand.Rand
}

// NewRandomSampler returns a sampler seeded with seed.
func NewRandomSampler(seed uint64) *RandomSampler {
	return &RandomSampler{rng: newRand(seed)}
}

func (s *RandomSampler) Name() string { return "random" }

func (s *RandomSampler) Sample(space Space, _ []TrialRecord) params.Set {
	return space.Sample(s.rng)
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0xda942042e4dd58b5))
}
