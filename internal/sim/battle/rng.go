package battle

import "math/rand"

// RNG is the single seedable generator used by one generation pass.
type RNG struct {
	seed int64
	r    *rand.Rand
}

func NewRNG(seed int64) *RNG {
	return &RNG{seed: seed, r: rand.New(rand.NewSource(seed))}
}

func (g *RNG) Seed() int64 { return g.seed }

// Generate returns a uniform value in [min, max].
func (g *RNG) Generate(min, max int) int {
	if max <= min {
		return min
	}
	return min + g.r.Intn(max-min+1)
}

// Percent succeeds with probability p/100.
func (g *RNG) Percent(p int) bool {
	return p > g.Generate(0, 99)
}
