package rand

import (
	mrand "math/rand"

	"github.com/pkg/errors"
	"github.com/seehuhn/mt19937"
)

// A Generator is a Mersenne twister PRNG with the handful of draws the
// samplers need. A Generator is NOT safe for concurrent use: derive one per
// goroutine (or per particle) from a Key instead.
type Generator struct {
	src *mt19937.MT19937
	rng *mrand.Rand
}

func newGenerator(src *mt19937.MT19937) *Generator {
	return &Generator{
		src: src,
		rng: mrand.New(src),
	}
}

// NewGenerator returns a generator seeded with the given value
func NewGenerator(seed int64) (*Generator, error) {
	src := mt19937.New()
	src.Seed(seed)
	return newGenerator(src), nil
}

// NewGeneratorSlice returns a generator seeded from a key slice, which is
// the canonical MT19937-64 init_by_array scheme.
func NewGeneratorSlice(key []uint64) (*Generator, error) {
	if len(key) < 1 {
		return nil, errors.Errorf("Seed slice must have at least one entry")
	}

	src := mt19937.New()
	src.SeedFromSlice(key)
	return newGenerator(src), nil
}

// Uint64 returns the next raw 64 bit value
func (g *Generator) Uint64() uint64 {
	return g.src.Uint64()
}

// Int63 provides the same interface as Go's math/rand
func (g *Generator) Int63() int64 {
	return g.src.Int63()
}

// Int63n is a copy of the current Go code
func (g *Generator) Int63n(n int64) int64 {
	if n <= 0 {
		panic("invalid argument to Int63n")
	}

	if n&(n-1) == 0 { // n is power of two, can mask
		return g.Int63() & (n - 1)
	}

	max := int64((1 << 63) - 1 - (1<<63)%uint64(n))
	v := g.Int63()
	for v > max {
		v = g.Int63()
	}

	return v % n
}

// Intn returns a value in [0, n)
func (g *Generator) Intn(n int) int {
	if n <= 0 {
		panic("invalid argument to Intn")
	}
	return int(g.Int63n(int64(n)))
}

// Float64 uses the commented, simpler implmentation since we don't have the
// same support requirements for users. The result is in [0, 1).
func (g *Generator) Float64() float64 {
	// See the Go lang comments for Rand Float64 implementation for details
	return float64(g.Int63n(1<<53)) / (1 << 53)
}

// NormFloat64 returns a standard normal draw
func (g *Generator) NormFloat64() float64 {
	return g.rng.NormFloat64()
}

// Normal fills dst with independent standard normal draws and returns it
func (g *Generator) Normal(dst []float64) []float64 {
	for i := range dst {
		dst[i] = g.rng.NormFloat64()
	}
	return dst
}
