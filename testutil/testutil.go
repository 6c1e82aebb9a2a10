// Package testutil provides seeded random value generation for tests.
package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/graphstore/values"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Value returns a pseudo-random scalar value of a pseudo-random kind.
func (r *RNG) Value() values.Value {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.rand.Intn(5) {
	case 0:
		return values.Int(r.rand.Int63n(1 << 20))
	case 1:
		return values.Float(r.rand.Float64() * 1000)
	case 2:
		return values.String(r.randString(1 + r.rand.Intn(12)))
	case 3:
		return values.Bool(r.rand.Intn(2) == 0)
	default:
		return values.Point(r.rand.Float64()*10, r.rand.Float64()*10)
	}
}

// NumberValue returns a pseudo-random number value.
func (r *RNG) NumberValue() values.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rand.Intn(2) == 0 {
		return values.Int(r.rand.Int63n(1 << 20))
	}
	return values.Float(r.rand.Float64() * 1000)
}

// TextValue returns a pseudo-random string value.
func (r *RNG) TextValue() values.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	return values.String(r.randString(1 + r.rand.Intn(12)))
}

const letters = "abcdefghijklmnopqrstuvwxyz"

func (r *RNG) randString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[r.rand.Intn(len(letters))]
	}
	return string(b)
}
