// Package rng implements the deterministic PRNG contract shared by the
// register allocator and any obfuscation choice made during compilation.
// A single instance is created per compilation and must not be shared
// across goroutines: see spec.md §5, "not safe against reentrancy."
package rng

import "math/rand"

// RNG is a seedable, reproducible pseudo-random generator.
type RNG struct {
	r *rand.Rand
}

// New creates an RNG seeded with seed. The same seed always produces the
// same sequence of draws, which is load-bearing: builds must be
// reproducible for debugging (spec.md §4.4, §9).
func New(seed int64) *RNG {
	return &RNG{r: rand.New(rand.NewSource(seed))}
}

// NextU8 returns a uniformly random byte.
func (g *RNG) NextU8() uint8 {
	return uint8(g.r.Intn(256))
}

// NextU64 returns a uniformly random 64-bit value.
func (g *RNG) NextU64() uint64 {
	return g.r.Uint64()
}

// Uniform returns a uniformly random integer in [0, n).
func (g *RNG) Uniform(n int) int {
	if n <= 0 {
		panic("rng: Uniform requires n > 0")
	}
	return g.r.Intn(n)
}

// Shuffle permutes s in place using the Fisher-Yates shuffle driven by this
// RNG, used for vm_order and destination-register search order.
func Shuffle[T any](g *RNG, s []T) {
	g.r.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}
