package room

import "math/rand"

// Rand is the randomness the simulation draws from. *math/rand.Rand
// satisfies it; tests substitute fixed sequences.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

func NewRand(seed int64) Rand {
	return rand.New(rand.NewSource(seed))
}
