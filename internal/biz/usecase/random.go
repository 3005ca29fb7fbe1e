package usecase

import (
	"math/rand/v2"
	"time"
)

// RandomSource picks uniformly distributed indices.
// Implementations must be safe for concurrent use.
type RandomSource interface {
	Intn(n int) int
}

// Clock returns the current local time
type Clock func() time.Time

type globalRandom struct{}

// Intn returns a number in [0, n) from the process-wide generator
func (globalRandom) Intn(n int) int {
	return rand.IntN(n)
}

// DefaultRandomSource returns the process-wide random source
func DefaultRandomSource() RandomSource {
	return globalRandom{}
}

// pick selects one candidate uniformly at random
func pick(random RandomSource, candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[random.Intn(len(candidates))], true
}
