package planner

import (
	"math/rand"
	"sync"
)

// Rand supplies the planner's schedule jitter and simulated wait times.
// The contract is only "a value within [min,max]"; tests inject a fixed
// implementation to make candidate generation deterministic.
type Rand interface {
	// IntBetween returns a value in the inclusive range [min, max].
	IntBetween(min, max int) int
}

// seededRand is the production Rand backed by math/rand with an explicit
// seed. rand.Rand is not safe for concurrent use, so calls are serialized;
// contention is negligible next to the external routing calls.
type seededRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand creates a seedable Rand.
func NewRand(seed int64) Rand {
	return &seededRand{r: rand.New(rand.NewSource(seed))}
}

func (s *seededRand) IntBetween(min, max int) int {
	if max <= min {
		return min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + s.r.Intn(max-min+1)
}

// fixedRand always returns the same value, clamped into range. Used by tests.
type fixedRand int

func (f fixedRand) IntBetween(min, max int) int {
	v := int(f)
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
