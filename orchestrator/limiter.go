package orchestrator

import (
	"fmt"
	"sync"
)

// IterationLimiter bounds the number of tool-use cycles a run may perform.
// It prevents an unbounded loop when a model and a faulty tool keep
// re-requesting each other. The final gateway call that ends a turn does
// not count against the limit.
type IterationLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewIterationLimiter creates a limiter allowing max cycles.
// If max == 0, the loop is unbounded.
func NewIterationLimiter(max int) *IterationLimiter {
	return &IterationLimiter{max: max}
}

// Increment counts one cycle and returns an error once the limit is exceeded.
func (il *IterationLimiter) Increment() error {
	il.mu.Lock()
	defer il.mu.Unlock()

	il.count++
	if il.max > 0 && il.count > il.max {
		return fmt.Errorf("exceeded max iterations: %d", il.max)
	}

	return nil
}

// Count returns the number of cycles counted so far.
func (il *IterationLimiter) Count() int {
	il.mu.Lock()
	defer il.mu.Unlock()

	return il.count
}

// Remaining returns how many cycles are left before hitting the limit,
// or -1 when unbounded.
func (il *IterationLimiter) Remaining() int {
	il.mu.Lock()
	defer il.mu.Unlock()

	if il.max == 0 {
		return -1
	}

	return il.max - il.count
}
