package testutil

import "sync"

// DeterministicClock is the cache.Sequencer used by tests and the scenario
// harness. Stamps start right after a fixed origin, so two runs of the same
// scenario publish events with identical sequence numbers.
type DeterministicClock struct {
	mu     sync.Mutex
	origin int64
	seq    int64
}

// NewDeterministicClock returns a clock whose first stamp is 1.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(0)
}

// NewDeterministicClockAt returns a clock whose first stamp is origin+1,
// the test counterpart of cache.NewClockAt.
func NewDeterministicClockAt(origin int64) *DeterministicClock {
	return &DeterministicClock{origin: origin, seq: origin}
}

// Next stamps one event.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last stamp handed out, or the origin before the first.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Issued returns how many stamps were handed out since the origin.
func (c *DeterministicClock) Issued() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq - c.origin
}

// Reset rewinds the clock to its origin.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = c.origin
}
