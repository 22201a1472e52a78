package testutil

import (
	"fmt"
	"sync"
)

// SequentialGuidGenerator hands out predictable guids for temporary keys.
//
// The n-th call returns "00000000-0000-7000-8000-" followed by n as 12 hex
// digits, so golden traces stay byte-identical across runs.
//
// Thread-safety: SequentialGuidGenerator is safe for concurrent use.
type SequentialGuidGenerator struct {
	mu sync.Mutex
	n  int64
}

// NewSequentialGuidGenerator creates a generator whose first guid ends in 1.
func NewSequentialGuidGenerator() *SequentialGuidGenerator {
	return &SequentialGuidGenerator{}
}

// NewGuid implements the cache's guid generator interface.
func (g *SequentialGuidGenerator) NewGuid() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("00000000-0000-7000-8000-%012x", g.n)
}
