package testutil

import "sync"

// SequentialIDs allocates entity ids for the fake store.
//
// Ids start above a fixed base so they never collide with the small
// explicit ids fixtures use. Reset makes a scenario reproducible.
type SequentialIDs struct {
	mu   sync.Mutex
	base int64
	seq  int64
}

// DefaultIDBase is the first id minus one.
const DefaultIDBase = 5000

// NewSequentialIDs creates an allocator whose first id is base+1.
func NewSequentialIDs(base int64) *SequentialIDs {
	return &SequentialIDs{base: base}
}

// Next returns the next id.
func (s *SequentialIDs) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.base + s.seq
}

// Current returns the last allocated id, or base when none was allocated.
func (s *SequentialIDs) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base + s.seq
}

// Reset restarts allocation at base+1.
func (s *SequentialIDs) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}
