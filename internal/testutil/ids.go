package testutil

import "sync"

// SequenceIDs hands out index ids 1, 2, 3, ... for tests.
//
// Unlike compiler.IndexIDGenerator, SequenceIDs can be reset, so the same
// scenario compiled twice produces identical ids and byte-identical output.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu  sync.Mutex
	seq int64
}

// NewSequenceIDs creates a sequence whose first id is 1.
func NewSequenceIDs() *SequenceIDs {
	return &SequenceIDs{}
}

// Next increments and returns the next id.
func (s *SequenceIDs) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Current returns the last id handed out without incrementing.
func (s *SequenceIDs) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset rewinds the sequence. After Reset, Next returns 1.
func (s *SequenceIDs) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}
