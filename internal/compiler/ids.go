package compiler

import "sync/atomic"

// IDSource hands out index ids. Ids only need to be unique; they are not
// required to be contiguous.
type IDSource interface {
	Next() int64
}

// IndexIDGenerator is the process-wide index id counter.
//
// Thread-safety: IndexIDGenerator is safe for concurrent use (atomic
// operations). Constraints of independent rules may be compiled from
// several goroutines sharing one generator.
type IndexIDGenerator struct {
	seq atomic.Int64
}

// NewIndexIDGenerator creates a generator whose first id is 1.
func NewIndexIDGenerator() *IndexIDGenerator {
	return &IndexIDGenerator{}
}

// NewIndexIDGeneratorAt creates a generator resuming after start.
// Used to keep ids unique across runs recorded in the same catalog.
func NewIndexIDGeneratorAt(start int64) *IndexIDGenerator {
	g := &IndexIDGenerator{}
	g.seq.Store(start)
	return g
}

// Next returns a fresh id.
func (g *IndexIDGenerator) Next() int64 {
	return g.seq.Add(1)
}

// Current returns the last id handed out without advancing.
func (g *IndexIDGenerator) Current() int64 {
	return g.seq.Load()
}
