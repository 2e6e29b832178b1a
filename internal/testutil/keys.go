package testutil

import (
	"fmt"
	"sync"
)

// SequenceKeyGenerator generates predictable graph keys for tests.
//
// Keys are prefix-1, prefix-2, ... so golden output and assertions do not
// depend on UUIDv7 timestamps.
//
// Thread-safety: SequenceKeyGenerator is safe for concurrent use via internal mutex.
type SequenceKeyGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceKeyGenerator creates a generator. An empty prefix becomes "key".
func NewSequenceKeyGenerator(prefix string) *SequenceKeyGenerator {
	if prefix == "" {
		prefix = "key"
	}
	return &SequenceKeyGenerator{prefix: prefix}
}

// Generate returns the next key in the sequence.
//
// Implements store.KeyGenerator.
func (g *SequenceKeyGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
