package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates predictable attempt ids.
//
// The ids have UUID shape so they round-trip through the journal schema:
//
//	00000000-0000-0000-0000-000000000001
//	00000000-0000-0000-0000-000000000002
//
// Thread-safety: Generate is safe for concurrent use.
type SequentialIDs struct {
	mu  sync.Mutex
	seq int
}

// NewSequentialIDs creates a generator whose first id ends in 1.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", g.seq)
}
