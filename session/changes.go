package session

import (
	"slices"
	"sync"

	"github.com/dm-vev/asyncedit/cube"
	"github.com/dm-vev/asyncedit/grid"
)

// Change is a single applied write.
type Change struct {
	Pos    cube.Pos
	Before grid.Cell
	After  grid.Cell
}

// ChangeSet is the ordered log of writes applied by an edit session. It is
// written by workers while the owning session reads it, so it is safe for
// concurrent use.
type ChangeSet struct {
	mu      sync.Mutex
	changes []Change
}

// Record appends a change to the log.
func (c *ChangeSet) Record(ch Change) {
	c.mu.Lock()
	c.changes = append(c.changes, ch)
	c.mu.Unlock()
}

// Len returns the number of changes logged.
func (c *ChangeSet) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.changes)
}

// Snapshot returns a copy of the changes logged so far, in the order they were
// applied.
func (c *ChangeSet) Snapshot() []Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.changes)
}
