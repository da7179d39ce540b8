package grid

import (
	"context"

	"github.com/dm-vev/asyncedit/cube"
	"github.com/dm-vev/asyncedit/sched"
)

// MainOnly wraps a Grid so that direct reads are only permitted with a
// context marked by sched.WithMain. Reads from any other goroutine fail with
// ErrUnsafeRead, like a host that only exposes loaded chunks to its main
// thread.
type MainOnly struct {
	Grid
}

// Read ...
func (g MainOnly) Read(ctx context.Context, pos cube.Pos) (Cell, error) {
	if !sched.IsMain(ctx) {
		return Air, ErrUnsafeRead
	}
	return g.Grid.Read(ctx, pos)
}
