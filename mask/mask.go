// Package mask holds predicates that decide which cells an edit may write.
package mask

import (
	"context"

	"github.com/dm-vev/asyncedit/cube"
	"github.com/dm-vev/asyncedit/grid"
)

// Mask filters writes. A write to pos is only attempted if Matches returns
// true for it.
type Mask interface {
	Matches(ctx context.Context, g grid.Reader, pos cube.Pos) bool
}

// Func adapts a function into a Mask.
type Func func(ctx context.Context, g grid.Reader, pos cube.Pos) bool

// Matches ...
func (f Func) Matches(ctx context.Context, g grid.Reader, pos cube.Pos) bool {
	return f(ctx, g, pos)
}

// Cells matches positions currently holding one of the cells listed. Cells
// with a zero data value match any data value of the same type.
type Cells []grid.Cell

// Only returns a Mask that only lets writes replace the cells passed, such as
// Only(grid.Air) to only fill empty space.
func Only(cells ...grid.Cell) Cells {
	return Cells(cells)
}

// Matches ...
func (m Cells) Matches(ctx context.Context, g grid.Reader, pos cube.Pos) bool {
	c, err := g.Read(ctx, pos)
	if err != nil {
		return false
	}
	for _, want := range m {
		if c.Type == want.Type && (want.Data == 0 || c.Data == want.Data) {
			return true
		}
	}
	return false
}

// Existing matches every position that holds a cell other than air.
type Existing struct{}

// Matches ...
func (Existing) Matches(ctx context.Context, g grid.Reader, pos cube.Pos) bool {
	c, err := g.Read(ctx, pos)
	return err == nil && !c.IsAir()
}

// Region matches positions inside the cuboid.
type Region cube.Cuboid

// Matches ...
func (m Region) Matches(_ context.Context, _ grid.Reader, pos cube.Pos) bool {
	return cube.Cuboid(m).Contains(pos)
}

// Invert returns a Mask matching exactly the positions m does not match.
func Invert(m Mask) Mask {
	return Func(func(ctx context.Context, g grid.Reader, pos cube.Pos) bool {
		return !m.Matches(ctx, g, pos)
	})
}

// All returns a Mask matching positions matched by every mask passed.
func All(masks ...Mask) Mask {
	return Func(func(ctx context.Context, g grid.Reader, pos cube.Pos) bool {
		for _, m := range masks {
			if m != nil && !m.Matches(ctx, g, pos) {
				return false
			}
		}
		return true
	})
}
