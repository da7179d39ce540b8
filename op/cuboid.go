package op

import (
	"context"
	"math"

	"github.com/dm-vev/asyncedit/cube"
	"github.com/dm-vev/asyncedit/grid"
	"github.com/dm-vev/asyncedit/mask"
)

// Fill sets every cell of a region.
type Fill struct {
	Region cube.Cuboid
	Cell   grid.Cell
}

// Name ...
func (Fill) Name() string { return NameFill }

// Apply ...
func (f Fill) Apply(ctx context.Context, e Editor) (int, error) {
	return writeAll(ctx, e, f.Region.All(), f.Cell), nil
}

// Replace sets the cells of a region that match From. A nil From replaces
// every cell that is not air.
type Replace struct {
	Region cube.Cuboid
	From   mask.Mask
	To     grid.Cell
}

// Name ...
func (Replace) Name() string { return NameReplace }

// Apply ...
func (r Replace) Apply(ctx context.Context, e Editor) (int, error) {
	from := r.From
	if from == nil {
		from = mask.Existing{}
	}
	n := 0
	for pos := range r.Region.All() {
		if e.Cancelled() {
			break
		}
		if from.Matches(ctx, e, pos) && e.Write(ctx, pos, r.To) {
			n++
		}
	}
	return n, nil
}

// Faces sets the six outer faces of a region.
type Faces struct {
	Region cube.Cuboid
	Cell   grid.Cell
}

// Name ...
func (Faces) Name() string { return NameFaces }

// Apply ...
func (f Faces) Apply(ctx context.Context, e Editor) (int, error) {
	return writeAll(ctx, e, f.Region.Faces(false), f.Cell), nil
}

// Walls sets the four vertical faces of a region.
type Walls struct {
	Region cube.Cuboid
	Cell   grid.Cell
}

// Name ...
func (Walls) Name() string { return NameWalls }

// Apply ...
func (w Walls) Apply(ctx context.Context, e Editor) (int, error) {
	return writeAll(ctx, e, w.Region.Faces(true), w.Cell), nil
}

// Overlay places a cell on top of the highest solid cell of every column of
// a region, provided the cell above it is still inside the region and air.
type Overlay struct {
	Region cube.Cuboid
	Cell   grid.Cell
}

// Name ...
func (Overlay) Name() string { return NameOverlay }

// Apply ...
func (o Overlay) Apply(ctx context.Context, e Editor) (int, error) {
	n := 0
	for x := o.Region.Min[0]; x <= o.Region.Max[0]; x++ {
		for z := o.Region.Min[2]; z <= o.Region.Max[2]; z++ {
			if e.Cancelled() {
				return n, nil
			}
			for y := o.Region.Max[1] - 1; y >= o.Region.Min[1]; y-- {
				c, err := e.Read(ctx, cube.Pos{x, y, z})
				if err != nil {
					return n, err
				}
				if c.IsAir() {
					continue
				}
				above := cube.Pos{x, y + 1, z}
				if a, err := e.Read(ctx, above); err == nil && a.IsAir() && e.Write(ctx, above, o.Cell) {
					n++
				}
				break
			}
		}
	}
	return n, nil
}

// Center sets the cells at the centre of a region: one cell along axes of
// odd length and two along axes of even length.
type Center struct {
	Region cube.Cuboid
	Cell   grid.Cell
}

// Name ...
func (Center) Name() string { return NameCenter }

// Apply ...
func (c Center) Apply(ctx context.Context, e Editor) (int, error) {
	centre := c.Region.Centre()
	var lo, hi cube.Pos
	for i := 0; i < 3; i++ {
		lo[i] = int(math.Floor(centre[i] - 0.5))
		hi[i] = int(math.Ceil(centre[i] - 0.5))
	}
	return writeAll(ctx, e, cube.Box(lo, hi).All(), c.Cell), nil
}
