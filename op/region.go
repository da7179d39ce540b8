package op

import (
	"context"
	"fmt"

	"github.com/dm-vev/asyncedit/cube"
	"github.com/dm-vev/asyncedit/grid"
	"github.com/go-gl/mathgl/mgl64"
)

// Move moves the cells of a region a distance in a direction, leaving
// Replacement behind.
type Move struct {
	Region      cube.Cuboid
	Direction   cube.Direction
	Distance    int
	Replacement grid.Cell
}

// Name ...
func (Move) Name() string { return NameMove }

// Apply ...
func (m Move) Apply(ctx context.Context, e Editor) (int, error) {
	if m.Distance < 1 {
		return 0, invalid("move distance %d", m.Distance)
	}
	offset := cube.PosFromVec3(m.Direction.Vec3().Mul(float64(m.Distance)))
	cells, err := copyRegion(ctx, e, m.Region)
	if err != nil {
		return 0, err
	}
	n := writeAll(ctx, e, m.Region.All(), m.Replacement)
	return n + paste(ctx, e, m.Region, cells, offset), nil
}

// Stack repeats the cells of a region Count times in a direction.
type Stack struct {
	Region    cube.Cuboid
	Direction cube.Direction
	Count     int
}

// Name ...
func (Stack) Name() string { return NameStack }

// Apply ...
func (s Stack) Apply(ctx context.Context, e Editor) (int, error) {
	if s.Count < 1 {
		return 0, invalid("stack count %d", s.Count)
	}
	size := s.Region.Size().Vec3()
	step := s.Direction.Vec3()
	step = mgl64.Vec3{step[0] * size[0], step[1] * size[1], step[2] * size[2]}
	cells, err := copyRegion(ctx, e, s.Region)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := 1; i <= s.Count; i++ {
		if e.Cancelled() {
			break
		}
		n += paste(ctx, e, s.Region, cells, cube.PosFromVec3(step.Mul(float64(i))))
	}
	return n, nil
}

func copyRegion(ctx context.Context, e Editor, region cube.Cuboid) ([]grid.Cell, error) {
	cells := make([]grid.Cell, 0, region.Volume())
	for pos := range region.All() {
		c, err := e.Read(ctx, pos)
		if err != nil {
			return nil, fmt.Errorf("copy %v: %w", pos, err)
		}
		cells = append(cells, c)
	}
	return cells, nil
}

// paste writes cells copied from region back with an offset. The order of
// cells is the iteration order of region.All.
func paste(ctx context.Context, e Editor, region cube.Cuboid, cells []grid.Cell, offset cube.Pos) int {
	n, i := 0, 0
	for pos := range region.All() {
		if e.Cancelled() {
			break
		}
		if e.Write(ctx, pos.Add(offset), cells[i]) {
			n++
		}
		i++
	}
	return n
}
