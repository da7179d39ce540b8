package op

import (
	"context"
	"math"

	"github.com/dm-vev/asyncedit/cube"
	"github.com/dm-vev/asyncedit/grid"
	"github.com/go-gl/mathgl/mgl64"
)

// Line draws a line between two positions. With a Radius above zero, every
// cell within that distance of the line is set.
type Line struct {
	From, To cube.Pos
	Radius   int
	Cell     grid.Cell
}

// Name ...
func (Line) Name() string { return NameLine }

// Apply ...
func (l Line) Apply(ctx context.Context, e Editor) (int, error) {
	if l.Radius < 0 {
		return 0, invalid("line radius %d", l.Radius)
	}
	return writeAll(ctx, e, l.cells, l.Cell), nil
}

func (l Line) cells(yield func(cube.Pos) bool) {
	from, to := l.From.Vec3(), l.To.Vec3()
	delta := to.Sub(from)
	steps := int(math.Max(math.Abs(delta[0]), math.Max(math.Abs(delta[1]), math.Abs(delta[2]))))
	seen := make(map[cube.Pos]struct{})
	for i := 0; i <= steps; i++ {
		t := 0.0
		if steps > 0 {
			t = float64(i) / float64(steps)
		}
		p := from.Add(delta.Mul(t))
		centre := cube.Pos{int(math.Round(p[0])), int(math.Round(p[1])), int(math.Round(p[2]))}
		r := cube.Pos{l.Radius, l.Radius, l.Radius}
		for pos := range cube.Box(centre.Sub(r), centre.Add(r)).All() {
			if pos.Vec3().Sub(centre.Vec3()).Len() > float64(l.Radius) {
				continue
			}
			if _, ok := seen[pos]; ok {
				continue
			}
			seen[pos] = struct{}{}
			if !yield(pos) {
				return
			}
		}
	}
}

// Sphere sets the cells within Radius of Centre. A hollow sphere only sets
// the cells on its surface.
type Sphere struct {
	Centre cube.Pos
	Radius float64
	Hollow bool
	Cell   grid.Cell
}

// Name ...
func (Sphere) Name() string { return NameSphere }

// Apply ...
func (s Sphere) Apply(ctx context.Context, e Editor) (int, error) {
	if s.Radius <= 0 {
		return 0, invalid("sphere radius %v", s.Radius)
	}
	inside := func(pos cube.Pos) bool {
		return pos.Vec3().Sub(s.Centre.Vec3()).Len() <= s.Radius
	}
	r := int(math.Ceil(s.Radius))
	box := cube.Box(s.Centre.Sub(cube.Pos{r, r, r}), s.Centre.Add(cube.Pos{r, r, r}))
	return writeAll(ctx, e, shell(box, inside, s.Hollow, sphereNeighbours), s.Cell), nil
}

// Cylinder sets the cells of a vertical cylinder standing on Base. A negative
// Height grows the cylinder downwards.
type Cylinder struct {
	Base   cube.Pos
	Radius float64
	Height int
	Hollow bool
	Cell   grid.Cell
}

// Name ...
func (Cylinder) Name() string { return NameCylinder }

// Apply ...
func (c Cylinder) Apply(ctx context.Context, e Editor) (int, error) {
	if c.Radius <= 0 || c.Height == 0 {
		return 0, invalid("cylinder radius %v height %d", c.Radius, c.Height)
	}
	top := c.Base.Add(cube.Pos{0, c.Height - 1, 0})
	if c.Height < 0 {
		top = c.Base.Add(cube.Pos{0, c.Height + 1, 0})
	}
	inside := func(pos cube.Pos) bool {
		d := mgl64.Vec2{float64(pos[0] - c.Base[0]), float64(pos[2] - c.Base[2])}
		return d.Len() <= c.Radius
	}
	r := int(math.Ceil(c.Radius))
	box := cube.Box(c.Base.Sub(cube.Pos{r, 0, r}), top.Add(cube.Pos{r, 0, r}))
	return writeAll(ctx, e, shell(box, inside, c.Hollow, cylinderNeighbours), c.Cell), nil
}

var (
	sphereNeighbours   = []cube.Direction{cube.Down, cube.Up, cube.North, cube.South, cube.West, cube.East}
	cylinderNeighbours = []cube.Direction{cube.North, cube.South, cube.West, cube.East}
)

// shell yields the positions of box inside the shape. If hollow, only
// positions with a neighbour outside the shape are yielded.
func shell(box cube.Cuboid, inside func(cube.Pos) bool, hollow bool, neighbours []cube.Direction) func(func(cube.Pos) bool) {
	return func(yield func(cube.Pos) bool) {
		for pos := range box.All() {
			if !inside(pos) {
				continue
			}
			if hollow {
				edge := false
				for _, d := range neighbours {
					if !inside(pos.Add(d.Offset())) {
						edge = true
						break
					}
				}
				if !edge {
					continue
				}
			}
			if !yield(pos) {
				return
			}
		}
	}
}
