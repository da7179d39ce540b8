package cube

import (
	"iter"

	"github.com/go-gl/mathgl/mgl64"
)

// Cuboid is an axis aligned region of cells. Both corners are inclusive.
type Cuboid struct {
	Min, Max Pos
}

// Box creates a Cuboid spanning the two corners passed, in any order.
func Box(a, b Pos) Cuboid {
	return Cuboid{
		Min: Pos{min(a[0], b[0]), min(a[1], b[1]), min(a[2], b[2])},
		Max: Pos{max(a[0], b[0]), max(a[1], b[1]), max(a[2], b[2])},
	}
}

// Size returns the extent of the Cuboid on each axis.
func (c Cuboid) Size() Pos {
	return Pos{c.Max[0] - c.Min[0] + 1, c.Max[1] - c.Min[1] + 1, c.Max[2] - c.Min[2] + 1}
}

// Volume returns the number of cells inside the Cuboid.
func (c Cuboid) Volume() int {
	s := c.Size()
	return s[0] * s[1] * s[2]
}

// Contains checks if pos lies within the Cuboid.
func (c Cuboid) Contains(pos Pos) bool {
	return pos[0] >= c.Min[0] && pos[0] <= c.Max[0] &&
		pos[1] >= c.Min[1] && pos[1] <= c.Max[1] &&
		pos[2] >= c.Min[2] && pos[2] <= c.Max[2]
}

// Translate returns the Cuboid moved by offset.
func (c Cuboid) Translate(offset Pos) Cuboid {
	return Cuboid{Min: c.Min.Add(offset), Max: c.Max.Add(offset)}
}

// Centre returns the exact centre of the Cuboid.
func (c Cuboid) Centre() mgl64.Vec3 {
	return c.Min.Vec3().Add(c.Max.Vec3().Add(mgl64.Vec3{1, 1, 1})).Mul(0.5)
}

// All iterates over every position in the Cuboid in x, z, y order, starting
// at the lowest layer.
func (c Cuboid) All() iter.Seq[Pos] {
	return func(yield func(Pos) bool) {
		for y := c.Min[1]; y <= c.Max[1]; y++ {
			for z := c.Min[2]; z <= c.Max[2]; z++ {
				for x := c.Min[0]; x <= c.Max[0]; x++ {
					if !yield(Pos{x, y, z}) {
						return
					}
				}
			}
		}
	}
}

// Faces iterates over the cells on the outer shell of the Cuboid. If walls is
// true, the top and bottom faces are left out.
func (c Cuboid) Faces(walls bool) iter.Seq[Pos] {
	return func(yield func(Pos) bool) {
		for pos := range c.All() {
			onX := pos[0] == c.Min[0] || pos[0] == c.Max[0]
			onZ := pos[2] == c.Min[2] || pos[2] == c.Max[2]
			onY := pos[1] == c.Min[1] || pos[1] == c.Max[1]
			if onX || onZ || (!walls && onY) {
				if !yield(pos) {
					return
				}
			}
		}
	}
}
