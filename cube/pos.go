package cube

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Pos holds the position of a cell in the grid. The position is represented
// of an array with an x, y and z value, where the y value is the vertical
// component.
type Pos [3]int

// String converts the Pos to a string in the format (1,2,3) and returns it.
func (p Pos) String() string {
	return fmt.Sprintf("(%v,%v,%v)", p[0], p[1], p[2])
}

// X returns the X coordinate of the cell position.
func (p Pos) X() int {
	return p[0]
}

// Y returns the Y coordinate of the cell position.
func (p Pos) Y() int {
	return p[1]
}

// Z returns the Z coordinate of the cell position.
func (p Pos) Z() int {
	return p[2]
}

// Add adds two positions together and returns a new one with the combined
// values.
func (p Pos) Add(pos Pos) Pos {
	return Pos{p[0] + pos[0], p[1] + pos[1], p[2] + pos[2]}
}

// Sub subtracts pos from p and returns a new position with the subtracted
// values.
func (p Pos) Sub(pos Pos) Pos {
	return Pos{p[0] - pos[0], p[1] - pos[1], p[2] - pos[2]}
}

// Mul scales all components of p by n.
func (p Pos) Mul(n int) Pos {
	return Pos{p[0] * n, p[1] * n, p[2] * n}
}

// Vec3 returns a vec3 holding the same coordinates as the cell position.
func (p Pos) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])}
}

// Vec3Centre returns a Vec3 holding the coordinates of the centre of the
// cell.
func (p Pos) Vec3Centre() mgl64.Vec3 {
	return mgl64.Vec3{float64(p[0]) + 0.5, float64(p[1]) + 0.5, float64(p[2]) + 0.5}
}

// PosFromVec3 returns a cell position by a Vec3, rounding the values down
// adequately.
func PosFromVec3(vec3 mgl64.Vec3) Pos {
	return Pos{int(math.Floor(vec3[0])), int(math.Floor(vec3[1])), int(math.Floor(vec3[2]))}
}
