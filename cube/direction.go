package cube

import "github.com/go-gl/mathgl/mgl64"

// Direction is a unit step along one of the six grid axes.
type Direction int

const (
	Down Direction = iota
	Up
	North
	South
	West
	East
)

var directionOffsets = [...]Pos{
	Down:  {0, -1, 0},
	Up:    {0, 1, 0},
	North: {0, 0, -1},
	South: {0, 0, 1},
	West:  {-1, 0, 0},
	East:  {1, 0, 0},
}

// Offset returns the single cell offset of the Direction.
func (d Direction) Offset() Pos {
	if d < 0 || int(d) >= len(directionOffsets) {
		return Pos{}
	}
	return directionOffsets[d]
}

// Vec3 returns the Direction as a unit vector.
func (d Direction) Vec3() mgl64.Vec3 {
	return d.Offset().Vec3()
}

// Opposite returns the Direction pointing the other way.
func (d Direction) Opposite() Direction {
	return d ^ 1
}

// String ...
func (d Direction) String() string {
	switch d {
	case Down:
		return "down"
	case Up:
		return "up"
	case North:
		return "north"
	case South:
		return "south"
	case West:
		return "west"
	case East:
		return "east"
	}
	return "unknown"
}

// ParseDirection resolves a direction name, returning false if the name is
// unknown.
func ParseDirection(name string) (Direction, bool) {
	for d := Down; d <= East; d++ {
		if d.String() == name {
			return d, true
		}
	}
	return 0, false
}
