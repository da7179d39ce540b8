package op

import (
	"context"

	"github.com/dm-vev/asyncedit/cube"
	"github.com/dm-vev/asyncedit/grid"
	"github.com/dm-vev/asyncedit/mask"
	"github.com/go-gl/mathgl/mgl64"
)

// RemoveNear clears the cells matching Match within Apothem cells of Centre.
type RemoveNear struct {
	Centre  cube.Pos
	Match   mask.Mask
	Apothem int
}

// Name ...
func (RemoveNear) Name() string { return NameRemoveNear }

// Apply ...
func (r RemoveNear) Apply(ctx context.Context, e Editor) (int, error) {
	if r.Apothem < 0 || r.Match == nil {
		return 0, invalid("remove near apothem %d", r.Apothem)
	}
	a := cube.Pos{r.Apothem, r.Apothem, r.Apothem}
	return Replace{Region: cube.Box(r.Centre.Sub(a), r.Centre.Add(a)), From: r.Match, To: grid.Air}.Apply(ctx, e)
}

// FillXZ fills the air connected to Origin, spreading horizontally within
// Radius of Origin and downwards for at most Depth layers.
type FillXZ struct {
	Origin cube.Pos
	Radius float64
	Depth  int
	Cell   grid.Cell
}

// Name ...
func (FillXZ) Name() string { return NameFillXZ }

var fillDirections = []cube.Direction{cube.North, cube.South, cube.West, cube.East, cube.Down}

// Apply ...
func (f FillXZ) Apply(ctx context.Context, e Editor) (int, error) {
	if f.Radius < 0 || f.Depth < 1 {
		return 0, invalid("fill radius %v depth %d", f.Radius, f.Depth)
	}
	origin := mgl64.Vec2{float64(f.Origin[0]), float64(f.Origin[2])}
	minY := f.Origin[1] - f.Depth + 1

	visited := map[cube.Pos]struct{}{f.Origin: {}}
	queue := []cube.Pos{f.Origin}
	n := 0
	for len(queue) > 0 {
		if e.Cancelled() {
			break
		}
		pos := queue[0]
		queue = queue[1:]

		c, err := e.Read(ctx, pos)
		if err != nil {
			return n, err
		}
		if !c.IsAir() {
			continue
		}
		if e.Write(ctx, pos, f.Cell) {
			n++
		}
		for _, d := range fillDirections {
			next := pos.Add(d.Offset())
			if _, ok := visited[next]; ok || next[1] < minY {
				continue
			}
			if (mgl64.Vec2{float64(next[0]), float64(next[2])}).Sub(origin).Len() > f.Radius {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return n, nil
}
