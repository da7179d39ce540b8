// Package op implements the bulk operations an edit session can run. Each
// operation describes its arguments as plain values and applies itself to an
// Editor, which is typically a cancelable session.
package op

import (
	"context"
	"errors"
	"fmt"

	"github.com/dm-vev/asyncedit/cube"
	"github.com/dm-vev/asyncedit/grid"
)

// ErrInvalid is returned for operations with arguments that do not describe
// a valid shape.
var ErrInvalid = errors.New("op: invalid arguments")

// Names of the operations, used as keys of the async policy.
const (
	NameFill       = "setBlocks"
	NameReplace    = "replaceBlocks"
	NameFaces      = "makeFaces"
	NameWalls      = "makeWalls"
	NameOverlay    = "overlayCuboidBlocks"
	NameMove       = "moveRegion"
	NameStack      = "stackCuboidRegion"
	NameLine       = "drawLine"
	NameSphere     = "makeSphere"
	NameCylinder   = "makeCylinder"
	NameCenter     = "center"
	NameRemoveNear = "removeNear"
	NameFillXZ     = "fillXZ"
)

// Names lists the names of all operations in this package.
var Names = []string{
	NameFill, NameReplace, NameFaces, NameWalls, NameOverlay, NameMove, NameStack,
	NameLine, NameSphere, NameCylinder, NameCenter, NameRemoveNear, NameFillXZ,
}

// Editor is the surface operations read and write through. Write reports if
// the cell changed. Operations stop as soon as Cancelled returns true.
type Editor interface {
	grid.Reader
	Write(ctx context.Context, pos cube.Pos, c grid.Cell) bool
	Cancelled() bool
}

// Operation is a bulk edit.
type Operation interface {
	// Name returns the name of the operation.
	Name() string
	// Apply runs the operation and returns the number of cells changed. An
	// operation stopped by cancellation returns the cells changed so far and
	// no error.
	Apply(ctx context.Context, e Editor) (int, error)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// writeAll writes c to every position yielded by seq until the editor is
// cancelled.
func writeAll(ctx context.Context, e Editor, seq func(func(cube.Pos) bool), c grid.Cell) int {
	n := 0
	for pos := range seq {
		if e.Cancelled() {
			break
		}
		if e.Write(ctx, pos, c) {
			n++
		}
	}
	return n
}
