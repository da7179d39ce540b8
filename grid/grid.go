// Package grid defines the authoritative voxel grid that edit sessions
// mutate, together with in-memory and LevelDB backed implementations.
package grid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dm-vev/asyncedit/cube"
)

// ErrUnsafeRead is returned by Grid.Read if reading directly is not safe on
// the calling goroutine, for example because the region is only accessible
// from the main goroutine. Callers recover by queueing the read.
var ErrUnsafeRead = errors.New("grid: direct read is unsafe on this goroutine")

// Cell is the value stored at a single grid position: a cell type and a data
// value that refines it.
type Cell struct {
	Type uint16
	Data uint8
}

// Air is the empty cell. Every position that was never written holds Air.
var Air = Cell{}

// IsAir checks if the Cell is empty.
func (c Cell) IsAir() bool {
	return c.Type == 0
}

// String returns the Cell in the type:data notation accepted by ParseCell.
func (c Cell) String() string {
	if c.Data == 0 {
		return strconv.Itoa(int(c.Type))
	}
	return fmt.Sprintf("%d:%d", c.Type, c.Data)
}

// ParseCell parses a cell in the notation type[:data]. The name air is
// accepted as an alias for type 0.
func ParseCell(s string) (Cell, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "air") {
		return Air, nil
	}
	typ, data, hasData := strings.Cut(s, ":")
	t, err := strconv.ParseUint(typ, 10, 16)
	if err != nil {
		return Air, fmt.Errorf("parse cell type %q: %w", s, err)
	}
	c := Cell{Type: uint16(t)}
	if hasData {
		d, err := strconv.ParseUint(data, 10, 8)
		if err != nil {
			return Air, fmt.Errorf("parse cell data %q: %w", s, err)
		}
		c.Data = uint8(d)
	}
	return c, nil
}

// Reader reads cells from a grid.
type Reader interface {
	// Read returns the cell at pos. ErrUnsafeRead is returned if the read may
	// not be performed directly with the context passed.
	Read(ctx context.Context, pos cube.Pos) (Cell, error)
}

// Grid is the shared, mutable grid edited by sessions. Implementations must be
// safe for concurrent use.
type Grid interface {
	Reader
	// Name returns the name of the world the Grid holds.
	Name() string
	// Write sets the cell at pos, returning false if the write was rejected.
	Write(ctx context.Context, pos cube.Pos, c Cell) bool
}
