package grid

import (
	"context"
	"sync"

	"github.com/brentp/intintmap"
	"github.com/dm-vev/asyncedit/cube"
	"github.com/segmentio/fasthash/fnv1a"
)

const (
	stripeCount = 64

	horizontalBits = 26
	verticalBits   = 12
	horizontalBias = 1 << (horizontalBits - 1)
	verticalBias   = 1 << (verticalBits - 1)
)

// Memory is a Grid kept entirely in memory. Cells are stored in open
// addressing int maps, striped per chunk column so that writes in different
// chunks do not contend on the same lock.
type Memory struct {
	name    string
	stripes [stripeCount]stripe
}

type stripe struct {
	mu    sync.RWMutex
	cells *intintmap.Map
}

// NewMemory creates an empty Memory grid with the world name passed.
func NewMemory(name string) *Memory {
	m := &Memory{name: name}
	for i := range m.stripes {
		m.stripes[i].cells = intintmap.New(1024, 0.6)
	}
	return m
}

// Name ...
func (m *Memory) Name() string {
	return m.name
}

// Read returns the cell at pos. Positions outside the addressable range always
// hold Air.
func (m *Memory) Read(_ context.Context, pos cube.Pos) (Cell, error) {
	key, ok := packPos(pos)
	if !ok {
		return Air, nil
	}
	s := m.stripe(pos)
	s.mu.RLock()
	v, found := s.cells.Get(key)
	s.mu.RUnlock()
	if !found {
		return Air, nil
	}
	return decodeCell(v), nil
}

// Write sets the cell at pos. Writes outside the addressable range are
// rejected.
func (m *Memory) Write(_ context.Context, pos cube.Pos, c Cell) bool {
	key, ok := packPos(pos)
	if !ok {
		return false
	}
	s := m.stripe(pos)
	s.mu.Lock()
	if c.IsAir() {
		s.cells.Del(key)
	} else {
		s.cells.Put(key, encodeCell(c))
	}
	s.mu.Unlock()
	return true
}

// Len returns the number of positions holding a cell other than Air.
func (m *Memory) Len() int {
	n := 0
	for i := range m.stripes {
		s := &m.stripes[i]
		s.mu.RLock()
		n += s.cells.Size()
		s.mu.RUnlock()
	}
	return n
}

func (m *Memory) stripe(pos cube.Pos) *stripe {
	chunk := uint64(uint32(pos[0]>>4))<<32 | uint64(uint32(pos[2]>>4))
	return &m.stripes[fnv1a.HashUint64(chunk)%stripeCount]
}

// packPos packs pos into a single int64 key. It returns false if pos lies
// outside the range that fits in a key.
func packPos(pos cube.Pos) (int64, bool) {
	x, y, z := pos[0]+horizontalBias, pos[1]+verticalBias, pos[2]+horizontalBias
	if x < 0 || x >= 1<<horizontalBits || z < 0 || z >= 1<<horizontalBits || y < 0 || y >= 1<<verticalBits {
		return 0, false
	}
	return int64(uint64(x)<<(horizontalBits+verticalBits) | uint64(z)<<verticalBits | uint64(y)), true
}

func encodeCell(c Cell) int64 {
	return int64(c.Type)<<8 | int64(c.Data)
}

func decodeCell(v int64) Cell {
	return Cell{Type: uint16(v >> 8), Data: uint8(v)}
}

var _ Grid = (*Memory)(nil)
