package grid

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/df-mc/goleveldb/leveldb"
	"github.com/dm-vev/asyncedit/cube"
)

// LevelDB is a Grid persisted in a LevelDB database. Every non-air cell is
// stored under a 12 byte key holding its position.
type LevelDB struct {
	name string
	log  *slog.Logger
	db   *leveldb.DB
}

// OpenLevelDB opens or creates the LevelDB grid stored in dir.
func OpenLevelDB(name, dir string, log *slog.Logger) (*LevelDB, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb grid: %w", err)
	}
	return &LevelDB{name: name, log: log, db: db}, nil
}

// Name ...
func (g *LevelDB) Name() string {
	return g.name
}

// Read returns the cell stored at pos, or Air if none was stored. Positions
// outside the addressable range always hold Air.
func (g *LevelDB) Read(_ context.Context, pos cube.Pos) (Cell, error) {
	key, ok := posKey(pos)
	if !ok {
		return Air, nil
	}
	v, err := g.db.Get(key, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return Air, nil
	case err != nil:
		return Air, fmt.Errorf("read cell %v: %w", pos, err)
	case len(v) != 3:
		return Air, fmt.Errorf("read cell %v: malformed value of %d bytes", pos, len(v))
	}
	return Cell{Type: binary.BigEndian.Uint16(v), Data: v[2]}, nil
}

// Write stores c at pos. Writing Air deletes the stored cell. Storage errors
// are logged and reported as a rejected write, as are writes outside the
// addressable range.
func (g *LevelDB) Write(_ context.Context, pos cube.Pos, c Cell) bool {
	key, ok := posKey(pos)
	if !ok {
		return false
	}
	var err error
	if c.IsAir() {
		err = g.db.Delete(key, nil)
	} else {
		v := make([]byte, 3)
		binary.BigEndian.PutUint16(v, c.Type)
		v[2] = c.Data
		err = g.db.Put(key, v, nil)
	}
	if err != nil {
		g.log.Error("leveldb grid: write cell", "pos", pos.String(), "err", err)
		return false
	}
	return true
}

// Close closes the underlying database.
func (g *LevelDB) Close() error {
	if err := g.db.Close(); err != nil {
		return fmt.Errorf("close leveldb grid: %w", err)
	}
	return nil
}

// posKey encodes pos as a 12 byte key. It returns false if a coordinate does
// not fit in an int32.
func posKey(pos cube.Pos) ([]byte, bool) {
	k := make([]byte, 12)
	for i, v := range pos {
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, false
		}
		binary.BigEndian.PutUint32(k[i*4:], uint32(int32(v)))
	}
	return k, true
}

var _ Grid = (*LevelDB)(nil)
