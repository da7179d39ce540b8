// Package permission decides which writes an actor may perform and keeps an
// audit trail of the writes that were performed.
package permission

import (
	"log/slog"
	"sync"

	"github.com/dm-vev/asyncedit/actor"
	"github.com/dm-vev/asyncedit/cube"
	"github.com/dm-vev/asyncedit/grid"
)

// Authority approves and records writes.
type Authority interface {
	// CanWrite reports if the actor may write the cell at pos in the world.
	CanWrite(a actor.Actor, world string, pos cube.Pos) bool
	// LogWrite records a write that was performed.
	LogWrite(a actor.Actor, world string, pos cube.Pos, old, new grid.Cell)
}

// AllowAll is an Authority that permits every write and records nothing.
type AllowAll struct{}

// CanWrite ...
func (AllowAll) CanWrite(actor.Actor, string, cube.Pos) bool { return true }

// LogWrite ...
func (AllowAll) LogWrite(actor.Actor, string, cube.Pos, grid.Cell, grid.Cell) {}

// Region is a protected cuboid in a world. Only the owners listed may write
// inside it.
type Region struct {
	World  string
	Area   cube.Cuboid
	Owners []string
}

// Regions is an Authority that denies writes inside protected regions to
// anyone but their owners. Regions may be added while edits are running.
type Regions struct {
	mu      sync.RWMutex
	regions []Region
}

// NewRegions returns a Regions authority protecting the regions passed.
func NewRegions(regions ...Region) *Regions {
	return &Regions{regions: regions}
}

// Protect adds a protected region.
func (r *Regions) Protect(region Region) {
	r.mu.Lock()
	r.regions = append(r.regions, region)
	r.mu.Unlock()
}

// CanWrite ...
func (r *Regions) CanWrite(a actor.Actor, world string, pos cube.Pos) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, region := range r.regions {
		if region.World != "" && region.World != world {
			continue
		}
		if region.Area.Contains(pos) && !region.owner(a) {
			return false
		}
	}
	return true
}

// LogWrite ...
func (r *Regions) LogWrite(actor.Actor, string, cube.Pos, grid.Cell, grid.Cell) {}

func (region Region) owner(a actor.Actor) bool {
	for _, name := range region.Owners {
		if actor.Named(name).UUID == a.UUID {
			return true
		}
	}
	return false
}

// Audit wraps an Authority and logs every write performed at debug level.
type Audit struct {
	Authority
	Log *slog.Logger
}

// LogWrite logs the write before passing it on to the wrapped Authority.
func (a Audit) LogWrite(act actor.Actor, world string, pos cube.Pos, old, new grid.Cell) {
	if a.Log != nil {
		a.Log.Debug("cell written", "actor", act.String(), "world", world, "pos", pos.String(), "old", old.String(), "new", new.String())
	}
	if a.Authority != nil {
		a.Authority.LogWrite(act, world, pos, old, new)
	}
}

// CanWrite ...
func (a Audit) CanWrite(act actor.Actor, world string, pos cube.Pos) bool {
	if a.Authority == nil {
		return true
	}
	return a.Authority.CanWrite(act, world, pos)
}

var (
	_ Authority = AllowAll{}
	_ Authority = (*Regions)(nil)
	_ Authority = Audit{}
)
