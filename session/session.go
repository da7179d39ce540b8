// Package session implements the cancelable session that every bulk operation,
// undo and redo runs in. A session filters writes through a mask, checks a
// shared cancellation flag before every write and records what it changed.
package session

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/dm-vev/asyncedit/actor"
	"github.com/dm-vev/asyncedit/cube"
	"github.com/dm-vev/asyncedit/grid"
	"github.com/dm-vev/asyncedit/mask"
	"github.com/dm-vev/asyncedit/permission"
	"golang.org/x/time/rate"
)

// ErrCancelled is returned for operations stopped by cancellation. Writes
// applied before the cancellation was observed stay applied.
var ErrCancelled = errors.New("session: cancelled")

// Config holds the collaborators of a Session.
type Config struct {
	// Actor is the actor on whose behalf writes are made.
	Actor actor.Actor
	// Grid is the grid written to.
	Grid grid.Grid
	// Reader is used for reads. If nil, reads go to Grid directly.
	Reader grid.Reader
	// Mask filters writes if non-nil.
	Mask mask.Mask
	// Cancelled is the cancellation flag shared with the job the Session runs
	// for. It may be nil for sessions that cannot be cancelled.
	Cancelled *atomic.Bool
	// Changes records the writes applied if non-nil.
	Changes *ChangeSet
	// Authority approves and logs writes if non-nil.
	Authority permission.Authority
	// Limiter throttles writes if non-nil.
	Limiter *rate.Limiter
}

// Session wraps a grid for the duration of a single operation. A Session is
// used by one goroutine at a time.
type Session struct {
	conf    Config
	changed int
	stopped bool
}

// New creates a Session using the Config.
func (conf Config) New() *Session {
	if conf.Reader == nil {
		conf.Reader = conf.Grid
	}
	return &Session{conf: conf}
}

// Actor returns the actor the Session writes for.
func (s *Session) Actor() actor.Actor {
	return s.conf.Actor
}

// Read returns the cell at pos.
func (s *Session) Read(ctx context.Context, pos cube.Pos) (grid.Cell, error) {
	return s.conf.Reader.Read(ctx, pos)
}

// Write sets the cell at pos and reports if the grid changed. Nothing is
// written once the Session is cancelled, if the authority denies the write, if
// the mask does not match pos or if the cell already holds c.
func (s *Session) Write(ctx context.Context, pos cube.Pos, c grid.Cell) bool {
	if s.Cancelled() {
		return false
	}
	if ctx.Err() != nil {
		s.stopped = true
		return false
	}
	world := s.conf.Grid.Name()
	if s.conf.Authority != nil && !s.conf.Authority.CanWrite(s.conf.Actor, world, pos) {
		return false
	}
	if s.conf.Mask != nil && !s.conf.Mask.Matches(ctx, s.conf.Reader, pos) {
		return false
	}
	old, err := s.conf.Reader.Read(ctx, pos)
	if err != nil || old == c {
		return false
	}
	if s.conf.Limiter != nil {
		if err := s.conf.Limiter.Wait(ctx); err != nil {
			s.stopped = true
			return false
		}
		if s.Cancelled() {
			return false
		}
	}
	if !s.conf.Grid.Write(ctx, pos, c) {
		return false
	}
	s.changed++
	if s.conf.Changes != nil {
		s.conf.Changes.Record(Change{Pos: pos, Before: old, After: c})
	}
	if s.conf.Authority != nil {
		s.conf.Authority.LogWrite(s.conf.Actor, world, pos, old, c)
	}
	return true
}

// Cancelled reports if the Session was cancelled, either through its flag or
// because the context of a write was done.
func (s *Session) Cancelled() bool {
	return s.stopped || (s.conf.Cancelled != nil && s.conf.Cancelled.Load())
}

// Err returns ErrCancelled if the Session was cancelled.
func (s *Session) Err() error {
	if s.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// Changed returns the number of writes the Session applied.
func (s *Session) Changed() int {
	return s.changed
}

// Undo restores the cells before the changes passed, walking them backwards.
// It returns the number of cells restored.
func (s *Session) Undo(ctx context.Context, changes []Change) int {
	n := 0
	for i := len(changes) - 1; i >= 0; i-- {
		if s.Cancelled() {
			break
		}
		if s.Write(ctx, changes[i].Pos, changes[i].Before) {
			n++
		}
	}
	return n
}

// Redo applies the changes passed again, in the order they were made. It
// returns the number of cells written.
func (s *Session) Redo(ctx context.Context, changes []Change) int {
	n := 0
	for _, ch := range changes {
		if s.Cancelled() {
			break
		}
		if s.Write(ctx, ch.Pos, ch.After) {
			n++
		}
	}
	return n
}
