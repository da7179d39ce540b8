package edit

import (
	"context"
	"slices"
	"sync/atomic"

	"github.com/dm-vev/asyncedit/cube"
	"github.com/dm-vev/asyncedit/grid"
	"github.com/dm-vev/asyncedit/internal/guard"
	"github.com/dm-vev/asyncedit/job"
	"github.com/dm-vev/asyncedit/mask"
	"github.com/dm-vev/asyncedit/op"
	"github.com/dm-vev/asyncedit/sched"
	"github.com/dm-vev/asyncedit/session"
	"golang.org/x/time/rate"
)

// newSession creates a cancelable session writing for the actor. Writes are
// recorded in the change log if record is true.
func (s *Session) newSession(m mask.Mask, cancelled *atomic.Bool, limiter *rate.Limiter, record bool) *session.Session {
	conf := session.Config{
		Actor:     s.conf.Actor,
		Grid:      s.conf.Grid,
		Reader:    s,
		Mask:      m,
		Cancelled: cancelled,
		Authority: s.conf.Authority,
		Limiter:   limiter,
	}
	if record {
		conf.Changes = s.changes
	}
	return conf.New()
}

// Apply runs the operation. If the operation is queued, Apply returns 0 and
// the changes show up in the change log once the job has run. Otherwise it
// returns the number of cells changed.
func (s *Session) Apply(ctx context.Context, o op.Operation) (int, error) {
	if !s.CheckAsync(o.Name()) {
		if err := s.settle(ctx); err != nil {
			return 0, err
		}
		sess := s.newSession(s.Mask(), nil, nil, true)
		n, err := guard.Value(func() (int, error) {
			return o.Apply(ctx, sess)
		})
		if err != nil {
			s.log.Error("edit: operation failed", "op", o.Name(), "err", err)
			return 0, err
		}
		return n, sess.Err()
	}
	flag := new(atomic.Bool)
	sess := s.newSession(s.AsyncMask(), flag, s.placer.Limiter(), true)
	task := job.TaskFunc(func(ctx context.Context) (int, error) {
		n, err := o.Apply(ctx, sess)
		if err != nil {
			return n, err
		}
		return n, sess.Err()
	})
	return 0, s.submit(job.KindBulk, o.Name(), task, flag)
}

// SetBlocks fills a region with a cell.
func (s *Session) SetBlocks(ctx context.Context, region cube.Cuboid, c grid.Cell) (int, error) {
	return s.Apply(ctx, op.Fill{Region: region, Cell: c})
}

// ReplaceBlocks replaces the cells of a region matching from.
func (s *Session) ReplaceBlocks(ctx context.Context, region cube.Cuboid, from mask.Mask, to grid.Cell) (int, error) {
	return s.Apply(ctx, op.Replace{Region: region, From: from, To: to})
}

// MakeFaces sets the outer faces of a region.
func (s *Session) MakeFaces(ctx context.Context, region cube.Cuboid, c grid.Cell) (int, error) {
	return s.Apply(ctx, op.Faces{Region: region, Cell: c})
}

// MakeWalls sets the vertical faces of a region.
func (s *Session) MakeWalls(ctx context.Context, region cube.Cuboid, c grid.Cell) (int, error) {
	return s.Apply(ctx, op.Walls{Region: region, Cell: c})
}

// Overlay places a cell on top of every column of a region.
func (s *Session) Overlay(ctx context.Context, region cube.Cuboid, c grid.Cell) (int, error) {
	return s.Apply(ctx, op.Overlay{Region: region, Cell: c})
}

// MoveRegion moves a region, leaving replacement behind.
func (s *Session) MoveRegion(ctx context.Context, region cube.Cuboid, d cube.Direction, distance int, replacement grid.Cell) (int, error) {
	return s.Apply(ctx, op.Move{Region: region, Direction: d, Distance: distance, Replacement: replacement})
}

// StackRegion repeats a region count times.
func (s *Session) StackRegion(ctx context.Context, region cube.Cuboid, d cube.Direction, count int) (int, error) {
	return s.Apply(ctx, op.Stack{Region: region, Direction: d, Count: count})
}

// DrawLine draws a line.
func (s *Session) DrawLine(ctx context.Context, from, to cube.Pos, radius int, c grid.Cell) (int, error) {
	return s.Apply(ctx, op.Line{From: from, To: to, Radius: radius, Cell: c})
}

// MakeSphere makes a sphere.
func (s *Session) MakeSphere(ctx context.Context, centre cube.Pos, radius float64, hollow bool, c grid.Cell) (int, error) {
	return s.Apply(ctx, op.Sphere{Centre: centre, Radius: radius, Hollow: hollow, Cell: c})
}

// MakeCylinder makes a vertical cylinder.
func (s *Session) MakeCylinder(ctx context.Context, base cube.Pos, radius float64, height int, hollow bool, c grid.Cell) (int, error) {
	return s.Apply(ctx, op.Cylinder{Base: base, Radius: radius, Height: height, Hollow: hollow, Cell: c})
}

// Center sets the centre of a region.
func (s *Session) Center(ctx context.Context, region cube.Cuboid, c grid.Cell) (int, error) {
	return s.Apply(ctx, op.Center{Region: region, Cell: c})
}

// RemoveNear clears the cells matching m around a position.
func (s *Session) RemoveNear(ctx context.Context, centre cube.Pos, m mask.Mask, apothem int) (int, error) {
	return s.Apply(ctx, op.RemoveNear{Centre: centre, Match: m, Apothem: apothem})
}

// FillXZ fills the air connected to origin.
func (s *Session) FillXZ(ctx context.Context, origin cube.Pos, c grid.Cell, radius float64, depth int) (int, error) {
	return s.Apply(ctx, op.FillXZ{Origin: origin, Cell: c, Radius: radius, Depth: depth})
}

// Undo reverts the changes logged by history, or by the Session itself if
// history is nil. Outstanding work of the actor that is not itself an undo or
// redo is cancelled first.
func (s *Session) Undo(ctx context.Context, history *Session) (int, error) {
	return s.replay(ctx, history, job.KindUndo, NameUndo)
}

// Redo applies the changes logged by history again, or those of the Session
// itself if history is nil. Redo does not cancel outstanding work.
func (s *Session) Redo(ctx context.Context, history *Session) (int, error) {
	return s.replay(ctx, history, job.KindRedo, NameRedo)
}

func (s *Session) replay(ctx context.Context, history *Session, kind job.Kind, name string) (int, error) {
	if history == nil {
		history = s
	}
	run := func(ctx context.Context, sess *session.Session) int {
		changes := history.Changes()
		if kind == job.KindUndo {
			return sess.Undo(ctx, changes)
		}
		return sess.Redo(ctx, changes)
	}

	s.mu.Lock()
	id := s.placer.NextID(s.conf.Actor)
	var cancel []int
	if kind == job.KindUndo {
		cancel = s.pendingForUndo(id)
	}
	async := s.checkAsyncLocked(name)
	var err error
	if async {
		flag := new(atomic.Bool)
		sess := s.newSession(s.asyncMask, flag, s.placer.Limiter(), false)
		task := job.TaskFunc(func(ctx context.Context) (int, error) {
			n := run(ctx, sess)
			return n, sess.Err()
		})
		err = s.submitLocked(id, kind, name, task, flag)
	}
	s.mu.Unlock()

	// Dropped entries report completion on the calling goroutine, which must
	// not hold the session lock.
	for _, pending := range cancel {
		s.placer.Cancel(s.conf.Actor, pending)
	}
	if async {
		return 0, err
	}
	if err := s.settle(ctx); err != nil {
		return 0, err
	}
	sess := s.newSession(s.Mask(), nil, nil, false)
	n := run(ctx, sess)
	return n, sess.Err()
}

// pendingForUndo returns the ids of the outstanding entries of the actor that
// the undo entry with the id passed cancels. Replays are kept, as are reads
// and mask changes, which do not write to the grid. The entry just below the
// lowest outstanding id is included as well if it is still tracked.
func (s *Session) pendingForUndo(undoID int) []int {
	cancellable := func(e *job.Entry) bool {
		return !e.Kind.Replay() && e.Kind.Mutates()
	}
	var ids []int
	minID := undoID
	for _, e := range s.placer.Jobs(s.conf.Actor) {
		minID = min(minID, e.ID)
		if cancellable(e) {
			ids = append(ids, e.ID)
		}
	}
	minID--
	if minID >= 0 && minID != undoID {
		if e, ok := s.placer.Job(s.conf.Actor, minID); ok && cancellable(e) && !slices.Contains(ids, minID) {
			ids = append(ids, minID)
		}
	}
	return ids
}

// settle blocks until the queued work of the actor has run, so that work done
// on the calling goroutine never overlaps a job of the same actor and sees
// the grid as left by the calls made before it. Calls made on a main
// goroutine, such as from a completion callback or a running job, do not
// wait.
func (s *Session) settle(ctx context.Context) error {
	if sched.IsMain(ctx) {
		return nil
	}
	return s.placer.Wait(ctx, s.conf.Actor)
}
