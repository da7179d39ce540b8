package edit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dm-vev/asyncedit/cube"
	"github.com/dm-vev/asyncedit/grid"
	"github.com/dm-vev/asyncedit/job"
	"github.com/dm-vev/asyncedit/sched"
)

// GetBlock returns the cell at pos. If the grid refuses direct reads on the
// calling goroutine, the read is queued behind the pending work of the actor
// and GetBlock waits for a worker to perform it.
func (s *Session) GetBlock(ctx context.Context, pos cube.Pos) (grid.Cell, error) {
	c, err := s.conf.Grid.Read(ctx, pos)
	if errors.Is(err, grid.ErrUnsafeRead) {
		return s.QueuedRead(ctx, pos)
	}
	return c, err
}

// Read implements grid.Reader using GetBlock.
func (s *Session) Read(ctx context.Context, pos cube.Pos) (grid.Cell, error) {
	return s.GetBlock(ctx, pos)
}

// GetBlockType returns the type of the cell at pos.
func (s *Session) GetBlockType(ctx context.Context, pos cube.Pos) (uint16, error) {
	c, err := s.GetBlock(ctx, pos)
	return c.Type, err
}

// GetBlockData returns the data of the cell at pos.
func (s *Session) GetBlockData(ctx context.Context, pos cube.Pos) (uint8, error) {
	c, err := s.GetBlock(ctx, pos)
	return c.Data, err
}

// QueuedRead reads the cell at pos on a worker, after the work of the actor
// queued before it. Called from a main goroutine, the read is made inline. If
// no worker performs the read within the read timeout, ErrReadTimeout is
// returned.
func (s *Session) QueuedRead(ctx context.Context, pos cube.Pos) (grid.Cell, error) {
	if sched.IsMain(ctx) {
		return s.conf.Grid.Read(ctx, pos)
	}
	r := &readTask{g: s.conf.Grid, pos: pos, done: make(chan struct{})}

	s.mu.Lock()
	id := s.placer.NextID(s.conf.Actor)
	err := s.submitLocked(id, job.KindRead, "getBlock", r, nil)
	s.mu.Unlock()
	if err != nil {
		return grid.Air, fmt.Errorf("queue read %v: %w", pos, err)
	}

	start := time.Now()
	wait, cancel := context.WithTimeout(ctx, s.conf.ReadTimeout)
	defer cancel()
	select {
	case <-r.done:
		s.placer.Metrics().ObserveReadWait(time.Since(start))
		return r.cell, r.err
	case <-wait.Done():
		s.placer.Cancel(s.conf.Actor, id)
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return grid.Air, ctx.Err()
		}
		s.log.Warn("edit: queued read timed out", "pos", pos, "timeout", s.conf.ReadTimeout)
		return grid.Air, fmt.Errorf("read %v: %w", pos, ErrReadTimeout)
	}
}

// readTask is the task of a queued read. The waiting caller is released once
// the read ran or the entry was dropped.
type readTask struct {
	g    grid.Reader
	pos  cube.Pos
	once sync.Once
	done chan struct{}

	cell grid.Cell
	err  error
}

// Run ...
func (r *readTask) Run(ctx context.Context) (int, error) {
	c, err := r.g.Read(ctx, r.pos)
	r.resolve(c, err)
	return 0, nil
}

// Drop ...
func (r *readTask) Drop(err error) {
	r.resolve(grid.Air, err)
}

func (r *readTask) resolve(c grid.Cell, err error) {
	r.once.Do(func() {
		r.cell, r.err = c, err
		close(r.done)
	})
}
