package edit

import (
	"context"
	"sync/atomic"

	"github.com/dm-vev/asyncedit/cube"
	"github.com/dm-vev/asyncedit/grid"
	"github.com/dm-vev/asyncedit/job"
	"github.com/dm-vev/asyncedit/mask"
	"golang.org/x/time/rate"
)

type bufferedWrite struct {
	pos  cube.Pos
	cell grid.Cell
}

// RawSetBlock writes a single cell. A write denied by the authority returns
// false without queueing anything. A queued write returns true once it is
// queued.
func (s *Session) RawSetBlock(ctx context.Context, pos cube.Pos, c grid.Cell) bool {
	return s.setCells(ctx, []bufferedWrite{{pos: pos, cell: c}})
}

// DoRawSetBlock writes a single cell on the calling goroutine, applying the
// current mask and recording the change. It does not wait for queued work.
func (s *Session) DoRawSetBlock(ctx context.Context, pos cube.Pos, c grid.Cell) bool {
	return s.writeCells(ctx, []bufferedWrite{{pos: pos, cell: c}}, nil, nil) > 0
}

// setCells writes the cells the authority allows, either right away or as a
// single queued entry. It reports if any cell was written or queued.
func (s *Session) setCells(ctx context.Context, writes []bufferedWrite) bool {
	world := s.conf.Grid.Name()
	allowed := make([]bufferedWrite, 0, len(writes))
	for _, w := range writes {
		if !s.conf.Authority.CanWrite(s.conf.Actor, world, w.pos) {
			s.log.Debug("edit: write rejected", "pos", w.pos, "err", ErrPermissionDenied)
			continue
		}
		allowed = append(allowed, w)
	}
	if len(allowed) == 0 {
		return false
	}
	if !s.CheckAsync(NameSetBlock) {
		if err := s.settle(ctx); err != nil {
			s.log.Warn("edit: write abandoned", "cells", len(allowed), "err", err)
			return false
		}
		return s.writeCells(ctx, allowed, nil, nil) > 0
	}
	flag := new(atomic.Bool)
	limiter := s.placer.Limiter()
	task := job.TaskFunc(func(ctx context.Context) (int, error) {
		return s.writeCells(ctx, allowed, flag, limiter), nil
	})
	return s.submit(job.KindBlockWrite, NameSetBlock, task, flag) == nil
}

// writeCells writes cells in order through a session using the mask applied
// at the time of the call. It stops once the session is cancelled.
func (s *Session) writeCells(ctx context.Context, writes []bufferedWrite, cancelled *atomic.Bool, limiter *rate.Limiter) int {
	sess := s.newSession(s.Mask(), cancelled, limiter, true)
	for _, w := range writes {
		if sess.Cancelled() {
			break
		}
		sess.Write(ctx, w.pos, w.cell)
	}
	return sess.Changed()
}

// SetBlock writes a single cell. If queueing is enabled the write is buffered
// until FlushQueue, or until more than the maximum number of writes are
// buffered, in which case the buffer is flushed right away.
func (s *Session) SetBlock(ctx context.Context, pos cube.Pos, c grid.Cell) bool {
	s.mu.Lock()
	if !s.queueEnabled {
		s.mu.Unlock()
		return s.RawSetBlock(ctx, pos, c)
	}
	s.buffer = append(s.buffer, bufferedWrite{pos: pos, cell: c})
	s.queued++
	full := s.queued > s.conf.MaxQueued
	s.mu.Unlock()

	if full {
		s.flush(ctx)
	}
	return true
}

// EnableQueue starts buffering writes made through SetBlock.
func (s *Session) EnableQueue() {
	s.mu.Lock()
	s.queueEnabled = true
	s.mu.Unlock()
}

// DisableQueue flushes the buffer and stops buffering writes.
func (s *Session) DisableQueue(ctx context.Context) {
	s.mu.Lock()
	s.queueEnabled = false
	s.mu.Unlock()
	s.FlushQueue(ctx)
}

// QueuedWrites returns the number of writes buffered since the last flush.
func (s *Session) QueuedWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queued
}

// FlushQueue writes the buffered cells and re-enables async execution if a
// previous call disabled it.
func (s *Session) FlushQueue(ctx context.Context) {
	s.mu.Lock()
	s.asyncDisabled = false
	s.mu.Unlock()
	s.flush(ctx)
}

func (s *Session) flush(ctx context.Context) {
	s.mu.Lock()
	buffer := s.buffer
	s.buffer, s.queued = nil, 0
	s.mu.Unlock()

	if len(buffer) > 0 {
		s.setCells(ctx, buffer)
	}
}

// SetMask changes the mask applied to writes. Operations queued from now on
// use the new mask right away. Single cell writes already queued still run
// with the mask that was set when they were queued.
func (s *Session) SetMask(m mask.Mask) {
	s.mu.Lock()
	s.asyncMask = m
	// A mask change made while work is outstanding is still queued, so that
	// writes queued before it keep the mask they were made with.
	if !s.checkAsyncLocked(NameSetMask) && s.placer.Idle(s.conf.Actor) {
		s.mask = m
		s.mu.Unlock()
		return
	}
	task := job.TaskFunc(func(context.Context) (int, error) {
		s.doSetMask(m)
		return 0, nil
	})
	err := s.submitLocked(s.placer.NextID(s.conf.Actor), job.KindMaskChange, NameSetMask, task, nil)
	if err != nil {
		s.mask = m
	}
	s.mu.Unlock()
}

func (s *Session) doSetMask(m mask.Mask) {
	s.mu.Lock()
	s.mask = m
	s.mu.Unlock()
}

// Mask returns the mask currently applied to single cell writes.
func (s *Session) Mask() mask.Mask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mask
}

// AsyncMask returns the mask queued operations are created with.
func (s *Session) AsyncMask() mask.Mask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asyncMask
}
