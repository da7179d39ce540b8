// Package asyncedit wires the edit engine together: a grid, the mutation
// queue and an edit session per actor.
package asyncedit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/dm-vev/asyncedit/actor"
	"github.com/dm-vev/asyncedit/edit"
	"github.com/dm-vev/asyncedit/grid"
	"github.com/dm-vev/asyncedit/job"
	"github.com/dm-vev/asyncedit/placer"
	"github.com/dm-vev/asyncedit/sched"
	"github.com/google/uuid"
)

// Engine owns the mutation queue and hands out the edit sessions of actors.
// An Engine must be closed using Close once it is no longer used.
type Engine struct {
	conf   Config
	log    *slog.Logger
	loop   *sched.Loop
	placer *placer.Placer

	mu       sync.Mutex
	sessions map[uuid.UUID]*edit.Session
	once     sync.Once
}

// New creates an Engine using the fields of conf and starts its workers.
func (conf Config) New() *Engine {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Grid == nil {
		conf.Grid = grid.NewMemory("world")
	}
	e := &Engine{conf: conf, log: conf.Log, sessions: make(map[uuid.UUID]*edit.Session)}
	if conf.Scheduler == nil {
		e.loop = sched.LoopConfig{Log: conf.Log}.New()
		conf.Scheduler = e.loop
	}
	if conf.OnComplete == nil {
		conf.OnComplete = e.logResult
	}
	e.conf = conf
	e.placer = placer.Config{
		Log:             conf.Log,
		Workers:         conf.Workers,
		Scheduler:       conf.Scheduler,
		WritesPerSecond: conf.WritesPerSecond,
		WriteBurst:      conf.WriteBurst,
		OnComplete:      conf.OnComplete,
		Registerer:      conf.Registerer,
	}.New()
	return e
}

// Session returns the edit session of the actor, creating it on first use.
func (e *Engine) Session(a actor.Actor) *edit.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[a.UUID]; ok {
		return s
	}
	conf := edit.Config{
		Actor:       a,
		Grid:        e.conf.Grid,
		Placer:      e.placer,
		Authority:   e.conf.Authority,
		Policy:      e.conf.Policy,
		Log:         e.log,
		ReadTimeout: e.conf.ReadTimeout,
		MaxQueued:   e.conf.MaxQueued,
	}
	if e.conf.Modes != nil {
		conf.Modes = e.conf.Modes
	}
	s := conf.New()
	e.sessions[a.UUID] = s
	return s
}

// Modes returns the store of actor async preferences, or nil if none was
// configured.
func (e *Engine) Modes() *actor.Modes {
	return e.conf.Modes
}

// Grid returns the grid edited.
func (e *Engine) Grid() grid.Grid {
	return e.conf.Grid
}

// Placer returns the mutation queue of the Engine.
func (e *Engine) Placer() *placer.Placer {
	return e.placer
}

// Wait blocks until every actor with a session has no outstanding jobs, or
// until ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	sessions := make([]*edit.Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.mu.Unlock()
	for _, s := range sessions {
		if err := s.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the mutation queue, dropping jobs that have not started, and
// closes the grid if it holds resources.
func (e *Engine) Close() error {
	var err error
	e.once.Do(func() {
		err = e.placer.Close()
		if e.loop != nil {
			err = errors.Join(err, e.loop.Close())
		}
		if c, ok := e.conf.Grid.(io.Closer); ok {
			err = errors.Join(err, c.Close())
		}
	})
	return err
}

func (e *Engine) logResult(res job.Result) {
	switch {
	case res.Err != nil && !res.Cancelled:
		e.log.Error("job failed", "entry", res.Entry.String(), "err", res.Err)
	case res.Cancelled:
		e.log.Debug("job cancelled", "entry", res.Entry.String())
	default:
		e.log.Debug("job completed", "entry", res.Entry.String(), "changed", res.Changed, "duration", res.Duration)
	}
}
