// Package edit implements the per-actor edit session. A Session decides for
// every call whether it runs synchronously on the calling goroutine or is
// turned into an entry on the mutation queue, and keeps the mode, masks and
// change log of its actor.
package edit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dm-vev/asyncedit/actor"
	"github.com/dm-vev/asyncedit/grid"
	"github.com/dm-vev/asyncedit/job"
	"github.com/dm-vev/asyncedit/mask"
	"github.com/dm-vev/asyncedit/permission"
	"github.com/dm-vev/asyncedit/placer"
	"github.com/dm-vev/asyncedit/session"
)

var (
	// ErrPermissionDenied is logged for writes rejected by the authority.
	// Callers see such writes reported as false.
	ErrPermissionDenied = errors.New("edit: permission denied")
	// ErrReadTimeout is returned by reads that waited on the queue for
	// longer than the read timeout.
	ErrReadTimeout = errors.New("edit: queued read timed out")
)

// MaxQueued is the default number of buffered writes after which the buffer
// is flushed.
const MaxQueued = 10000

// Mode is the async mode of a Session.
type Mode uint8

const (
	// ModeAuto runs calls asynchronously if the policy and the preference of
	// the actor permit it.
	ModeAuto Mode = iota
	// ModeAlwaysSync runs every call on the calling goroutine.
	ModeAlwaysSync
	// ModeAlwaysAsync queues every call.
	ModeAlwaysAsync
)

// String ...
func (m Mode) String() string {
	switch m {
	case ModeAlwaysSync:
		return "sync"
	case ModeAlwaysAsync:
		return "async"
	}
	return "auto"
}

// Config holds the collaborators and settings of a Session.
type Config struct {
	// Actor is the owner of the Session.
	Actor actor.Actor
	// Grid is the grid edited. It must not be nil.
	Grid grid.Grid
	// Placer is the mutation queue async calls are submitted to. It must not
	// be nil.
	Placer *placer.Placer
	// Authority approves and logs writes. If nil, every write is allowed.
	Authority permission.Authority
	// Policy decides which operations may run asynchronously. If nil, all of
	// them may.
	Policy Policy
	// Modes holds the async preference of actors. If nil, every actor prefers
	// async edits.
	Modes ModeStore
	// Log is the Logger used by the Session. If nil, slog.Default() is used.
	Log *slog.Logger
	// ReadTimeout bounds the time a read waits on the queue. Defaults to 30
	// seconds.
	ReadTimeout time.Duration
	// MaxQueued is the number of buffered writes after which the buffer is
	// flushed. Defaults to MaxQueued.
	MaxQueued int
	// Mode is the initial mode of the Session.
	Mode Mode
}

// Session is the edit session of one actor. Its methods may be called from
// any goroutine, but the ordering of queued work follows the order of calls,
// so an actor is expected to issue calls from one goroutine.
type Session struct {
	conf    Config
	log     *slog.Logger
	placer  *placer.Placer
	changes *session.ChangeSet

	mu            sync.Mutex
	mode          Mode
	asyncDisabled bool
	// mask is the mask applied to single cell writes and synchronous
	// operations. Queued mask changes update it once they run.
	mask mask.Mask
	// asyncMask is the mask captured by operations when they are queued.
	asyncMask mask.Mask

	queueEnabled bool
	queued       int
	buffer       []bufferedWrite
}

// New creates a Session using the Config.
func (conf Config) New() *Session {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Authority == nil {
		conf.Authority = permission.AllowAll{}
	}
	if conf.Policy == nil {
		conf.Policy = AsyncPolicy{}
	}
	if conf.ReadTimeout <= 0 {
		conf.ReadTimeout = 30 * time.Second
	}
	if conf.MaxQueued <= 0 {
		conf.MaxQueued = MaxQueued
	}
	return &Session{
		conf:    conf,
		log:     conf.Log.With("actor", conf.Actor.Name),
		placer:  conf.Placer,
		changes: &session.ChangeSet{},
		mode:    conf.Mode,
	}
}

// Actor returns the owner of the Session.
func (s *Session) Actor() actor.Actor {
	return s.conf.Actor
}

// Grid returns the grid edited by the Session.
func (s *Session) Grid() grid.Grid {
	return s.conf.Grid
}

// Mode returns the current mode of the Session.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode changes the mode of the Session.
func (s *Session) SetMode(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// SetAsyncForced forces every call to be queued, or restores ModeAuto.
func (s *Session) SetAsyncForced(forced bool) {
	if forced {
		s.SetMode(ModeAlwaysAsync)
		return
	}
	s.SetMode(ModeAuto)
}

// CheckAsync reports if the operation named should be queued. Async is
// disabled for the calls that follow a call that ran synchronously, until the
// next FlushQueue.
func (s *Session) CheckAsync(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkAsyncLocked(name)
}

func (s *Session) checkAsyncLocked(name string) bool {
	async := s.mode == ModeAlwaysAsync ||
		(s.mode != ModeAlwaysSync && s.conf.Policy.AsyncAllowed(name) && s.preference() && !s.asyncDisabled)
	s.asyncDisabled = !async
	return async
}

func (s *Session) preference() bool {
	if s.conf.Modes == nil {
		return true
	}
	return s.conf.Modes.AsyncPreference(s.conf.Actor)
}

// Changes returns the writes applied by the Session so far, in order.
func (s *Session) Changes() []session.Change {
	return s.changes.Snapshot()
}

// Size returns the number of writes applied by the Session. While jobs of the
// actor are outstanding it is at least 1.
func (s *Session) Size() int {
	n := s.changes.Len()
	if n == 0 && !s.placer.Idle(s.conf.Actor) {
		return 1
	}
	return n
}

// Jobs returns the outstanding entries of the actor.
func (s *Session) Jobs() []*job.Entry {
	return s.placer.Jobs(s.conf.Actor)
}

// Cancel cancels the outstanding entry of the actor with the id passed.
func (s *Session) Cancel(id int) bool {
	return s.placer.Cancel(s.conf.Actor, id)
}

// Wait blocks until every entry of the actor has run or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	return s.placer.Wait(ctx, s.conf.Actor)
}

// submit queues a new entry of the actor. Allocating the id and submitting
// happen under the lock so that ids reach the queue in increasing order.
func (s *Session) submit(kind job.Kind, name string, task job.Task, cancelled *atomic.Bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked(s.placer.NextID(s.conf.Actor), kind, name, task, cancelled)
}

func (s *Session) submitLocked(id int, kind job.Kind, name string, task job.Task, cancelled *atomic.Bool) error {
	e := job.New(id, kind, s.conf.Actor, name, task, cancelled)
	if err := s.placer.Submit(e); err != nil {
		s.log.Warn("edit: could not queue job", "entry", e.String(), "err", err)
		return err
	}
	return nil
}
