// Package job describes the units of work queued by edit sessions and tracks
// the work each actor still has outstanding.
package job

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dm-vev/asyncedit/actor"
)

// Kind tells what an Entry does.
type Kind uint8

const (
	// KindBlockWrite writes a single cell.
	KindBlockWrite Kind = iota
	// KindMaskChange replaces the mask applied to queued single cell writes.
	KindMaskChange
	// KindBulk runs a bulk operation inside a cancelable session.
	KindBulk
	// KindRead resolves a read for a caller blocked on its result.
	KindRead
	// KindUndo replays an edit history backwards.
	KindUndo
	// KindRedo replays an edit history forwards.
	KindRedo
)

// String ...
func (k Kind) String() string {
	switch k {
	case KindBlockWrite:
		return "block_write"
	case KindMaskChange:
		return "mask_change"
	case KindBulk:
		return "bulk"
	case KindRead:
		return "read"
	case KindUndo:
		return "undo"
	case KindRedo:
		return "redo"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Replay reports if the Kind replays edit history.
func (k Kind) Replay() bool {
	return k == KindUndo || k == KindRedo
}

// Mutates reports if running an Entry of the Kind writes to the grid.
func (k Kind) Mutates() bool {
	return k != KindMaskChange && k != KindRead
}

// Task is the work carried out when an Entry runs. Run returns the number of
// cells changed.
type Task interface {
	Run(ctx context.Context) (int, error)
}

// TaskFunc adapts a function into a Task.
type TaskFunc func(ctx context.Context) (int, error)

// Run ...
func (f TaskFunc) Run(ctx context.Context) (int, error) {
	return f(ctx)
}

// Dropper is implemented by tasks that must be notified if they are removed
// from the queue without ever running, for example to release a caller
// waiting on their result.
type Dropper interface {
	Drop(err error)
}

// Entry is a single queued unit of work owned by an actor. Entries are
// immutable apart from their cancellation flag.
type Entry struct {
	// ID is the id of the Entry, unique per actor and increasing in the order
	// the entries were created.
	ID int
	// Kind is the kind of work done by the Entry.
	Kind Kind
	// Actor is the owner of the Entry.
	Actor actor.Actor
	// Name is the name of the operation, used in logs and metrics.
	Name string
	// Task is run by the worker that claims the Entry.
	Task Task
	// Created is the time at which the Entry was created.
	Created time.Time

	cancelled *atomic.Bool
}

// New creates an Entry. The cancellation flag passed is shared with the
// session running the task, so that cancelling the Entry stops the session. If
// nil, a new flag is allocated.
func New(id int, kind Kind, a actor.Actor, name string, task Task, cancelled *atomic.Bool) *Entry {
	if cancelled == nil {
		cancelled = new(atomic.Bool)
	}
	return &Entry{
		ID:        id,
		Kind:      kind,
		Actor:     a,
		Name:      name,
		Task:      task,
		Created:   time.Now(),
		cancelled: cancelled,
	}
}

// Cancel sets the cancellation flag of the Entry. It does not wait for the
// task to observe it.
func (e *Entry) Cancel() {
	e.cancelled.Store(true)
}

// Cancelled reports if Cancel was called.
func (e *Entry) Cancelled() bool {
	return e.cancelled.Load()
}

// Drop notifies the task of the Entry that it will never run.
func (e *Entry) Drop(err error) {
	if d, ok := e.Task.(Dropper); ok {
		d.Drop(err)
	}
}

// String ...
func (e *Entry) String() string {
	return fmt.Sprintf("%v#%d(%v %v)", e.Actor, e.ID, e.Kind, e.Name)
}

// Result is the outcome of running an Entry.
type Result struct {
	Entry *Entry
	// Changed is the number of cells changed.
	Changed int
	// Err is the error returned or raised by the task, if any.
	Err error
	// Cancelled is true if the Entry was cancelled, either before or while
	// running.
	Cancelled bool
	// Duration is the time the task spent running.
	Duration time.Duration
}
