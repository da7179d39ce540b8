// Package sched provides the host scheduling primitives used by the edit
// engine: a single main goroutine that runs tasks one at a time, and
// background goroutines for long running work.
package sched

import "context"

// Task is a unit of work handed to a Scheduler. The context passed is
// cancelled when the Scheduler shuts down.
type Task func(ctx context.Context)

// Scheduler runs tasks either in the background or on the main goroutine.
type Scheduler interface {
	// RunAsync runs the task on a background goroutine.
	RunAsync(task Task)
	// RunOnMain queues the task to be run on the main goroutine.
	RunOnMain(task Task)
}

type mainKey struct{}

// WithMain marks ctx as belonging to a goroutine that owns grid mutation,
// such as the main loop or a placer worker. Reads issued with such a context
// never need to be queued.
func WithMain(ctx context.Context) context.Context {
	return context.WithValue(ctx, mainKey{}, true)
}

// IsMain reports if ctx was marked by WithMain.
func IsMain(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(mainKey{}).(bool)
	return v
}
