package sched

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dm-vev/asyncedit/internal/guard"
)

// LoopConfig holds the settings of a Loop.
type LoopConfig struct {
	// Log is the Logger that task panics are reported to. If nil, Log is set
	// to slog.Default().
	Log *slog.Logger
	// QueueSize is the number of main tasks that may wait before RunOnMain
	// blocks. Defaults to 256.
	QueueSize int
}

// Loop is a Scheduler that runs main tasks sequentially on a single
// goroutine and async tasks on their own goroutines. A Loop must be closed
// using Close once it is no longer used.
type Loop struct {
	log *slog.Logger

	queue   chan Task
	closing chan struct{}
	o       sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	queueing sync.WaitGroup
	running  sync.WaitGroup
}

// New creates a Loop and starts its main goroutine.
func (conf LoopConfig) New() *Loop {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.QueueSize <= 0 {
		conf.QueueSize = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		log:     conf.Log,
		queue:   make(chan Task, conf.QueueSize),
		closing: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	l.queueing.Add(1)
	go l.handleTasks()
	return l
}

// RunOnMain queues task to run on the main goroutine. Tasks queued after
// Close are dropped.
func (l *Loop) RunOnMain(task Task) {
	if task == nil {
		return
	}
	select {
	case <-l.closing:
		l.log.Debug("sched: dropped main task after close")
	case l.queue <- task:
	}
}

// Exec queues task to run on the main goroutine and returns a channel that is
// closed once it has completed or was dropped.
func (l *Loop) Exec(task Task) <-chan struct{} {
	c := make(chan struct{})
	l.RunOnMain(func(ctx context.Context) {
		defer close(c)
		task(ctx)
	})
	select {
	case <-l.closing:
		// The task may have been dropped, never leave the caller hanging.
		go func() {
			l.queueing.Wait()
			select {
			case <-c:
			default:
				close(c)
			}
		}()
	default:
	}
	return c
}

// RunAsync runs task on a new goroutine. Close waits for all such tasks to
// return.
func (l *Loop) RunAsync(task Task) {
	if task == nil {
		return
	}
	l.running.Add(1)
	go func() {
		defer l.running.Done()
		l.run(l.ctx, task)
	}()
}

// Close stops the main goroutine after running the tasks still queued,
// cancels the context passed to async tasks and waits for them to return.
func (l *Loop) Close() error {
	l.o.Do(func() {
		l.cancel()
		close(l.closing)
		l.queueing.Wait()
		l.running.Wait()
	})
	return nil
}

// handleTasks continuously reads tasks from the queue and runs them.
func (l *Loop) handleTasks() {
	defer l.queueing.Done()
	ctx := WithMain(l.ctx)
	for {
		select {
		case task := <-l.queue:
			l.run(ctx, task)
		case <-l.closing:
			l.drain(ctx)
			return
		}
	}
}

// drain runs the tasks left in the queue when the Loop is closed.
func (l *Loop) drain(ctx context.Context) {
	for {
		select {
		case task := <-l.queue:
			l.run(ctx, task)
		default:
			return
		}
	}
}

func (l *Loop) run(ctx context.Context, task Task) {
	if err := guard.Run(func() error {
		task(ctx)
		return nil
	}); err != nil {
		l.log.Error("sched: task panicked", "err", err)
	}
}

// Goroutines is a Scheduler without a main loop: main tasks run inline on the
// calling goroutine and async tasks on new goroutines.
type Goroutines struct{}

// RunAsync ...
func (Goroutines) RunAsync(task Task) {
	go task(context.Background())
}

// RunOnMain ...
func (Goroutines) RunOnMain(task Task) {
	task(WithMain(context.Background()))
}

var (
	_ Scheduler = (*Loop)(nil)
	_ Scheduler = Goroutines{}
)
