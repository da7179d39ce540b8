// Package placer implements the mutation queue: a pool of workers that runs
// the queued entries of every actor in order, one entry per actor at a time,
// while the entries of different actors run concurrently.
package placer

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dm-vev/asyncedit/actor"
	"github.com/dm-vev/asyncedit/internal/guard"
	"github.com/dm-vev/asyncedit/job"
	"github.com/dm-vev/asyncedit/sched"
	"github.com/dm-vev/asyncedit/session"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ErrClosed is returned when submitting to a Placer that was closed.
var ErrClosed = errors.New("placer: closed")

// Placer queues entries per actor and runs them on a fixed set of workers. A
// Placer must be closed using Close once it is no longer used.
type Placer struct {
	conf     Config
	log      *slog.Logger
	registry *job.Registry
	limiter  *rate.Limiter
	metrics  *Metrics

	mu     sync.Mutex
	cond   *sync.Cond
	queues map[uuid.UUID]*actorQueue
	// ready holds actors with a backlog and no running entry. An actor may
	// appear more than once; stale items are skipped by next.
	ready  []uuid.UUID
	closed bool

	workers sync.WaitGroup
}

type actorQueue struct {
	backlog []*job.Entry
	running *job.Entry
	// drained is closed once the actor has no entries left. It is created
	// lazily by Wait.
	drained chan struct{}
}

// New creates a Placer and starts its workers through the Scheduler.
func (conf Config) New() *Placer {
	conf = conf.withDefaults()
	p := &Placer{
		conf:     conf,
		log:      conf.Log,
		registry: conf.Registry,
		limiter:  conf.limiter(),
		metrics:  newMetrics(conf.Registerer),
		queues:   make(map[uuid.UUID]*actorQueue),
	}
	p.cond = sync.NewCond(&p.mu)
	p.workers.Add(conf.Workers)
	for range conf.Workers {
		conf.Scheduler.RunAsync(p.work)
	}
	return p
}

// Submit registers the entry and queues it behind the other entries of its
// actor. Submit never blocks on the entries running. If the Placer is closed,
// the entry is dropped and ErrClosed is returned.
func (p *Placer) Submit(e *job.Entry) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.log.Warn("placer: rejected entry after close", "entry", e.String())
		e.Drop(ErrClosed)
		return ErrClosed
	}
	if err := p.registry.Register(e); err != nil {
		p.mu.Unlock()
		return err
	}
	q, ok := p.queues[e.Actor.UUID]
	if !ok {
		q = &actorQueue{}
		p.queues[e.Actor.UUID] = q
	}
	q.backlog = append(q.backlog, e)
	if q.running == nil && len(q.backlog) == 1 {
		p.ready = append(p.ready, e.Actor.UUID)
		p.cond.Signal()
	}
	p.mu.Unlock()

	p.metrics.Submitted.WithLabelValues(e.Kind.String()).Inc()
	p.metrics.Queued.Inc()
	return nil
}

// Cancel cancels the outstanding entry of the actor with the id passed. A
// running entry has its flag set and stops at its next write; a queued entry
// is removed and never runs. Cancel returns false if no such entry is
// outstanding.
func (p *Placer) Cancel(a actor.Actor, id int) bool {
	p.mu.Lock()
	e, ok := p.registry.Lookup(a, id)
	if !ok {
		p.mu.Unlock()
		return false
	}
	e.Cancel()
	q := p.queues[a.UUID]
	if q == nil || q.running == e {
		p.mu.Unlock()
		return true
	}
	i := slices.Index(q.backlog, e)
	if i < 0 {
		p.mu.Unlock()
		return true
	}
	q.backlog = slices.Delete(q.backlog, i, i+1)
	p.registry.Remove(e)
	p.releaseLocked(a.UUID, q)
	p.mu.Unlock()

	p.metrics.Queued.Dec()
	p.dropped(e, session.ErrCancelled)
	return true
}

// Idle reports if the actor has no queued or running entries.
func (p *Placer) Idle(a actor.Actor) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.queues[a.UUID]
	return !ok
}

// Wait blocks until the actor has no queued or running entries, or until ctx
// is done.
func (p *Placer) Wait(ctx context.Context, a actor.Actor) error {
	p.mu.Lock()
	q, ok := p.queues[a.UUID]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	if q.drained == nil {
		q.drained = make(chan struct{})
	}
	drained := q.drained
	p.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextID returns a new entry id for the actor.
func (p *Placer) NextID(a actor.Actor) int {
	return p.registry.NextID(a)
}

// Job returns the outstanding entry of the actor with the id passed.
func (p *Placer) Job(a actor.Actor, id int) (*job.Entry, bool) {
	return p.registry.Lookup(a, id)
}

// Jobs returns the outstanding entries of the actor ordered by id.
func (p *Placer) Jobs(a actor.Actor) []*job.Entry {
	return p.registry.List(a)
}

// Registry returns the Registry tracking outstanding entries.
func (p *Placer) Registry() *job.Registry {
	return p.registry
}

// Limiter returns the limiter that writes of queued jobs should wait on, or
// nil if writes are not throttled.
func (p *Placer) Limiter() *rate.Limiter {
	return p.limiter
}

// Metrics returns the metrics of the Placer.
func (p *Placer) Metrics() *Metrics {
	return p.metrics
}

// Close stops accepting entries, drops every entry that has not started yet,
// cancels the running ones and waits for the workers to return.
func (p *Placer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	var pending []*job.Entry
	for id, q := range p.queues {
		pending = append(pending, q.backlog...)
		for _, e := range q.backlog {
			p.registry.Remove(e)
		}
		q.backlog = nil
		if q.running != nil {
			q.running.Cancel()
		}
		p.releaseLocked(id, q)
	}
	p.ready = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	for _, e := range pending {
		p.metrics.Queued.Dec()
		p.dropped(e, ErrClosed)
	}
	p.workers.Wait()
	return nil
}

// work is the loop run by every worker. The context is marked as main as
// workers are the goroutines that own grid mutation.
func (p *Placer) work(ctx context.Context) {
	defer p.workers.Done()
	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	ctx = sched.WithMain(ctx)
	for {
		e, ok := p.next(ctx)
		if !ok {
			return
		}
		res := p.run(ctx, e)
		p.finish(e, res)
	}
}

// next blocks until an entry may run and claims it. It returns false once the
// Placer is closed or ctx is done.
func (p *Placer) next(ctx context.Context) (*job.Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		for len(p.ready) == 0 && !p.closed && ctx.Err() == nil {
			p.cond.Wait()
		}
		if p.closed || ctx.Err() != nil {
			return nil, false
		}
		id := p.ready[0]
		p.ready = p.ready[1:]
		q, ok := p.queues[id]
		if !ok || q.running != nil || len(q.backlog) == 0 {
			continue
		}
		e := q.backlog[0]
		q.backlog = q.backlog[1:]
		q.running = e
		return e, true
	}
}

func (p *Placer) run(ctx context.Context, e *job.Entry) job.Result {
	p.metrics.Queued.Dec()
	res := job.Result{Entry: e}
	if e.Cancelled() {
		e.Drop(session.ErrCancelled)
		res.Cancelled = true
		return res
	}
	p.metrics.Running.Inc()
	defer p.metrics.Running.Dec()

	start := time.Now()
	n, err := guard.Value(func() (int, error) {
		return e.Task.Run(ctx)
	})
	res.Duration = time.Since(start)
	res.Changed = n
	res.Cancelled = e.Cancelled() || errors.Is(err, session.ErrCancelled)
	if err != nil && !errors.Is(err, session.ErrCancelled) {
		p.log.Error("placer: job failed", "entry", e.String(), "err", err)
		res.Err = err
		res.Changed = 0
	}
	return res
}

// finish reports the result of the entry passed and releases its actor.
func (p *Placer) finish(e *job.Entry, res job.Result) {
	kind := e.Kind.String()
	outcome := "ok"
	switch {
	case res.Err != nil:
		outcome = "error"
	case res.Cancelled:
		outcome = "cancelled"
	}
	p.metrics.Completed.WithLabelValues(kind, outcome).Inc()
	p.metrics.Changed.WithLabelValues(kind).Add(float64(res.Changed))
	if res.Duration > 0 {
		p.metrics.Duration.WithLabelValues(kind).Observe(res.Duration.Seconds())
	}
	p.complete(res)

	p.mu.Lock()
	p.registry.Remove(e)
	if q, ok := p.queues[e.Actor.UUID]; ok {
		q.running = nil
		p.releaseLocked(e.Actor.UUID, q)
	}
	p.mu.Unlock()
}

// releaseLocked schedules the actor if it has a backlog and nothing running,
// or forgets it if it has no entries left.
func (p *Placer) releaseLocked(id uuid.UUID, q *actorQueue) {
	if q.running != nil {
		return
	}
	if len(q.backlog) > 0 {
		p.ready = append(p.ready, id)
		p.cond.Signal()
		return
	}
	if q.drained != nil {
		close(q.drained)
	}
	delete(p.queues, id)
}

func (p *Placer) dropped(e *job.Entry, err error) {
	e.Drop(err)
	p.metrics.Completed.WithLabelValues(e.Kind.String(), "dropped").Inc()
	p.complete(job.Result{Entry: e, Cancelled: true, Err: err})
}

func (p *Placer) complete(res job.Result) {
	if p.conf.OnComplete == nil {
		return
	}
	p.conf.Scheduler.RunOnMain(func(context.Context) {
		p.conf.OnComplete(res)
	})
}
