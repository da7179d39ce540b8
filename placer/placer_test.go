package placer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dm-vev/asyncedit/actor"
	"github.com/dm-vev/asyncedit/internal/guard"
	"github.com/dm-vev/asyncedit/job"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var (
	steve = actor.Named("Steve")
	alex  = actor.Named("Alex")
)

func newPlacer(t *testing.T, conf Config) *Placer {
	t.Helper()
	p := conf.New()
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func submit(t *testing.T, p *Placer, a actor.Actor, kind job.Kind, task job.TaskFunc) *job.Entry {
	t.Helper()
	e := job.New(p.NextID(a), kind, a, "test", task, nil)
	if err := p.Submit(e); err != nil {
		t.Fatalf("submit %v: %v", e, err)
	}
	return e
}

func wait(t *testing.T, p *Placer, a actor.Actor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Wait(ctx, a); err != nil {
		t.Fatalf("wait for %v: %v", a, err)
	}
}

type dropTask struct {
	ran     atomic.Bool
	dropped chan error
}

func (d *dropTask) Run(context.Context) (int, error) {
	d.ran.Store(true)
	return 0, nil
}

func (d *dropTask) Drop(err error) {
	d.dropped <- err
}

func TestEntriesOfAnActorRunInOrder(t *testing.T) {
	p := newPlacer(t, Config{Workers: 4})

	var mu sync.Mutex
	var order []int
	var running, overlap atomic.Int32
	for i := 0; i < 50; i++ {
		submit(t, p, steve, job.KindBulk, func(context.Context) (int, error) {
			if running.Add(1) > 1 {
				overlap.Store(1)
			}
			defer running.Add(-1)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return 1, nil
		})
	}
	wait(t, p, steve)

	if overlap.Load() != 0 {
		t.Fatalf("expected at most one running entry per actor")
	}
	if len(order) != 50 {
		t.Fatalf("expected 50 entries to run, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("expected entry %d at position %d, got %d", i, i, v)
		}
	}
	if !p.Idle(steve) || len(p.Jobs(steve)) != 0 {
		t.Fatalf("expected steve to have no outstanding entries")
	}
}

func TestActorsRunConcurrently(t *testing.T) {
	p := newPlacer(t, Config{Workers: 2})
	release := make(chan struct{})
	submit(t, p, steve, job.KindBulk, func(context.Context) (int, error) {
		select {
		case <-release:
			return 0, nil
		case <-time.After(5 * time.Second):
			return 0, errors.New("alex never ran")
		}
	})
	submit(t, p, alex, job.KindBulk, func(context.Context) (int, error) {
		close(release)
		return 0, nil
	})
	wait(t, p, alex)
	wait(t, p, steve)
}

func TestCancelQueuedEntryNeverRuns(t *testing.T) {
	p := newPlacer(t, Config{Workers: 1})
	release := make(chan struct{})
	submit(t, p, steve, job.KindBulk, func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	task := &dropTask{dropped: make(chan error, 1)}
	e := job.New(p.NextID(steve), job.KindBulk, steve, "queued", task, nil)
	if err := p.Submit(e); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if !p.Cancel(steve, e.ID) {
		t.Fatalf("expected queued entry to be cancelled")
	}
	if _, ok := p.Job(steve, e.ID); ok {
		t.Fatalf("expected cancelled entry to be unregistered")
	}
	close(release)
	wait(t, p, steve)

	if task.ran.Load() {
		t.Fatalf("expected cancelled entry not to run")
	}
	select {
	case <-task.dropped:
	default:
		t.Fatalf("expected cancelled entry to be dropped")
	}
	if p.Cancel(steve, e.ID) {
		t.Fatalf("expected cancelling a finished entry to report false")
	}
}

func TestCancelRunningEntrySetsFlag(t *testing.T) {
	started := make(chan struct{})
	var results []job.Result
	var mu sync.Mutex
	p := newPlacer(t, Config{Workers: 1, OnComplete: func(res job.Result) {
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	}})

	flag := new(atomic.Bool)
	e := job.New(p.NextID(steve), job.KindBulk, steve, "loop", job.TaskFunc(func(context.Context) (int, error) {
		close(started)
		n := 0
		for !flag.Load() {
			n++
			time.Sleep(time.Millisecond)
		}
		return n, nil
	}), flag)
	if err := p.Submit(e); err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-started
	if !p.Cancel(steve, e.ID) {
		t.Fatalf("expected running entry to be cancelled")
	}
	wait(t, p, steve)

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 1 || !results[0].Cancelled {
		t.Fatalf("expected one cancelled result, got %+v", results)
	}
}

func TestEntryCancelledWhileQueuedIsSkipped(t *testing.T) {
	p := newPlacer(t, Config{Workers: 1})
	release := make(chan struct{})
	submit(t, p, steve, job.KindBulk, func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	var ran atomic.Bool
	e := submit(t, p, steve, job.KindBulk, func(context.Context) (int, error) {
		ran.Store(true)
		return 0, nil
	})
	e.Cancel()
	close(release)
	wait(t, p, steve)
	if ran.Load() {
		t.Fatalf("expected entry cancelled before it started not to run")
	}
}

func TestPanickingEntryDoesNotStopWorker(t *testing.T) {
	var mu sync.Mutex
	var errs []error
	p := newPlacer(t, Config{Workers: 1, OnComplete: func(res job.Result) {
		mu.Lock()
		errs = append(errs, res.Err)
		mu.Unlock()
	}})
	submit(t, p, steve, job.KindBulk, func(context.Context) (int, error) {
		panic("boom")
	})
	var ran atomic.Bool
	submit(t, p, steve, job.KindBulk, func(context.Context) (int, error) {
		ran.Store(true)
		return 1, nil
	})
	wait(t, p, steve)

	if !ran.Load() {
		t.Fatalf("expected entry after the panic to run")
	}
	mu.Lock()
	defer mu.Unlock()
	var pe *guard.PanicError
	if len(errs) != 2 || !errors.As(errs[0], &pe) || errs[1] != nil {
		t.Fatalf("expected a panic error then success, got %v", errs)
	}
}

func TestSubmitAfterCloseDropsEntry(t *testing.T) {
	p := Config{Workers: 1}.New()
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	task := &dropTask{dropped: make(chan error, 1)}
	err := p.Submit(job.New(p.NextID(steve), job.KindRead, steve, "read", task, nil))
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if got := <-task.dropped; !errors.Is(got, ErrClosed) {
		t.Fatalf("expected drop with ErrClosed, got %v", got)
	}
}

func TestCloseDropsPendingEntries(t *testing.T) {
	p := Config{Workers: 1}.New()
	started := make(chan struct{})
	flag := new(atomic.Bool)
	first := job.New(p.NextID(steve), job.KindBulk, steve, "first", job.TaskFunc(func(context.Context) (int, error) {
		close(started)
		for !flag.Load() {
			time.Sleep(time.Millisecond)
		}
		return 0, nil
	}), flag)
	if err := p.Submit(first); err != nil {
		t.Fatalf("submit: %v", err)
	}
	task := &dropTask{dropped: make(chan error, 1)}
	if err := p.Submit(job.New(p.NextID(steve), job.KindBulk, steve, "second", task, nil)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-started
	_ = p.Close()

	if task.ran.Load() {
		t.Fatalf("expected pending entry not to run after close")
	}
	if got := <-task.dropped; !errors.Is(got, ErrClosed) {
		t.Fatalf("expected drop with ErrClosed, got %v", got)
	}
}

func TestMetricsCountEntries(t *testing.T) {
	p := newPlacer(t, Config{Workers: 2})
	for i := 0; i < 3; i++ {
		submit(t, p, steve, job.KindBlockWrite, func(context.Context) (int, error) { return 2, nil })
	}
	wait(t, p, steve)

	m := p.Metrics()
	if got := testutil.ToFloat64(m.Submitted.WithLabelValues("block_write")); got != 3 {
		t.Fatalf("expected 3 submitted, got %v", got)
	}
	if got := testutil.ToFloat64(m.Completed.WithLabelValues("block_write", "ok")); got != 3 {
		t.Fatalf("expected 3 completed, got %v", got)
	}
	if got := testutil.ToFloat64(m.Changed.WithLabelValues("block_write")); got != 6 {
		t.Fatalf("expected 6 cells changed, got %v", got)
	}
	if got := testutil.ToFloat64(m.Queued); got != 0 {
		t.Fatalf("expected empty queue gauge, got %v", got)
	}
}

func TestLimiterOnlyWhenThrottled(t *testing.T) {
	if newPlacer(t, Config{}).Limiter() != nil {
		t.Fatalf("expected no limiter without a write rate")
	}
	l := newPlacer(t, Config{WritesPerSecond: 2.5}).Limiter()
	if l == nil || l.Burst() != 3 {
		t.Fatalf("expected limiter with burst 3, got %v", l)
	}
}
