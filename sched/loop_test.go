package sched

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLoopRunsMainTasksInOrder(t *testing.T) {
	l := LoopConfig{}.New()
	t.Cleanup(func() { _ = l.Close() })

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 0; i < 10; i++ {
		l.RunOnMain(func(ctx context.Context) {
			if !IsMain(ctx) {
				t.Errorf("expected main task context to be marked")
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	<-l.Exec(func(context.Context) {})

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 10 {
		t.Fatalf("expected 10 tasks to run, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("expected task %d at index %d, got %d", i, i, v)
		}
	}
}

func TestLoopSurvivesPanickingTask(t *testing.T) {
	l := LoopConfig{}.New()
	t.Cleanup(func() { _ = l.Close() })

	l.RunOnMain(func(context.Context) { panic("boom") })
	select {
	case <-l.Exec(func(context.Context) {}):
	case <-time.After(time.Second):
		t.Fatalf("expected loop to keep running after a panic")
	}
}

func TestLoopCloseCancelsAsyncTasks(t *testing.T) {
	l := LoopConfig{}.New()
	started := make(chan struct{})
	l.RunAsync(func(ctx context.Context) {
		if IsMain(ctx) {
			t.Errorf("expected async task context not to be marked main")
		}
		close(started)
		<-ctx.Done()
	})
	<-started

	done := make(chan struct{})
	go func() {
		_ = l.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Close to return once async tasks observe cancellation")
	}
}

func TestIsMainOnPlainContext(t *testing.T) {
	if IsMain(context.Background()) {
		t.Fatalf("expected background context not to be main")
	}
	if !IsMain(WithMain(context.Background())) {
		t.Fatalf("expected marked context to be main")
	}
}
