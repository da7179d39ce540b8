package job

import (
	"errors"
	"sync"
	"testing"

	"github.com/dm-vev/asyncedit/actor"
)

func TestRegistryIDsIncreasePerActor(t *testing.T) {
	r := NewRegistry()
	steve, alex := actor.Named("Steve"), actor.Named("Alex")

	for want := 0; want < 5; want++ {
		if got := r.NextID(steve); got != want {
			t.Fatalf("expected Steve's id %d, got %d", want, got)
		}
	}
	if got := r.NextID(alex); got != 0 {
		t.Fatalf("expected ids to be actor local, got %d for Alex", got)
	}
}

func TestRegistryIDsNotReusedAfterRemoval(t *testing.T) {
	r := NewRegistry()
	steve := actor.Named("Steve")
	e := New(r.NextID(steve), KindBulk, steve, "setBlocks", nil, nil)
	if err := r.Register(e); err != nil {
		t.Fatalf("expected register to succeed, got %v", err)
	}
	if !r.Remove(e) {
		t.Fatalf("expected remove to succeed")
	}
	if got := r.NextID(steve); got != 1 {
		t.Fatalf("expected id 1 after removing id 0, got %d", got)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	steve := actor.Named("Steve")
	if err := r.Register(New(3, KindBulk, steve, "a", nil, nil)); err != nil {
		t.Fatalf("expected register to succeed, got %v", err)
	}
	if err := r.Register(New(3, KindBulk, steve, "b", nil, nil)); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if got := r.NextID(steve); got != 4 {
		t.Fatalf("expected registering id 3 to advance the next id to 4, got %d", got)
	}
}

func TestRegistryListOrderedAndScoped(t *testing.T) {
	r := NewRegistry()
	steve, alex := actor.Named("Steve"), actor.Named("Alex")
	for _, id := range []int{5, 1, 3} {
		_ = r.Register(New(id, KindBlockWrite, steve, "set", nil, nil))
	}
	_ = r.Register(New(2, KindBlockWrite, alex, "set", nil, nil))

	list := r.List(steve)
	if len(list) != 3 {
		t.Fatalf("expected 3 entries for Steve, got %d", len(list))
	}
	for i, want := range []int{1, 3, 5} {
		if list[i].ID != want {
			t.Fatalf("expected id %d at index %d, got %d", want, i, list[i].ID)
		}
	}
	if e, ok := r.Lookup(alex, 2); !ok || e.Actor != alex {
		t.Fatalf("expected to find Alex's entry")
	}
	if _, ok := r.Lookup(alex, 1); ok {
		t.Fatalf("expected Steve's ids not to leak into Alex's lookup")
	}
}

func TestRegistryRemoveOnlyExactEntry(t *testing.T) {
	r := NewRegistry()
	steve := actor.Named("Steve")
	e := New(0, KindBulk, steve, "a", nil, nil)
	_ = r.Register(e)
	if r.Remove(New(0, KindBulk, steve, "a", nil, nil)) {
		t.Fatalf("expected a different entry with the same id not to be removed")
	}
	if r.Len(steve) != 1 {
		t.Fatalf("expected entry to still be tracked")
	}
}

func TestRegistryConcurrentUse(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := actor.Named(string(rune('a' + w)))
			for i := 0; i < 100; i++ {
				e := New(r.NextID(a), KindBlockWrite, a, "set", nil, nil)
				if err := r.Register(e); err != nil {
					t.Errorf("unexpected register error: %v", err)
					return
				}
				if i%2 == 0 {
					r.Remove(e)
				}
			}
			if got := r.Len(a); got != 50 {
				t.Errorf("expected 50 outstanding entries, got %d", got)
			}
		}()
	}
	wg.Wait()
}

func TestEntryCancelSharesFlag(t *testing.T) {
	e := New(0, KindBulk, actor.Named("Steve"), "a", nil, nil)
	if e.Cancelled() {
		t.Fatalf("expected new entry not to be cancelled")
	}
	e.Cancel()
	if !e.Cancelled() {
		t.Fatalf("expected entry to be cancelled")
	}
	if KindMaskChange.Mutates() || KindRead.Mutates() || !KindBulk.Mutates() {
		t.Fatalf("unexpected Mutates classification")
	}
	if !KindUndo.Replay() || !KindRedo.Replay() || KindBulk.Replay() {
		t.Fatalf("unexpected Replay classification")
	}
}
