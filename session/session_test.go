package session

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/dm-vev/asyncedit/actor"
	"github.com/dm-vev/asyncedit/cube"
	"github.com/dm-vev/asyncedit/grid"
	"github.com/dm-vev/asyncedit/mask"
	"github.com/dm-vev/asyncedit/permission"
	"golang.org/x/time/rate"
)

var stone = grid.Cell{Type: 1}

func TestWriteSkipsMaskedCells(t *testing.T) {
	ctx := context.Background()
	g := grid.NewMemory("world")
	g.Write(ctx, cube.Pos{1, 0, 0}, grid.Cell{Type: 2})

	changes := &ChangeSet{}
	s := Config{Grid: g, Mask: mask.Only(grid.Air), Changes: changes}.New()
	for x := 0; x < 3; x++ {
		s.Write(ctx, cube.Pos{x, 0, 0}, stone)
	}
	if got := s.Changed(); got != 2 {
		t.Fatalf("expected 2 writes to pass the air mask, got %d", got)
	}
	if c, _ := g.Read(ctx, cube.Pos{1, 0, 0}); c.Type != 2 {
		t.Fatalf("expected masked cell to keep its value, got %v", c)
	}
	if changes.Len() != 2 {
		t.Fatalf("expected 2 recorded changes, got %d", changes.Len())
	}
}

func TestWriteStopsOnceCancelled(t *testing.T) {
	ctx := context.Background()
	g := grid.NewMemory("world")
	flag := new(atomic.Bool)
	s := Config{Grid: g, Cancelled: flag}.New()

	for x := 0; x < 10; x++ {
		if x == 4 {
			flag.Store(true)
		}
		s.Write(ctx, cube.Pos{x, 0, 0}, stone)
	}
	if got := s.Changed(); got != 4 {
		t.Fatalf("expected the 4 writes before cancellation to apply, got %d", got)
	}
	if s.Err() != ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", s.Err())
	}
	for x := 4; x < 10; x++ {
		if c, _ := g.Read(ctx, cube.Pos{x, 0, 0}); !c.IsAir() {
			t.Fatalf("expected no writes after cancellation, found %v at x=%d", c, x)
		}
	}
}

func TestWriteStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := Config{Grid: grid.NewMemory("world")}.New()
	cancel()
	if s.Write(ctx, cube.Pos{}, stone) {
		t.Fatalf("expected write with a done context to be refused")
	}
	if !s.Cancelled() {
		t.Fatalf("expected session to count as cancelled")
	}
}

func TestWriteConsultsAuthority(t *testing.T) {
	ctx := context.Background()
	g := grid.NewMemory("world")
	auth := &recordingAuthority{deny: cube.Pos{0, 0, 0}}
	s := Config{Actor: actor.Named("Steve"), Grid: g, Authority: auth}.New()

	if s.Write(ctx, cube.Pos{0, 0, 0}, stone) {
		t.Fatalf("expected denied write to fail")
	}
	if !s.Write(ctx, cube.Pos{1, 0, 0}, stone) {
		t.Fatalf("expected allowed write to succeed")
	}
	if len(auth.logged) != 1 || auth.logged[0] != (cube.Pos{1, 0, 0}) {
		t.Fatalf("expected exactly the allowed write to be logged, got %v", auth.logged)
	}
}

func TestUndoRedoRestoresState(t *testing.T) {
	ctx := context.Background()
	g := grid.NewMemory("world")
	g.Write(ctx, cube.Pos{0, 0, 0}, grid.Cell{Type: 3})

	changes := &ChangeSet{}
	s := Config{Grid: g, Changes: changes}.New()
	s.Write(ctx, cube.Pos{0, 0, 0}, stone)
	s.Write(ctx, cube.Pos{0, 0, 0}, grid.Cell{Type: 4})
	s.Write(ctx, cube.Pos{1, 0, 0}, stone)

	replay := Config{Grid: g}.New()
	if got := replay.Undo(ctx, changes.Snapshot()); got != 3 {
		t.Fatalf("expected 3 cells restored, got %d", got)
	}
	if c, _ := g.Read(ctx, cube.Pos{0, 0, 0}); c.Type != 3 {
		t.Fatalf("expected original cell 3 after undo, got %v", c)
	}
	if c, _ := g.Read(ctx, cube.Pos{1, 0, 0}); !c.IsAir() {
		t.Fatalf("expected air after undo, got %v", c)
	}

	replay.Redo(ctx, changes.Snapshot())
	if c, _ := g.Read(ctx, cube.Pos{0, 0, 0}); c.Type != 4 {
		t.Fatalf("expected last written cell 4 after redo, got %v", c)
	}
	if changes.Len() != 3 {
		t.Fatalf("expected replays not to be recorded, got %d changes", changes.Len())
	}
}

func TestWriteRespectsLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	limiter := rate.NewLimiter(rate.Limit(0), 1)
	s := Config{Grid: grid.NewMemory("world"), Limiter: limiter}.New()
	if !s.Write(ctx, cube.Pos{0, 0, 0}, stone) {
		t.Fatalf("expected burst write to pass the limiter")
	}
	cancel()
	if s.Write(ctx, cube.Pos{1, 0, 0}, stone) {
		t.Fatalf("expected throttled write with a done context to be refused")
	}
}

type recordingAuthority struct {
	deny   cube.Pos
	logged []cube.Pos
}

func (r *recordingAuthority) CanWrite(_ actor.Actor, _ string, pos cube.Pos) bool {
	return pos != r.deny
}

func (r *recordingAuthority) LogWrite(_ actor.Actor, _ string, pos cube.Pos, _, _ grid.Cell) {
	r.logged = append(r.logged, pos)
}

var _ permission.Authority = (*recordingAuthority)(nil)
