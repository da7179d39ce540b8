package permission

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/dm-vev/asyncedit/actor"
	"github.com/dm-vev/asyncedit/cube"
	"github.com/dm-vev/asyncedit/grid"
)

func TestRegionsDenyNonOwners(t *testing.T) {
	r := NewRegions(Region{
		World:  "world",
		Area:   cube.Box(cube.Pos{0, 0, 0}, cube.Pos{9, 9, 9}),
		Owners: []string{"Alex"},
	})
	inside := cube.Pos{5, 5, 5}
	if r.CanWrite(actor.Named("Steve"), "world", inside) {
		t.Fatalf("expected Steve to be denied inside Alex's region")
	}
	if !r.CanWrite(actor.Named("alex"), "world", inside) {
		t.Fatalf("expected owner to be allowed inside the region")
	}
	if !r.CanWrite(actor.Named("Steve"), "nether", inside) {
		t.Fatalf("expected region to only apply to its own world")
	}
	if !r.CanWrite(actor.Named("Steve"), "world", cube.Pos{10, 5, 5}) {
		t.Fatalf("expected writes outside the region to be allowed")
	}

	r.Protect(Region{Area: cube.Box(cube.Pos{20, 0, 0}, cube.Pos{21, 1, 1})})
	if r.CanWrite(actor.Named("Alex"), "nether", cube.Pos{20, 0, 0}) {
		t.Fatalf("expected region without world or owners to deny everyone everywhere")
	}
}

func TestAuditLogsWrites(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a := Audit{Authority: AllowAll{}, Log: log}
	if !a.CanWrite(actor.Named("Steve"), "world", cube.Pos{}) {
		t.Fatalf("expected audit to defer to the wrapped authority")
	}
	a.LogWrite(actor.Named("Steve"), "world", cube.Pos{1, 2, 3}, grid.Air, grid.Cell{Type: 1})
	if out := buf.String(); !strings.Contains(out, "actor=Steve") || !strings.Contains(out, "(1,2,3)") {
		t.Fatalf("expected audit record for Steve at (1,2,3), got %q", out)
	}
}
