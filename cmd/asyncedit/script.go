package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/dm-vev/asyncedit"
	"github.com/dm-vev/asyncedit/actor"
	"github.com/dm-vev/asyncedit/cube"
	"github.com/dm-vev/asyncedit/edit"
	"github.com/dm-vev/asyncedit/grid"
	"github.com/dm-vev/asyncedit/mask"
	"golang.org/x/sync/errgroup"
)

// command is a single line of a script.
type command struct {
	Line  int
	Actor string
	Name  string
	Args  []string
}

// parseScript reads the commands of a script. Blank lines and lines starting
// with '#' are skipped.
func parseScript(r io.Reader) ([]command, error) {
	var cmds []command
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected '<actor> <command> [args...]'", line)
		}
		cmds = append(cmds, command{Line: line, Actor: fields[0], Name: strings.ToLower(fields[1]), Args: fields[2:]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return cmds, nil
}

// runner runs the commands of a script against an Engine.
type runner struct {
	engine *asyncedit.Engine
	out    io.Writer
	mu     sync.Mutex
}

// run runs the commands of every actor on its own goroutine. The first error
// stops the remaining actors.
func (r *runner) run(ctx context.Context, cmds []command) error {
	var order []string
	byActor := make(map[string][]command)
	for _, c := range cmds {
		if _, ok := byActor[c.Actor]; !ok {
			order = append(order, c.Actor)
		}
		byActor[c.Actor] = append(byActor[c.Actor], c)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range order {
		g.Go(func() error {
			s := r.engine.Session(actor.Named(name))
			for _, c := range byActor[name] {
				if err := r.exec(ctx, s, c); err != nil {
					return fmt.Errorf("line %d: %v %v: %w", c.Line, c.Actor, c.Name, err)
				}
				s.FlushQueue(ctx)
			}
			return s.Wait(ctx)
		})
	}
	return g.Wait()
}

func (r *runner) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *runner) exec(ctx context.Context, s *edit.Session, c command) error {
	a := &argReader{args: c.Args}
	var (
		n   int
		err error
	)
	switch c.Name {
	case "set":
		pos, cell := a.pos(), a.cell()
		if a.err == nil && !s.RawSetBlock(ctx, pos, cell) {
			r.printf("%v set: denied\n", c.Actor)
			return nil
		}
	case "fill":
		region, cell := a.region(), a.cell()
		if a.err == nil {
			n, err = s.SetBlocks(ctx, region, cell)
		}
	case "replace":
		region, from, to := a.region(), a.cell(), a.cell()
		if a.err == nil {
			n, err = s.ReplaceBlocks(ctx, region, mask.Only(from), to)
		}
	case "faces":
		region, cell := a.region(), a.cell()
		if a.err == nil {
			n, err = s.MakeFaces(ctx, region, cell)
		}
	case "walls":
		region, cell := a.region(), a.cell()
		if a.err == nil {
			n, err = s.MakeWalls(ctx, region, cell)
		}
	case "overlay":
		region, cell := a.region(), a.cell()
		if a.err == nil {
			n, err = s.Overlay(ctx, region, cell)
		}
	case "center":
		region, cell := a.region(), a.cell()
		if a.err == nil {
			n, err = s.Center(ctx, region, cell)
		}
	case "move":
		region, d, dist := a.region(), a.direction(), a.int()
		replacement := grid.Air
		if a.more() {
			replacement = a.cell()
		}
		if a.err == nil {
			n, err = s.MoveRegion(ctx, region, d, dist, replacement)
		}
	case "stack":
		region, d, count := a.region(), a.direction(), a.int()
		if a.err == nil {
			n, err = s.StackRegion(ctx, region, d, count)
		}
	case "line":
		from, to, radius, cell := a.pos(), a.pos(), a.int(), a.cell()
		if a.err == nil {
			n, err = s.DrawLine(ctx, from, to, radius, cell)
		}
	case "sphere":
		centre, radius, cell, hollow := a.pos(), a.float(), a.cell(), a.flag("hollow")
		if a.err == nil {
			n, err = s.MakeSphere(ctx, centre, radius, hollow, cell)
		}
	case "cyl", "cylinder":
		base, radius, height, cell, hollow := a.pos(), a.float(), a.int(), a.cell(), a.flag("hollow")
		if a.err == nil {
			n, err = s.MakeCylinder(ctx, base, radius, height, hollow, cell)
		}
	case "removenear":
		centre, cell, apothem := a.pos(), a.cell(), a.int()
		if a.err == nil {
			n, err = s.RemoveNear(ctx, centre, mask.Only(cell), apothem)
		}
	case "fillxz":
		origin, cell, radius, depth := a.pos(), a.cell(), a.float(), a.int()
		if a.err == nil {
			n, err = s.FillXZ(ctx, origin, cell, radius, depth)
		}
	case "mask":
		m := a.mask()
		if a.err == nil {
			s.SetMask(m)
		}
		return a.err
	case "mode":
		mode := a.mode()
		if a.err == nil {
			s.SetMode(mode)
		}
		return a.err
	case "undo":
		n, err = s.Undo(ctx, nil)
	case "redo":
		n, err = s.Redo(ctx, nil)
	case "get":
		pos := a.pos()
		if a.err != nil {
			return a.err
		}
		cell, rerr := s.GetBlock(ctx, pos)
		if rerr != nil {
			return rerr
		}
		r.printf("%v get %v: %v\n", c.Actor, pos, cell)
		return nil
	case "cancel":
		id := a.int()
		if a.err == nil {
			r.printf("%v cancel %d: %v\n", c.Actor, id, s.Cancel(id))
		}
		return a.err
	case "wait":
		return s.Wait(ctx)
	case "size":
		r.printf("%v size: %d\n", c.Actor, s.Size())
		return nil
	default:
		return fmt.Errorf("unknown command %q", c.Name)
	}
	if a.err != nil {
		return a.err
	}
	if err != nil {
		return err
	}
	if c.Name != "set" {
		r.printf("%v %v: %d\n", c.Actor, c.Name, n)
	}
	return nil
}

// argReader consumes the arguments of a command. The first error is kept and
// later reads return zero values.
type argReader struct {
	args []string
	i    int
	err  error
}

func (a *argReader) more() bool {
	return a.i < len(a.args)
}

func (a *argReader) next() string {
	if a.err != nil {
		return ""
	}
	if !a.more() {
		a.err = fmt.Errorf("expected %d or more arguments", a.i+1)
		return ""
	}
	s := a.args[a.i]
	a.i++
	return s
}

func (a *argReader) int() int {
	s := a.next()
	if a.err != nil {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		a.err = fmt.Errorf("argument %d: %w", a.i, err)
	}
	return v
}

func (a *argReader) float() float64 {
	s := a.next()
	if a.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		a.err = fmt.Errorf("argument %d: %w", a.i, err)
	}
	return v
}

func (a *argReader) pos() cube.Pos {
	return cube.Pos{a.int(), a.int(), a.int()}
}

func (a *argReader) region() cube.Cuboid {
	return cube.Box(a.pos(), a.pos())
}

func (a *argReader) cell() grid.Cell {
	s := a.next()
	if a.err != nil {
		return grid.Air
	}
	c, err := grid.ParseCell(s)
	if err != nil {
		a.err = fmt.Errorf("argument %d: %w", a.i, err)
	}
	return c
}

func (a *argReader) direction() cube.Direction {
	s := a.next()
	if a.err != nil {
		return 0
	}
	d, ok := cube.ParseDirection(strings.ToLower(s))
	if !ok {
		a.err = fmt.Errorf("argument %d: unknown direction %q", a.i, s)
	}
	return d
}

// flag consumes the optional trailing keyword passed and reports if it was
// present.
func (a *argReader) flag(name string) bool {
	if a.err == nil && a.more() && strings.EqualFold(a.args[a.i], name) {
		a.i++
		return true
	}
	return false
}

func (a *argReader) mask() mask.Mask {
	if a.flag("none") {
		return nil
	}
	var cells []grid.Cell
	for a.more() && a.err == nil {
		cells = append(cells, a.cell())
	}
	if len(cells) == 0 && a.err == nil {
		a.err = fmt.Errorf("expected 'none' or at least one cell")
	}
	return mask.Only(cells...)
}

func (a *argReader) mode() edit.Mode {
	s := a.next()
	for _, m := range []edit.Mode{edit.ModeAuto, edit.ModeAlwaysSync, edit.ModeAlwaysAsync} {
		if strings.EqualFold(s, m.String()) {
			return m
		}
	}
	if a.err == nil {
		a.err = fmt.Errorf("unknown mode %q", s)
	}
	return edit.ModeAuto
}
