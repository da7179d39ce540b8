package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dm-vev/asyncedit"
)

func TestParseScriptSkipsCommentsAndBlankLines(t *testing.T) {
	cmds, err := parseScript(strings.NewReader("# build a wall\n\nsteve FILL 0 0 0 1 1 1 stone\n  alex undo\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if c := cmds[0]; c.Line != 3 || c.Actor != "steve" || c.Name != "fill" || len(c.Args) != 7 {
		t.Fatalf("unexpected first command %+v", c)
	}
	if c := cmds[1]; c.Actor != "alex" || c.Name != "undo" || len(c.Args) != 0 {
		t.Fatalf("unexpected second command %+v", c)
	}
}

func TestParseScriptRejectsMissingCommand(t *testing.T) {
	if _, err := parseScript(strings.NewReader("steve\n")); err == nil {
		t.Fatalf("expected a line without a command to be rejected")
	}
}

func newRunner(t *testing.T) (*runner, *bytes.Buffer) {
	t.Helper()
	uc := asyncedit.DefaultConfig()
	uc.World.SaveData = false
	uc.Async.ModesFile = filepath.Join(t.TempDir(), "modes.toml")
	conf, err := uc.Config(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	e := conf.New()
	t.Cleanup(func() { _ = e.Close() })
	out := &bytes.Buffer{}
	return &runner{engine: e, out: out}, out
}

func TestRunScript(t *testing.T) {
	r, out := newRunner(t)
	script := `
steve fill 0 0 0 3 3 3 1
steve wait
steve size
steve get 1 1 1
alex mode sync
alex sphere 20 20 20 1 2
alex mask none
`
	cmds, err := parseScript(strings.NewReader(script))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := r.run(context.Background(), cmds); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"steve size: 64", "steve get (1,1,1): 1", "alex sphere: 7"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected output to contain %q, got:\n%v", want, out.String())
		}
	}
}

func TestRunScriptReportsBadArguments(t *testing.T) {
	r, _ := newRunner(t)
	cmds, _ := parseScript(strings.NewReader("steve fill 0 0 0 1 1 x 1\n"))
	err := r.run(context.Background(), cmds)
	if err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("expected an error pointing at line 1, got %v", err)
	}
}

func TestRunScriptRejectsUnknownCommand(t *testing.T) {
	r, _ := newRunner(t)
	cmds, _ := parseScript(strings.NewReader("steve teleport 0 0 0\n"))
	if err := r.run(context.Background(), cmds); err == nil {
		t.Fatalf("expected unknown command to fail")
	}
}

func TestConfigCommandPrintsDefaults(t *testing.T) {
	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"config"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "ReadTimeout") {
		t.Fatalf("expected the default config in the output, got:\n%v", out.String())
	}
}
