package actor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNamedIsStable(t *testing.T) {
	a, b := Named("Steve"), Named(" steve ")
	if a.UUID != b.UUID {
		t.Fatalf("expected names differing in case to share a UUID, got %v and %v", a.UUID, b.UUID)
	}
	if Named("Alex").UUID == a.UUID {
		t.Fatalf("expected different names to map to different UUIDs")
	}
}

func TestModesDefaultToAsync(t *testing.T) {
	m := NewModes()
	if !m.AsyncPreference(Named("Steve")) {
		t.Fatalf("expected actors to prefer async by default")
	}
	var nilModes *Modes
	if !nilModes.AsyncPreference(Named("Steve")) {
		t.Fatalf("expected nil store to prefer async")
	}
}

func TestModesPersistOptOuts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modes.toml")
	m, err := LoadModes(path)
	if err != nil {
		t.Fatalf("expected modes to load, got %v", err)
	}
	steve := Named("Steve")
	if err := m.SetAsyncPreference(steve, false); err != nil {
		t.Fatalf("expected preference to be stored, got %v", err)
	}
	if m.AsyncPreference(steve) {
		t.Fatalf("expected Steve to prefer sync edits")
	}

	reloaded, err := LoadModes(path)
	if err != nil {
		t.Fatalf("expected modes to reload, got %v", err)
	}
	if reloaded.AsyncPreference(steve) {
		t.Fatalf("expected opt-out to survive a reload")
	}
	if got := reloaded.SyncActors(); len(got) != 1 || got[0] != "Steve" {
		t.Fatalf("expected [Steve], got %v", got)
	}

	if err := reloaded.SetAsyncPreference(steve, true); err != nil {
		t.Fatalf("expected preference to be cleared, got %v", err)
	}
	if !reloaded.AsyncPreference(steve) {
		t.Fatalf("expected Steve to prefer async again")
	}
}

func TestModesKeyedByActorIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "modes.toml")
	m, err := LoadModes(path)
	if err != nil {
		t.Fatalf("expected modes to load, got %v", err)
	}
	if err := m.SetAsyncPreference(Named("Steve"), false); err != nil {
		t.Fatalf("expected preference to be stored, got %v", err)
	}
	if m.AsyncPreference(Named(" steve ")) {
		t.Fatalf("expected the preference to apply to the same actor under another spelling")
	}
	if !m.AsyncPreference(Named("Alex")) {
		t.Fatalf("expected other actors to keep preferring async")
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected modes file to exist, got %v", err)
	}
	if !strings.Contains(string(contents), Named("Steve").UUID.String()) {
		t.Fatalf("expected file to store the actor UUID, got %q", contents)
	}
}

func TestModesRejectMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modes.toml")
	if err := os.WriteFile(path, []byte("[[actor]]\nuuid = \"nope\"\nname = \"Steve\"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadModes(path); err == nil {
		t.Fatalf("expected an invalid UUID to be rejected")
	}
}
