package actor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml"
)

// Modes stores the personal async preference of actors. Actors without a
// stored preference prefer async edits. If a file path is set, every change is
// written through to a TOML file holding one table per actor.
type Modes struct {
	mu       sync.RWMutex
	prefs    map[uuid.UUID]preference
	filePath string
}

// preference is the stored mode of a single actor, as found in the file.
type preference struct {
	UUID  string `toml:"uuid"`
	Name  string `toml:"name"`
	Async bool   `toml:"async"`
}

type modesFile struct {
	Actors []preference `toml:"actor,omitempty"`
}

// NewModes returns an in-memory Modes store.
func NewModes() *Modes {
	return &Modes{prefs: make(map[uuid.UUID]preference)}
}

// LoadModes loads the Modes stored in the file at the path passed. The file is
// created if it does not exist yet.
func LoadModes(path string) (*Modes, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("modes path must not be empty")
	}
	m := &Modes{prefs: make(map[uuid.UUID]preference), filePath: path}
	contents, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, m.save()
	}
	if err != nil {
		return nil, fmt.Errorf("read modes: %w", err)
	}
	var f modesFile
	if err := toml.Unmarshal(contents, &f); err != nil {
		return nil, fmt.Errorf("decode modes: %w", err)
	}
	for _, p := range f.Actors {
		id, err := uuid.Parse(p.UUID)
		if err != nil {
			return nil, fmt.Errorf("decode modes: actor %q: %w", p.Name, err)
		}
		m.prefs[id] = p
	}
	return m, nil
}

// AsyncPreference reports if the actor wants its edits to run asynchronously.
func (m *Modes) AsyncPreference(a Actor) bool {
	if m == nil {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prefs[a.UUID]
	return !ok || p.Async
}

// SetAsyncPreference stores the preference of the actor. If the store is file
// backed and writing the file fails, the previous preference is kept.
func (m *Modes) SetAsyncPreference(a Actor, async bool) error {
	if a.UUID == uuid.Nil {
		return errors.New("actor must have a UUID")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, had := m.prefs[a.UUID]
	m.prefs[a.UUID] = preference{UUID: a.UUID.String(), Name: a.Name, Async: async}
	if err := m.save(); err != nil {
		if had {
			m.prefs[a.UUID] = prev
		} else {
			delete(m.prefs, a.UUID)
		}
		return err
	}
	return nil
}

// SyncActors returns the names of the actors that prefer sync edits, sorted.
func (m *Modes) SyncActors() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for _, p := range m.prefs {
		if !p.Async {
			names = append(names, p.Name)
		}
	}
	slices.Sort(names)
	return names
}

// save writes the store to its file. It is a no-op for in-memory stores.
func (m *Modes) save() error {
	if m.filePath == "" {
		return nil
	}
	f := modesFile{Actors: make([]preference, 0, len(m.prefs))}
	for _, p := range m.prefs {
		f.Actors = append(f.Actors, p)
	}
	slices.SortFunc(f.Actors, func(a, b preference) int {
		return strings.Compare(a.UUID, b.UUID)
	})
	encoded, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode modes: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.filePath), 0777); err != nil {
		return fmt.Errorf("create modes directory: %w", err)
	}
	if err := os.WriteFile(m.filePath, encoded, 0644); err != nil {
		return fmt.Errorf("write modes: %w", err)
	}
	return nil
}
