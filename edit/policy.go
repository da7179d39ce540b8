package edit

import (
	"strings"

	"github.com/dm-vev/asyncedit/actor"
)

// Names of the calls that are not bulk operations but still go through the
// async decision.
const (
	NameSetBlock = "setBlock"
	NameSetMask  = "setMask"
	NameUndo     = "undo"
	NameRedo     = "redo"
)

// Policy decides per operation name whether the operation may run
// asynchronously at all.
type Policy interface {
	AsyncAllowed(name string) bool
}

// ModeStore holds the personal async preference of actors. It is implemented
// by *actor.Modes.
type ModeStore interface {
	AsyncPreference(a actor.Actor) bool
}

// AsyncPolicy is a Policy that permits async execution of every operation
// apart from the ones disabled. The zero value permits everything.
type AsyncPolicy struct {
	disabled map[string]struct{}
}

// DisableAsync returns an AsyncPolicy that forces the operations named to run
// synchronously. Names are matched case-insensitively.
func DisableAsync(names ...string) AsyncPolicy {
	p := AsyncPolicy{disabled: make(map[string]struct{}, len(names))}
	for _, name := range names {
		p.disabled[strings.ToLower(name)] = struct{}{}
	}
	return p
}

// AsyncAllowed ...
func (p AsyncPolicy) AsyncAllowed(name string) bool {
	_, disabled := p.disabled[strings.ToLower(name)]
	return !disabled
}
