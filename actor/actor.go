// Package actor identifies the logical actors, players or scripts, that issue
// edits, and stores their personal async preference.
package actor

import (
	"strings"

	"github.com/google/uuid"
)

// namespace is the UUID namespace that actor names are hashed into.
var namespace = uuid.MustParse("8c5d1f0e-2b53-4a55-9d0c-5a1e0c7e6e57")

// Actor is a single logical editor. Jobs, preferences and permissions are all
// scoped to an Actor.
type Actor struct {
	// UUID uniquely identifies the Actor.
	UUID uuid.UUID
	// Name is the display name of the Actor.
	Name string
}

// Named returns the Actor with the name passed. The UUID is derived from the
// lower-cased name, so the same name always maps to the same Actor.
func Named(name string) Actor {
	name = strings.TrimSpace(name)
	return Actor{UUID: uuid.NewSHA1(namespace, []byte(normaliseName(name))), Name: name}
}

// String ...
func (a Actor) String() string {
	if a.Name == "" {
		return a.UUID.String()
	}
	return a.Name
}

func normaliseName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
