package job

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dm-vev/asyncedit/actor"
	"github.com/google/uuid"
)

// ErrDuplicateID is returned when registering an Entry whose id is already in
// use by an outstanding entry of the same actor.
var ErrDuplicateID = errors.New("job: duplicate id")

const shardCount = 16

// Registry tracks the outstanding entries of every actor. Actors are spread
// over shards, each protected by its own mutex. It is safe for concurrent use.
type Registry struct {
	shards [shardCount]shard
}

type shard struct {
	mu     sync.Mutex
	actors map[uuid.UUID]*actorJobs
}

type actorJobs struct {
	next int
	jobs map[int]*Entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].actors = make(map[uuid.UUID]*actorJobs)
	}
	return r
}

// NextID returns a new job id for the actor. Ids start at 0 and strictly
// increase; an id is never handed out twice.
func (r *Registry) NextID(a actor.Actor) int {
	s := r.shard(a)
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := s.jobsLocked(a)
	id := jobs.next
	jobs.next++
	return id
}

// Register starts tracking the entry.
func (r *Registry) Register(e *Entry) error {
	s := r.shard(e.Actor)
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := s.jobsLocked(e.Actor)
	if _, ok := jobs.jobs[e.ID]; ok {
		return fmt.Errorf("register %v: %w", e, ErrDuplicateID)
	}
	jobs.jobs[e.ID] = e
	if e.ID >= jobs.next {
		jobs.next = e.ID + 1
	}
	return nil
}

// Lookup returns the outstanding entry of the actor with the id passed.
func (r *Registry) Lookup(a actor.Actor, id int) (*Entry, bool) {
	s := r.shard(a)
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, ok := s.actors[a.UUID]
	if !ok {
		return nil, false
	}
	e, ok := jobs.jobs[id]
	return e, ok
}

// Remove stops tracking the entry. It returns false if the entry was not
// tracked.
func (r *Registry) Remove(e *Entry) bool {
	s := r.shard(e.Actor)
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, ok := s.actors[e.Actor.UUID]
	if !ok || jobs.jobs[e.ID] != e {
		return false
	}
	delete(jobs.jobs, e.ID)
	return true
}

// List returns the outstanding entries of the actor ordered by id.
func (r *Registry) List(a actor.Actor) []*Entry {
	s := r.shard(a)
	s.mu.Lock()
	jobs, ok := s.actors[a.UUID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	list := make([]*Entry, 0, len(jobs.jobs))
	for _, e := range jobs.jobs {
		list = append(list, e)
	}
	s.mu.Unlock()

	slices.SortFunc(list, func(a, b *Entry) int {
		return a.ID - b.ID
	})
	return list
}

// Len returns the number of outstanding entries of the actor.
func (r *Registry) Len(a actor.Actor) int {
	s := r.shard(a)
	s.mu.Lock()
	defer s.mu.Unlock()
	if jobs, ok := s.actors[a.UUID]; ok {
		return len(jobs.jobs)
	}
	return 0
}

// jobsLocked returns the jobs of the actor, creating them if needed. The
// actor is kept after its last entry is removed so that ids are never reused.
func (s *shard) jobsLocked(a actor.Actor) *actorJobs {
	jobs, ok := s.actors[a.UUID]
	if !ok {
		jobs = &actorJobs{jobs: make(map[int]*Entry)}
		s.actors[a.UUID] = jobs
	}
	return jobs
}

func (r *Registry) shard(a actor.Actor) *shard {
	return &r.shards[xxhash.Sum64(a.UUID[:])%shardCount]
}
