// Package topology is the protocol-agnostic entity registry. It knows nothing
// about OpenFlow: entities are anything with a stable identifier, and the
// store only adds, removes and looks them up.
package topology

import (
	"fmt"
	"sort"

	"github.com/newtron-network/oftopo/pkg/event"
	"github.com/newtron-network/oftopo/pkg/util"
)

// ComponentName is the name the store registers under.
const ComponentName = "topology"

// Topics raised by the store. Payload is the Entity.
const (
	TopicEntityAdded   = "entity-added"
	TopicEntityRemoved = "entity-removed"
)

// ID identifies an entity. Switch entities use their datapath id.
type ID uint64

// Entity is anything the store can hold.
type Entity interface {
	EntityID() ID
}

// Store holds at most one entity per ID. It is owned by the event loop and
// is not safe for concurrent use.
type Store struct {
	event.Emitter
	entities map[ID]Entity
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entities: make(map[ID]Entity)}
}

// AddEntity registers e. Adding a second entity under an ID that is already
// held is refused.
func (s *Store) AddEntity(e Entity) error {
	id := e.EntityID()
	if _, exists := s.entities[id]; exists {
		return fmt.Errorf("entity %d: %w", id, util.ErrAlreadyExists)
	}
	s.entities[id] = e
	s.Emit(TopicEntityAdded, e)
	return nil
}

// RemoveEntity unregisters e. It fails if the store holds a different
// entity (or none) under e's ID.
func (s *Store) RemoveEntity(e Entity) error {
	id := e.EntityID()
	held, ok := s.entities[id]
	if !ok || held != e {
		return fmt.Errorf("entity %d: %w", id, util.ErrNotFound)
	}
	delete(s.entities, id)
	s.Emit(TopicEntityRemoved, e)
	return nil
}

// GetEntityByID returns the entity with the given ID, or nil.
func (s *Store) GetEntityByID(id ID) Entity {
	return s.entities[id]
}

// Entities returns all entities ordered by ID.
func (s *Store) Entities() []Entity {
	out := make([]Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })
	return out
}

// Len returns the number of entities held.
func (s *Store) Len() int {
	return len(s.entities)
}
