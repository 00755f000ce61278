package topology

import (
	"errors"
	"testing"

	"github.com/newtron-network/oftopo/pkg/util"
)

type host struct{ id ID }

func (h *host) EntityID() ID { return h.id }

func TestStore_AddGetRemove(t *testing.T) {
	s := NewStore()

	var added, removed []Entity
	s.Listen(TopicEntityAdded, func(ev any) { added = append(added, ev.(Entity)) })
	s.Listen(TopicEntityRemoved, func(ev any) { removed = append(removed, ev.(Entity)) })

	h1 := &host{id: 1}
	if err := s.AddEntity(h1); err != nil {
		t.Fatalf("AddEntity failed: %v", err)
	}
	if got := s.GetEntityByID(1); got != h1 {
		t.Errorf("GetEntityByID(1) = %v, want h1", got)
	}
	if s.GetEntityByID(2) != nil {
		t.Error("GetEntityByID(2) should be nil")
	}

	if err := s.RemoveEntity(h1); err != nil {
		t.Fatalf("RemoveEntity failed: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after remove", s.Len())
	}
	if len(added) != 1 || len(removed) != 1 {
		t.Errorf("events: added=%d removed=%d, want 1 each", len(added), len(removed))
	}
}

func TestStore_OneEntityPerID(t *testing.T) {
	s := NewStore()
	if err := s.AddEntity(&host{id: 7}); err != nil {
		t.Fatal(err)
	}

	err := s.AddEntity(&host{id: 7})
	if !errors.Is(err, util.ErrAlreadyExists) {
		t.Errorf("second AddEntity = %v, want ErrAlreadyExists", err)
	}
}

func TestStore_RemoveRequiresSameInstance(t *testing.T) {
	s := NewStore()
	held := &host{id: 3}
	s.AddEntity(held)

	if err := s.RemoveEntity(&host{id: 3}); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("removing an impostor = %v, want ErrNotFound", err)
	}
	if err := s.RemoveEntity(&host{id: 4}); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("removing unknown = %v, want ErrNotFound", err)
	}
	if s.GetEntityByID(3) != held {
		t.Error("held entity should still be registered")
	}
}

func TestStore_EntitiesSorted(t *testing.T) {
	s := NewStore()
	for _, id := range []ID{5, 1, 3} {
		s.AddEntity(&host{id: id})
	}
	got := s.Entities()
	if len(got) != 3 || got[0].EntityID() != 1 || got[1].EntityID() != 3 || got[2].EntityID() != 5 {
		t.Errorf("Entities() not sorted by ID: %v", got)
	}
}
