package event

import "sync"

// Handler receives an emitted event payload.
type Handler func(ev any)

// ListenerID identifies a registration so it can be removed later.
type ListenerID uint64

// Emitter delivers events to listeners registered on named topics. The zero
// value is ready to use. Entities embed an Emitter to gain the ability to
// raise events; the component registry uses one as its registration bus.
//
// Emit calls handlers synchronously on the emitting goroutine, in
// registration order. A handler may Listen or Unlisten during delivery:
// removed listeners are skipped, new ones see the next event.
type Emitter struct {
	mu        sync.Mutex
	next      ListenerID
	listeners map[string][]*listener
}

type listener struct {
	id      ListenerID
	fn      Handler
	removed bool
}

// Listen registers fn for topic.
func (e *Emitter) Listen(topic string, fn Handler) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[string][]*listener)
	}
	e.next++
	e.listeners[topic] = append(e.listeners[topic], &listener{id: e.next, fn: fn})
	return e.next
}

// Unlisten removes the given registrations. Unknown ids are ignored.
func (e *Emitter) Unlisten(ids ...ListenerID) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[ListenerID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for topic, ls := range e.listeners {
		kept := ls[:0:0]
		for _, l := range ls {
			if drop[l.id] {
				l.removed = true
				continue
			}
			kept = append(kept, l)
		}
		if len(kept) == 0 {
			delete(e.listeners, topic)
		} else {
			e.listeners[topic] = kept
		}
	}
}

// Emit delivers ev to every listener on topic and returns how many ran.
func (e *Emitter) Emit(topic string, ev any) int {
	e.mu.Lock()
	snapshot := append([]*listener(nil), e.listeners[topic]...)
	e.mu.Unlock()

	n := 0
	for _, l := range snapshot {
		e.mu.Lock()
		removed := l.removed
		e.mu.Unlock()
		if removed {
			continue
		}
		l.fn(ev)
		n++
	}
	return n
}

// ListenerCount returns the number of listeners on topic.
func (e *Emitter) ListenerCount(topic string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[topic])
}

// Source is anything events can be observed on. *Emitter implements it, so
// types embedding an Emitter do too.
type Source interface {
	Listen(topic string, fn Handler) ListenerID
	Unlisten(ids ...ListenerID)
}
