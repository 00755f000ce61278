package oftopo

import (
	"sort"

	"github.com/newtron-network/oftopo/pkg/discovery"
	"github.com/newtron-network/oftopo/pkg/event"
	"github.com/newtron-network/oftopo/pkg/openflow"
	"github.com/newtron-network/oftopo/pkg/util"
)

// LinkTranslator turns link-discovery events into neighbor relations on
// switch ports. It is the only writer of port neighbor sets, and keeps the
// set of links it has applied so relations can be detached exactly when a
// port or switch goes away.
type LinkTranslator struct {
	lookup func(openflow.DPID) *Switch
	out    *event.Emitter
	links  map[discovery.Link]struct{} // canonical orientation
}

// NewLinkTranslator creates a translator resolving switches through lookup.
func NewLinkTranslator(lookup func(openflow.DPID) *Switch, out *event.Emitter) *LinkTranslator {
	if out == nil {
		out = &event.Emitter{}
	}
	return &LinkTranslator{
		lookup: lookup,
		out:    out,
		links:  make(map[discovery.Link]struct{}),
	}
}

// HandleLinkEvent dispatches on the event direction.
func (t *LinkTranslator) HandleLinkEvent(ev *discovery.LinkEvent) bool {
	if ev.Added {
		return t.LinkAdded(ev.Link)
	}
	return t.LinkRemoved(ev.Link)
}

// resolve returns both ends of l, or ok=false if a switch or port is
// unknown. Discovery may report links for switches we have not seen yet,
// so that is not an error.
func (t *LinkTranslator) resolve(l discovery.Link) (sw1 *Switch, p1 *Port, sw2 *Switch, p2 *Port, ok bool) {
	sw1, sw2 = t.lookup(l.DPID1), t.lookup(l.DPID2)
	if sw1 == nil || sw2 == nil {
		util.WithField("link", l.String()).Debug("Dropping link event for unknown switch")
		return nil, nil, nil, nil, false
	}
	p1, p2 = sw1.Ports.Get(l.Port1), sw2.Ports.Get(l.Port2)
	if p1 == nil || p2 == nil {
		util.WithField("link", l.String()).Debug("Dropping link event for unknown port")
		return nil, nil, nil, nil, false
	}
	return sw1, p1, sw2, p2, true
}

// LinkAdded makes each end of l the sole neighbor of the other end's port.
// Links previously held on either port are superseded and detached. It
// reports whether the event was applied.
func (t *LinkTranslator) LinkAdded(l discovery.Link) bool {
	sw1, p1, sw2, p2, ok := t.resolve(l)
	if !ok {
		return false
	}

	key := l.Canonical()
	for _, old := range t.Links() {
		if old == key {
			continue
		}
		if old.Touches(l.DPID1, l.Port1) || old.Touches(l.DPID2, l.Port2) {
			t.detach(old, &LinkChange{Link: old, Superseded: true})
		}
	}

	p1.AddNeighbor(sw2, true)
	p2.AddNeighbor(sw1, true)

	if _, known := t.links[key]; known {
		return true
	}
	t.links[key] = struct{}{}
	util.WithField("link", key.String()).Debug("Link added")
	t.out.Emit(TopicLinkAdded, &LinkChange{Link: key})
	return true
}

// LinkRemoved drops the relation between the ends of l. Removing a
// relation that does not exist is a no-op. It reports whether the event
// resolved to known ports.
func (t *LinkTranslator) LinkRemoved(l discovery.Link) bool {
	sw1, p1, sw2, p2, ok := t.resolve(l)
	if !ok {
		return false
	}

	removed := p1.RemoveNeighbor(sw2)
	if p2.RemoveNeighbor(sw1) {
		removed = true
	}

	key := l.Canonical()
	if _, known := t.links[key]; known {
		delete(t.links, key)
		removed = true
	}
	if removed {
		util.WithField("link", key.String()).Debug("Link removed")
		t.out.Emit(TopicLinkRemoved, &LinkChange{Link: key})
	}
	return true
}

// DetachPort drops every link that used port p of sw, including the
// reference the peer port holds back to sw.
func (t *LinkTranslator) DetachPort(sw *Switch, p *Port) {
	for _, l := range t.Links() {
		if l.Touches(sw.DPID, p.Number) {
			t.detach(l, &LinkChange{Link: l, Detached: true})
		}
	}
	p.clearNeighbors()
}

// DetachSwitch drops every link with an end on sw.
func (t *LinkTranslator) DetachSwitch(sw *Switch) {
	for _, l := range t.Links() {
		if l.Involves(sw.DPID) {
			t.detach(l, &LinkChange{Link: l, Detached: true})
		}
	}
}

// detach removes both neighbor references of l, resolving each end
// independently since one of them may already be gone.
func (t *LinkTranslator) detach(l discovery.Link, change *LinkChange) {
	sw1, sw2 := t.lookup(l.DPID1), t.lookup(l.DPID2)
	if sw1 != nil && sw2 != nil {
		if p := sw1.Ports.Get(l.Port1); p != nil {
			p.RemoveNeighbor(sw2)
		}
		if p := sw2.Ports.Get(l.Port2); p != nil {
			p.RemoveNeighbor(sw1)
		}
	}
	delete(t.links, l)
	util.WithField("link", l.String()).Debug("Link detached")
	t.out.Emit(TopicLinkRemoved, change)
}

// Links returns the active links in canonical orientation, sorted.
func (t *LinkTranslator) Links() []discovery.Link {
	out := make([]discovery.Link, 0, len(t.links))
	for l := range t.links {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DPID1 != b.DPID1 {
			return a.DPID1 < b.DPID1
		}
		if a.Port1 != b.Port1 {
			return a.Port1 < b.Port1
		}
		if a.DPID2 != b.DPID2 {
			return a.DPID2 < b.DPID2
		}
		return a.Port2 < b.Port2
	})
	return out
}
