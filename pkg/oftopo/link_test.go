package oftopo

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/newtron-network/oftopo/pkg/discovery"
	"github.com/newtron-network/oftopo/pkg/event"
	"github.com/newtron-network/oftopo/pkg/openflow"
)

type linkFixture struct {
	switches map[openflow.DPID]*Switch
	tr       *LinkTranslator
	out      *event.Emitter
	events   []string
}

func newLinkFixture(dpids ...openflow.DPID) *linkFixture {
	f := &linkFixture{switches: make(map[openflow.DPID]*Switch), out: &event.Emitter{}}
	for _, d := range dpids {
		sw := newSwitch(d)
		sw.Ports.Reconcile([]openflow.PhyPort{{PortNo: 1, Name: "p1"}, {PortNo: 2, Name: "p2"}})
		f.switches[d] = sw
	}
	f.tr = NewLinkTranslator(func(d openflow.DPID) *Switch { return f.switches[d] }, f.out)
	f.out.Listen(TopicLinkAdded, func(ev any) {
		f.events = append(f.events, "+"+ev.(*LinkChange).Link.String())
	})
	f.out.Listen(TopicLinkRemoved, func(ev any) {
		c := ev.(*LinkChange)
		tag := "-"
		if c.Superseded {
			tag = "~"
		}
		f.events = append(f.events, tag+c.Link.String())
	})
	return f
}

func (f *linkFixture) port(d openflow.DPID, no openflow.PortNo) *Port {
	return f.switches[d].Ports.Get(no)
}

func lnk(d1 openflow.DPID, p1 openflow.PortNo, d2 openflow.DPID, p2 openflow.PortNo) discovery.Link {
	return discovery.Link{DPID1: d1, Port1: p1, DPID2: d2, Port2: p2}
}

func TestLinkTranslator_ReplaceKeepsOneNeighbor(t *testing.T) {
	f := newLinkFixture(1, 2, 3)

	f.tr.LinkAdded(lnk(1, 1, 2, 1))
	f.tr.LinkAdded(lnk(1, 1, 3, 1))

	p := f.port(1, 1)
	if n := p.Neighbors(); len(n) != 1 || n[0] != f.switches[3] {
		t.Fatalf("neighbors = %v, want only switch 3", n)
	}
	if f.port(2, 1).Contains(f.switches[1]) {
		t.Error("superseded peer still points back at switch 1")
	}
	if diff := cmp.Diff([]discovery.Link{lnk(1, 1, 3, 1)}, f.tr.Links()); diff != "" {
		t.Errorf("Links() mismatch (-want +got):\n%s", diff)
	}

	want := []string{
		"+" + lnk(1, 1, 2, 1).String(),
		"~" + lnk(1, 1, 2, 1).String(),
		"+" + lnk(1, 1, 3, 1).String(),
	}
	if diff := cmp.Diff(want, f.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestLinkTranslator_BothDirectionsAreOneLink(t *testing.T) {
	f := newLinkFixture(1, 2)

	f.tr.LinkAdded(lnk(1, 1, 2, 2))
	f.tr.LinkAdded(lnk(2, 2, 1, 1))
	f.tr.LinkAdded(lnk(1, 1, 2, 2))

	if len(f.events) != 1 {
		t.Errorf("events = %v, want a single link-added", f.events)
	}
	if !f.port(1, 1).Contains(f.switches[2]) || !f.port(2, 2).Contains(f.switches[1]) {
		t.Error("relation missing on one side")
	}

	// Removal reported from the other end still removes it.
	f.tr.LinkRemoved(lnk(2, 2, 1, 1))
	if len(f.tr.Links()) != 0 {
		t.Errorf("Links() = %v after removal", f.tr.Links())
	}
	if f.port(1, 1).Contains(f.switches[2]) || f.port(2, 2).Contains(f.switches[1]) {
		t.Error("relation left behind after removal")
	}
}

func TestLinkTranslator_UnknownReferencesDropped(t *testing.T) {
	f := newLinkFixture(1, 2)

	tests := []struct {
		name string
		link discovery.Link
	}{
		{"unknown far switch", lnk(1, 1, 9, 1)},
		{"unknown near switch", lnk(9, 1, 1, 1)},
		{"unknown port", lnk(1, 7, 2, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if f.tr.LinkAdded(tt.link) {
				t.Error("LinkAdded applied an unresolvable link")
			}
			if f.tr.LinkRemoved(tt.link) {
				t.Error("LinkRemoved applied an unresolvable link")
			}
		})
	}
	if len(f.events) != 0 || len(f.tr.Links()) != 0 {
		t.Errorf("state changed: events=%v links=%v", f.events, f.tr.Links())
	}
}

func TestLinkTranslator_RemoveAbsentIsNoop(t *testing.T) {
	f := newLinkFixture(1, 2)
	if !f.tr.LinkRemoved(lnk(1, 1, 2, 1)) {
		t.Error("LinkRemoved did not resolve known ports")
	}
	if len(f.events) != 0 {
		t.Errorf("events = %v, want none", f.events)
	}
}

func TestLinkTranslator_DetachPort(t *testing.T) {
	f := newLinkFixture(1, 2, 3)
	f.tr.LinkAdded(lnk(1, 1, 2, 1))
	f.tr.LinkAdded(lnk(1, 2, 3, 1))

	f.tr.DetachPort(f.switches[1], f.port(1, 1))

	if f.port(2, 1).Contains(f.switches[1]) || len(f.port(1, 1).Neighbors()) != 0 {
		t.Error("detached port relation still present")
	}
	if diff := cmp.Diff([]discovery.Link{lnk(1, 2, 3, 1)}, f.tr.Links()); diff != "" {
		t.Errorf("Links() mismatch (-want +got):\n%s", diff)
	}

	f.tr.DetachSwitch(f.switches[3])
	if len(f.tr.Links()) != 0 || f.port(1, 2).Contains(f.switches[3]) {
		t.Error("DetachSwitch left switch 3's link behind")
	}
}
