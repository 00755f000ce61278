// Package discovery defines the link-discovery events the topology adaptor
// consumes. How links are detected (LLDP probing, timers) is the discovery
// layer's business; the adaptor only sees links appear and disappear.
package discovery

import (
	"fmt"

	"github.com/newtron-network/oftopo/pkg/event"
	"github.com/newtron-network/oftopo/pkg/openflow"
)

// ComponentName is the name the discovery layer registers under.
const ComponentName = "openflow_discovery"

// TopicLink is the topic *LinkEvent values are raised on.
const TopicLink = "link"

// Link is a unidirectional observation of a direct connection between two
// switch ports.
type Link struct {
	DPID1 openflow.DPID   `json:"dpid1" yaml:"dpid1"`
	Port1 openflow.PortNo `json:"port1" yaml:"port1"`
	DPID2 openflow.DPID   `json:"dpid2" yaml:"dpid2"`
	Port2 openflow.PortNo `json:"port2" yaml:"port2"`
}

// Flipped returns the same link seen from the other end.
func (l Link) Flipped() Link {
	return Link{DPID1: l.DPID2, Port1: l.Port2, DPID2: l.DPID1, Port2: l.Port1}
}

// Canonical returns the orientation with the lower (dpid, port) end first,
// so both directions of a link compare equal.
func (l Link) Canonical() Link {
	if l.DPID1 > l.DPID2 || (l.DPID1 == l.DPID2 && l.Port1 > l.Port2) {
		return l.Flipped()
	}
	return l
}

// Touches reports whether one end of the link is (dpid, port).
func (l Link) Touches(dpid openflow.DPID, port openflow.PortNo) bool {
	return (l.DPID1 == dpid && l.Port1 == port) || (l.DPID2 == dpid && l.Port2 == port)
}

// Involves reports whether either end of the link is on dpid.
func (l Link) Involves(dpid openflow.DPID) bool {
	return l.DPID1 == dpid || l.DPID2 == dpid
}

func (l Link) String() string {
	return fmt.Sprintf("%s.%d -> %s.%d", l.DPID1, l.Port1, l.DPID2, l.Port2)
}

// LinkEvent reports that a link was detected (Added) or lost.
type LinkEvent struct {
	Link  Link
	Added bool
}

// Removed reports whether the event is a link loss.
func (e *LinkEvent) Removed() bool {
	return !e.Added
}

// Layer is the discovery layer. It raises *LinkEvent on TopicLink.
type Layer interface {
	event.Source
}
