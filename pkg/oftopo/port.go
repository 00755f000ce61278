package oftopo

import (
	"bytes"
	"fmt"
	"net"
	"sort"

	"github.com/newtron-network/oftopo/pkg/openflow"
	"github.com/newtron-network/oftopo/pkg/topology"
	"github.com/newtron-network/oftopo/pkg/util"
)

// Port is one port of a switch. A Port object is updated in place for as
// long as its number (and name) stay on the switch, so neighbor references
// held elsewhere stay valid.
type Port struct {
	Number     openflow.PortNo
	Name       string
	HWAddr     net.HardwareAddr
	Config     uint32
	State      uint32
	Curr       uint32
	Advertised uint32
	Supported  uint32
	Peer       uint32

	// Exists is cleared when the switch stops reporting the port.
	Exists bool

	neighbors map[topology.Entity]struct{}
}

func newPort(desc openflow.PhyPort) *Port {
	p := &Port{
		Number:    desc.PortNo,
		Name:      desc.Name,
		Exists:    true,
		neighbors: make(map[topology.Entity]struct{}),
	}
	p.apply(desc)
	return p
}

// Update copies the mutable fields of desc into the port and reports
// whether anything changed. desc must describe this port: same number and
// same name.
func (p *Port) Update(desc openflow.PhyPort) (bool, error) {
	if desc.PortNo != p.Number {
		return false, util.NewProtocolError("", uint16(p.Number), "modify",
			fmt.Sprintf("descriptor is for port %d", desc.PortNo))
	}
	if desc.Name != p.Name {
		return false, util.NewProtocolError("", uint16(p.Number), "modify",
			fmt.Sprintf("port name changed from %q to %q", p.Name, desc.Name))
	}
	return p.apply(desc), nil
}

func (p *Port) apply(desc openflow.PhyPort) bool {
	changed := !bytes.Equal(p.HWAddr, desc.HWAddr) ||
		p.Config != desc.Config ||
		p.State != desc.State ||
		p.Curr != desc.Curr ||
		p.Advertised != desc.Advertised ||
		p.Supported != desc.Supported ||
		p.Peer != desc.Peer

	p.HWAddr = append(net.HardwareAddr(nil), desc.HWAddr...)
	p.Config = desc.Config
	p.State = desc.State
	p.Curr = desc.Curr
	p.Advertised = desc.Advertised
	p.Supported = desc.Supported
	p.Peer = desc.Peer
	return changed
}

// IsController reports whether this is the switch's CONTROLLER port.
func (p *Port) IsController() bool {
	return p.Number == openflow.PortController
}

// AdminDown reports whether the port is administratively down.
func (p *Port) AdminDown() bool {
	return p.Config&openflow.PortConfigDown != 0
}

// LinkDown reports whether the port has no physical link.
func (p *Port) LinkDown() bool {
	return p.State&openflow.PortStateLinkDown != 0
}

// Contains reports whether this port connects to entity.
func (p *Port) Contains(entity topology.Entity) bool {
	_, ok := p.neighbors[entity]
	return ok
}

// AddNeighbor records entity as reachable through this port. With single
// set the neighbor set is replaced, since a point-to-point port has one
// active peer at a time.
func (p *Port) AddNeighbor(entity topology.Entity, single bool) {
	if single {
		p.neighbors = make(map[topology.Entity]struct{}, 1)
	}
	p.neighbors[entity] = struct{}{}
}

// RemoveNeighbor drops entity from the neighbor set and reports whether it
// was there. Removing an absent neighbor is a no-op.
func (p *Port) RemoveNeighbor(entity topology.Entity) bool {
	if _, ok := p.neighbors[entity]; !ok {
		return false
	}
	delete(p.neighbors, entity)
	return true
}

// Neighbors returns the neighbor set ordered by entity ID.
func (p *Port) Neighbors() []topology.Entity {
	out := make([]topology.Entity, 0, len(p.neighbors))
	for e := range p.neighbors {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })
	return out
}

func (p *Port) clearNeighbors() {
	p.neighbors = make(map[topology.Entity]struct{})
}

func (p *Port) String() string {
	return fmt.Sprintf("port %s (%s)", p.Number, p.Name)
}
