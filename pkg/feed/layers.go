// Package feed drives the topology adaptor from recorded or scripted input.
//
// It provides a protocol layer and a discovery layer that raise exactly the
// events a live controller would, but take their input from YAML scenario
// files or JSON-lines event streams instead of switch sockets and LLDP
// probes. cmd/oftopo uses it for the run and replay commands.
package feed

import (
	"fmt"

	"github.com/newtron-network/oftopo/pkg/discovery"
	"github.com/newtron-network/oftopo/pkg/event"
	"github.com/newtron-network/oftopo/pkg/openflow"
	"github.com/newtron-network/oftopo/pkg/util"
)

// Conn is a scripted switch connection.
type Conn struct {
	event.Emitter
	id     uint64
	dpid   openflow.DPID
	closed bool
}

// ID returns the connection's sequence number.
func (c *Conn) ID() uint64 { return c.id }

// DPID returns the datapath id the connection belongs to.
func (c *Conn) DPID() openflow.DPID { return c.dpid }

// Closed reports whether Disconnect closed this connection.
func (c *Conn) Closed() bool { return c.closed }

func (c *Conn) String() string {
	return fmt.Sprintf("conn %d (%s)", c.id, c.dpid)
}

// Protocol is a scripted OpenFlow layer. Its methods must be called on the
// adaptor's loop.
type Protocol struct {
	event.Emitter
	conns  map[openflow.DPID]*Conn
	nextID uint64
}

// NewProtocol creates a protocol layer with no connections.
func NewProtocol() *Protocol {
	return &Protocol{conns: make(map[openflow.DPID]*Conn)}
}

// Connect opens a new connection for dpid and raises connection-up with
// features as the handshake. A connection already open for dpid stays open
// but is no longer the one Disconnect closes.
func (p *Protocol) Connect(dpid openflow.DPID, features *openflow.FeaturesReply) *Conn {
	p.nextID++
	conn := &Conn{id: p.nextID, dpid: dpid}
	p.conns[dpid] = conn
	if features == nil {
		features = &openflow.FeaturesReply{}
	}
	features.DPID = dpid

	p.Emit(openflow.TopicConnectionUp, &openflow.ConnectionUp{
		DPID:       dpid,
		Connection: conn,
		Features:   features,
	})
	return conn
}

// Disconnect closes the current connection for dpid, raising
// connection-down on the connection and then on the layer. Without an open
// connection only the layer-level event is raised.
func (p *Protocol) Disconnect(dpid openflow.DPID) {
	ev := &openflow.ConnectionDown{DPID: dpid}
	if conn, ok := p.conns[dpid]; ok {
		delete(p.conns, dpid)
		conn.closed = true
		ev.Connection = conn
		conn.Emit(openflow.TopicConnectionDown, ev)
	}
	p.Emit(openflow.TopicConnectionDown, ev)
}

// Conn returns the current connection for dpid, or nil.
func (p *Protocol) Conn(dpid openflow.DPID) *Conn {
	return p.conns[dpid]
}

// Send raises msg on topic on the current connection of dpid.
func (p *Protocol) Send(dpid openflow.DPID, topic string, msg any) error {
	conn, ok := p.conns[dpid]
	if !ok {
		return fmt.Errorf("switch %s: %w", dpid, util.ErrNotConnected)
	}
	conn.Emit(topic, msg)
	return nil
}

// PortStatus sends a port-status message on dpid's connection.
func (p *Protocol) PortStatus(dpid openflow.DPID, reason openflow.PortReason, desc openflow.PhyPort) error {
	return p.Send(dpid, openflow.TopicPortStatus, &openflow.PortStatus{Reason: reason, Desc: desc})
}

// Discovery is a scripted link-discovery layer.
type Discovery struct {
	event.Emitter
}

// NewDiscovery creates a discovery layer.
func NewDiscovery() *Discovery {
	return &Discovery{}
}

// LinkUp reports that l was detected.
func (d *Discovery) LinkUp(l discovery.Link) {
	d.Emit(discovery.TopicLink, &discovery.LinkEvent{Link: l, Added: true})
}

// LinkDown reports that l was lost.
func (d *Discovery) LinkDown(l discovery.Link) {
	d.Emit(discovery.TopicLink, &discovery.LinkEvent{Link: l})
}
