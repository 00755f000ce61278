package oftopo

import (
	"github.com/newtron-network/oftopo/pkg/event"
	"github.com/newtron-network/oftopo/pkg/openflow"
	"github.com/newtron-network/oftopo/pkg/topology"
)

// Switch is the persistent topology entity for one datapath. When a switch
// reconnects within the grace window the same Switch is reused and only
// its connection, capabilities and port table are refreshed.
//
// Listeners on the embedded Emitter receive this switch's join and leave
// notifications plus the per-connection messages passed through from
// whichever connection is currently live.
type Switch struct {
	event.Emitter

	DPID         openflow.DPID
	Ports        *PortTable
	Capabilities uint32

	conn          openflow.Connection
	lastConn      openflow.Connection
	connListeners []event.ListenerID
	reconnect     *event.Task
}

func newSwitch(dpid openflow.DPID) *Switch {
	return &Switch{
		DPID:  dpid,
		Ports: newPortTable(dpid),
	}
}

// EntityID implements topology.Entity.
func (s *Switch) EntityID() topology.ID {
	return topology.ID(s.DPID)
}

// Connection returns the live connection, or nil while disconnected.
func (s *Switch) Connection() openflow.Connection {
	return s.conn
}

// Connected reports whether the switch has a live connection.
func (s *Switch) Connected() bool {
	return s.conn != nil
}

// ReconnectPending reports whether the grace timer is running.
func (s *Switch) ReconnectPending() bool {
	return s.reconnect.Pending()
}

// FindPortForEntity returns the first port (by number) whose neighbor set
// contains entity, or nil.
func (s *Switch) FindPortForEntity(entity topology.Entity) *Port {
	for _, p := range s.Ports.Ports() {
		if p.Contains(entity) {
			return p
		}
	}
	return nil
}

func (s *Switch) String() string {
	return "switch " + s.DPID.String()
}
