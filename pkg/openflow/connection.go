package openflow

import "github.com/newtron-network/oftopo/pkg/event"

// ComponentName is the name the protocol layer registers under.
const ComponentName = "openflow"

// Topics raised by the protocol layer.
const (
	TopicConnectionUp   = "connection-up"
	TopicConnectionDown = "connection-down"
)

// Topics raised on an individual Connection. TopicConnectionDown is also
// raised there when that connection closes.
const (
	TopicPortStatus   = "port-status"
	TopicPacketIn     = "packet-in"
	TopicFlowRemoved  = "flow-removed"
	TopicBarrierReply = "barrier-reply"
)

// Connection is a live control channel to one switch. Per-connection
// messages (*PortStatus, *PacketIn, *FlowRemoved, *BarrierReply) are raised
// on it; observers must Unlisten when they stop caring about it.
type Connection interface {
	event.Source
	ID() uint64
	DPID() DPID
}

// Layer is the protocol layer. It raises *ConnectionUp and *ConnectionDown.
type Layer interface {
	event.Source
}

// ConnectionUp is raised once the handshake with a switch completes.
type ConnectionUp struct {
	DPID       DPID
	Connection Connection
	Features   *FeaturesReply
}

// ConnectionDown is raised when a switch's control channel closes.
type ConnectionDown struct {
	DPID       DPID
	Connection Connection
}
