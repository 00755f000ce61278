package oftopo

import (
	"github.com/newtron-network/oftopo/pkg/discovery"
	"github.com/newtron-network/oftopo/pkg/openflow"
	"github.com/newtron-network/oftopo/pkg/util"
)

// ComponentName is the name the adaptor registers under.
const ComponentName = "openflow_topology"

// Topics raised on a Switch and, for every switch, on the Adaptor.
//
//	TopicSwitchJoin, TopicSwitchLeave           *Switch
//	TopicPortStatus                             *PortStatusEvent
//	TopicPortsReconciled                        *PortsReconciledEvent
//	TopicPacketIn, TopicFlowRemoved,
//	TopicBarrierReply                           *MessageEvent
const (
	TopicSwitchJoin      = "switch-join"
	TopicSwitchLeave     = "switch-leave"
	TopicPortStatus      = openflow.TopicPortStatus
	TopicPortsReconciled = "ports-reconciled"
	TopicPacketIn        = openflow.TopicPacketIn
	TopicFlowRemoved     = openflow.TopicFlowRemoved
	TopicBarrierReply    = openflow.TopicBarrierReply
)

// Topics raised only on the Adaptor.
//
//	TopicSwitchConnected, TopicSwitchDisconnected  *Switch
//	TopicLinkAdded, TopicLinkRemoved               *LinkChange
//	TopicProtocolViolation                         *ViolationEvent
//	TopicReady                                     *Adaptor
const (
	TopicSwitchConnected    = "switch-connected"
	TopicSwitchDisconnected = "switch-disconnected"
	TopicLinkAdded          = "link-added"
	TopicLinkRemoved        = "link-removed"
	TopicProtocolViolation  = "protocol-violation"
	TopicReady              = "ready"
)

// PortStatusEvent is a port-status message after it was applied to the
// switch's port table. Port is the tracked port (for deletes, the port that
// was just dropped, with Exists false).
type PortStatusEvent struct {
	Switch *Switch
	Port   *Port
	Status *openflow.PortStatus
}

// PortsReconciledEvent reports the effect of a full port-list
// reconciliation on (re)connect. It is raised only when something changed.
type PortsReconciledEvent struct {
	Switch  *Switch
	Changes PortChanges
}

// MessageEvent passes a per-connection message through unmodified.
type MessageEvent struct {
	Switch *Switch
	Msg    any
}

// LinkChange reports a neighbor relation appearing or disappearing.
// Superseded is set when a link was dropped because a newer link claimed
// one of its ports; Detached when one of its ports or switches went away.
type LinkChange struct {
	Link       discovery.Link
	Superseded bool
	Detached   bool
}

// ViolationEvent reports a port-status message that was dropped because
// it contradicted the switch's port table.
type ViolationEvent struct {
	Switch *Switch
	Err    *util.ProtocolError
}
