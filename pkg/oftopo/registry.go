package oftopo

import (
	"errors"
	"time"

	"github.com/newtron-network/oftopo/pkg/event"
	"github.com/newtron-network/oftopo/pkg/openflow"
	"github.com/newtron-network/oftopo/pkg/topology"
	"github.com/newtron-network/oftopo/pkg/util"
)

// DefaultReconnectTimeout is how long a disconnected switch keeps its
// identity before it is removed from the topology.
const DefaultReconnectTimeout = 30 * time.Second

// SwitchRegistry owns the switch connection lifecycle: entity creation on
// first connect, connection hand-over on reconnect, the reconnect grace
// timer, and removal when the timer expires. All methods run on the loop.
type SwitchRegistry struct {
	loop  *event.Loop
	store *topology.Store
	grace time.Duration
	out   *event.Emitter

	// Called after a port leaves a switch's table, and before a switch
	// leaves the store, so neighbor relations can be detached.
	portRemoved   func(sw *Switch, p *Port)
	switchRemoved func(sw *Switch)
}

// NewSwitchRegistry creates a registry that keeps switches in store.
// Notifications for all switches are also raised on out, if non-nil.
func NewSwitchRegistry(loop *event.Loop, store *topology.Store, grace time.Duration, out *event.Emitter) *SwitchRegistry {
	if grace <= 0 {
		grace = DefaultReconnectTimeout
	}
	if out == nil {
		out = &event.Emitter{}
	}
	return &SwitchRegistry{
		loop:  loop,
		store: store,
		grace: grace,
		out:   out,
	}
}

// Get returns the switch registered for dpid, or nil.
func (r *SwitchRegistry) Get(dpid openflow.DPID) *Switch {
	sw, _ := r.store.GetEntityByID(topology.ID(dpid)).(*Switch)
	return sw
}

// Switches returns all registered switches ordered by dpid.
func (r *SwitchRegistry) Switches() []*Switch {
	var out []*Switch
	for _, e := range r.store.Entities() {
		if sw, ok := e.(*Switch); ok {
			out = append(out, sw)
		}
	}
	return out
}

// ConnectionUp handles a completed handshake. An unseen dpid gets a new
// Switch, which joins the topology; a known one keeps its identity. A
// switch that is still connected gets a warning and its connection is
// replaced.
func (r *SwitchRegistry) ConnectionUp(ev *openflow.ConnectionUp) *Switch {
	log := util.WithSwitch(ev.DPID)

	if other := r.store.GetEntityByID(topology.ID(ev.DPID)); other != nil {
		if _, ok := other.(*Switch); !ok {
			log.Errorf("Switch connected, but entity %d is not a switch; ignoring", other.EntityID())
			return nil
		}
	}

	sw := r.Get(ev.DPID)
	joined := false
	if sw == nil {
		sw = newSwitch(ev.DPID)
		joined = true
	} else if sw.conn != nil {
		log.Warn("Switch connected, but it's already connected")
	}

	r.setConnection(sw, ev.Connection, ev.Features)
	log.Info("Switch connected")

	if joined {
		if err := r.store.AddEntity(sw); err != nil {
			log.Errorf("Adding switch to topology: %v", err)
			return sw
		}
		sw.Emit(TopicSwitchJoin, sw)
		r.out.Emit(TopicSwitchJoin, sw)
	}
	r.out.Emit(TopicSwitchConnected, sw)
	return sw
}

// ConnectionDown handles a closed control channel. conn identifies the
// connection that closed; nil means whichever one is current. The switch
// keeps its identity until the grace timer expires.
func (r *SwitchRegistry) ConnectionDown(dpid openflow.DPID, conn openflow.Connection) {
	log := util.WithSwitch(dpid)

	sw := r.Get(dpid)
	if sw == nil {
		log.Warn("Switch disconnected, but it doesn't exist")
		return
	}

	switch {
	case sw.conn == nil && conn != nil && conn == sw.lastConn:
		log.Debug("Connection-down already handled on the connection")
		return
	case sw.conn == nil:
		log.Warn("Switch disconnected, but it wasn't connected")
	case conn != nil && conn != sw.conn:
		log.Warn("Superseded connection closed; keeping the live one")
		return
	}

	r.disconnect(sw)
	log.Info("Switch disconnected")
}

func (r *SwitchRegistry) disconnect(sw *Switch) {
	wasConnected := sw.conn != nil
	r.setConnection(sw, nil, nil)
	if wasConnected {
		r.out.Emit(TopicSwitchDisconnected, sw)
	}
}

// setConnection installs conn (nil to disconnect), refreshes capabilities
// and ports from features (if given), and moves the per-connection
// listeners over to conn.
func (r *SwitchRegistry) setConnection(sw *Switch, conn openflow.Connection, features *openflow.FeaturesReply) {
	if sw.conn != nil {
		sw.conn.Unlisten(sw.connListeners...)
		sw.lastConn = sw.conn
	}
	sw.connListeners = nil
	sw.conn = conn

	if conn != nil {
		sw.reconnect.Cancel()
		sw.reconnect = nil
	} else if !sw.reconnect.Pending() {
		sw.reconnect = r.loop.AfterFunc(r.grace, func() { r.reconnectTimeout(sw) })
	}

	if features != nil {
		sw.Capabilities = features.Capabilities
		changes := sw.Ports.Reconcile(features.Ports)
		for _, p := range changes.Removed {
			r.firePortRemoved(sw, p)
		}
		if !changes.Empty() {
			ev := &PortsReconciledEvent{Switch: sw, Changes: changes}
			sw.Emit(TopicPortsReconciled, ev)
			r.out.Emit(TopicPortsReconciled, ev)
		}
	}

	if conn != nil {
		sw.connListeners = []event.ListenerID{
			conn.Listen(openflow.TopicPortStatus, func(ev any) {
				r.portStatus(sw, ev.(*openflow.PortStatus))
			}),
			conn.Listen(openflow.TopicPacketIn, func(ev any) { r.passThrough(sw, TopicPacketIn, ev) }),
			conn.Listen(openflow.TopicFlowRemoved, func(ev any) { r.passThrough(sw, TopicFlowRemoved, ev) }),
			conn.Listen(openflow.TopicBarrierReply, func(ev any) { r.passThrough(sw, TopicBarrierReply, ev) }),
			conn.Listen(openflow.TopicConnectionDown, func(any) {
				if sw.conn == conn {
					r.disconnect(sw)
					util.WithSwitch(sw.DPID).Info("Switch disconnected")
				}
			}),
		}
	}
}

func (r *SwitchRegistry) reconnectTimeout(sw *Switch) {
	sw.reconnect = nil
	if r.switchRemoved != nil {
		r.switchRemoved(sw)
	}
	if err := r.store.RemoveEntity(sw); err != nil {
		util.WithSwitch(sw.DPID).Errorf("Removing switch from topology: %v", err)
	}
	util.WithSwitch(sw.DPID).Infof("Switch did not reconnect within %s; removed", r.grace)
	sw.Emit(TopicSwitchLeave, sw)
	r.out.Emit(TopicSwitchLeave, sw)
}

// PortStatus applies an incremental port change to sw and passes the
// message on. Precondition violations are logged, dropped, and returned.
func (r *SwitchRegistry) PortStatus(sw *Switch, ps *openflow.PortStatus) error {
	p, err := sw.Ports.Apply(ps.Reason, ps.Desc)
	if err != nil {
		util.WithPort(sw.DPID, uint16(ps.Desc.PortNo)).Errorf("Dropping port-status: %v", err)
		var pe *util.ProtocolError
		if errors.As(err, &pe) {
			r.out.Emit(TopicProtocolViolation, &ViolationEvent{Switch: sw, Err: pe})
		}
		return err
	}
	if ps.Reason == openflow.PortReasonDelete {
		r.firePortRemoved(sw, p)
	}

	ev := &PortStatusEvent{Switch: sw, Port: p, Status: ps}
	sw.Emit(TopicPortStatus, ev)
	r.out.Emit(TopicPortStatus, ev)
	return nil
}

func (r *SwitchRegistry) portStatus(sw *Switch, ps *openflow.PortStatus) {
	_ = r.PortStatus(sw, ps)
}

func (r *SwitchRegistry) firePortRemoved(sw *Switch, p *Port) {
	if r.portRemoved != nil {
		r.portRemoved(sw, p)
	}
}

func (r *SwitchRegistry) passThrough(sw *Switch, topic string, msg any) {
	ev := &MessageEvent{Switch: sw, Msg: msg}
	sw.Emit(topic, ev)
	r.out.Emit(topic, ev)
}
