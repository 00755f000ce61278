// Package oftopo keeps a protocol-agnostic topology in step with the
// switches an OpenFlow controller is talking to.
//
// Switch connections, port-status messages and link-discovery events come
// in; a stable set of switch entities with port tables and port neighbor
// relations comes out, together with join/leave notifications. A switch
// keeps its identity across a reconnect as long as it comes back within the
// grace window.
//
// Everything in this package runs on a single event.Loop. The protocol and
// discovery layers must raise their events on that loop.
package oftopo

import (
	"fmt"
	"time"

	"github.com/newtron-network/oftopo/pkg/core"
	"github.com/newtron-network/oftopo/pkg/discovery"
	"github.com/newtron-network/oftopo/pkg/event"
	"github.com/newtron-network/oftopo/pkg/openflow"
	"github.com/newtron-network/oftopo/pkg/topology"
	"github.com/newtron-network/oftopo/pkg/util"
)

// DefaultRequiredComponents are the collaborators the adaptor waits for
// unless configured otherwise.
var DefaultRequiredComponents = []string{
	openflow.ComponentName,
	topology.ComponentName,
	discovery.ComponentName,
}

// Config configures an Adaptor.
type Config struct {
	ReconnectTimeout   time.Duration
	RequiredComponents []string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectTimeout:   DefaultReconnectTimeout,
		RequiredComponents: append([]string(nil), DefaultRequiredComponents...),
	}
}

// Deps are the collaborators bound by the gate. A field stays nil if its
// component was not required.
type Deps struct {
	OpenFlow  openflow.Layer
	Topology  *topology.Store
	Discovery discovery.Layer

	// Other holds required components with names the adaptor has no
	// special use for.
	Other map[string]any
}

type subscription struct {
	src event.Source
	id  event.ListenerID
}

// Adaptor wires the gate, switch registry and link translator together.
// Its embedded Emitter carries the notifications for all switches: join,
// leave, port changes, link changes and pass-through protocol messages.
type Adaptor struct {
	event.Emitter

	loop     *event.Loop
	registry *core.Registry
	cfg      Config

	gate     *Gate
	deps     Deps
	switches *SwitchRegistry
	links    *LinkTranslator
	subs     []subscription
}

// New creates an adaptor that resolves its collaborators from registry.
// Nothing happens until Start.
func New(loop *event.Loop, registry *core.Registry, cfg Config) *Adaptor {
	if cfg.ReconnectTimeout <= 0 {
		cfg.ReconnectTimeout = DefaultReconnectTimeout
	}
	if cfg.RequiredComponents == nil {
		cfg.RequiredComponents = append([]string(nil), DefaultRequiredComponents...)
	}

	a := &Adaptor{
		loop:     loop,
		registry: registry,
		cfg:      cfg,
	}
	a.gate = NewGate(ComponentName, cfg.RequiredComponents, registry, a.bind)
	a.gate.OnReady(a.activate)
	return a
}

// Start begins watching the registry. It must run on the loop goroutine, or
// before the loop starts. It reports whether the adaptor is already ready.
func (a *Adaptor) Start() bool {
	return a.gate.Watch(a.registry, a.loop.Post)
}

func (a *Adaptor) bind(name string, component any) error {
	switch name {
	case openflow.ComponentName:
		layer, ok := component.(openflow.Layer)
		if !ok {
			return fmt.Errorf("%s is %T, not an openflow layer", name, component)
		}
		a.deps.OpenFlow = layer
	case topology.ComponentName:
		store, ok := component.(*topology.Store)
		if !ok {
			return fmt.Errorf("%s is %T, not a topology store", name, component)
		}
		a.deps.Topology = store
	case discovery.ComponentName:
		layer, ok := component.(discovery.Layer)
		if !ok {
			return fmt.Errorf("%s is %T, not a discovery layer", name, component)
		}
		a.deps.Discovery = layer
	default:
		if a.deps.Other == nil {
			a.deps.Other = make(map[string]any)
		}
		a.deps.Other[name] = component
	}
	return nil
}

// activate runs once, when the gate becomes ready.
func (a *Adaptor) activate() {
	store := a.deps.Topology
	if store == nil {
		store = topology.NewStore()
		a.deps.Topology = store
	}

	a.switches = NewSwitchRegistry(a.loop, store, a.cfg.ReconnectTimeout, &a.Emitter)
	a.links = NewLinkTranslator(a.switches.Get, &a.Emitter)
	a.switches.portRemoved = a.links.DetachPort
	a.switches.switchRemoved = a.links.DetachSwitch

	if of := a.deps.OpenFlow; of != nil {
		a.listen(of, openflow.TopicConnectionUp, func(ev any) {
			a.switches.ConnectionUp(ev.(*openflow.ConnectionUp))
		})
		a.listen(of, openflow.TopicConnectionDown, func(ev any) {
			down := ev.(*openflow.ConnectionDown)
			a.switches.ConnectionDown(down.DPID, down.Connection)
		})
	}
	if disc := a.deps.Discovery; disc != nil {
		a.listen(disc, discovery.TopicLink, func(ev any) {
			a.links.HandleLinkEvent(ev.(*discovery.LinkEvent))
		})
	}

	util.WithComponent(ComponentName).Infof("Ready; reconnect timeout %s", a.cfg.ReconnectTimeout)
	a.Emit(TopicReady, a)
}

func (a *Adaptor) listen(src event.Source, topic string, fn event.Handler) {
	a.subs = append(a.subs, subscription{src: src, id: src.Listen(topic, fn)})
}

// Ready reports whether all required collaborators are bound.
func (a *Adaptor) Ready() bool {
	return a.gate.Ready()
}

// Err returns why the adaptor is not ready yet, or nil.
func (a *Adaptor) Err() error {
	return a.gate.Err()
}

// Pending returns the collaborators still missing.
func (a *Adaptor) Pending() []string {
	return a.gate.Pending()
}

// Deps returns the bound collaborators.
func (a *Adaptor) Deps() Deps {
	return a.deps
}

// Clock returns the clock the adaptor's loop runs on.
func (a *Adaptor) Clock() event.Clock {
	return a.loop.Clock()
}

// Store returns the topology store, or nil before readiness.
func (a *Adaptor) Store() *topology.Store {
	if !a.Ready() {
		return nil
	}
	return a.deps.Topology
}

// Switch returns the switch for dpid, or nil.
func (a *Adaptor) Switch(dpid openflow.DPID) *Switch {
	if a.switches == nil {
		return nil
	}
	return a.switches.Get(dpid)
}

// Switches returns all switches in the topology, ordered by dpid.
func (a *Adaptor) Switches() []*Switch {
	if a.switches == nil {
		return nil
	}
	return a.switches.Switches()
}

// Links returns the active links in canonical orientation.
func (a *Adaptor) Links() []discovery.Link {
	if a.links == nil {
		return nil
	}
	return a.links.Links()
}

// PortStatus applies a port-status message to the switch for dpid as if
// it had arrived on the switch's connection.
func (a *Adaptor) PortStatus(dpid openflow.DPID, ps *openflow.PortStatus) error {
	if !a.Ready() {
		return util.ErrNotReady
	}
	sw := a.switches.Get(dpid)
	if sw == nil {
		return fmt.Errorf("switch %s: %w", dpid, util.ErrNotFound)
	}
	return a.switches.PortStatus(sw, ps)
}

// Close drops every subscription the adaptor holds. Switch state is left
// as it is.
func (a *Adaptor) Close() {
	a.gate.Stop()
	for _, sub := range a.subs {
		sub.src.Unlisten(sub.id)
	}
	a.subs = nil
}
