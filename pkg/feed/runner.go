package feed

import (
	"fmt"
	"sort"
	"time"

	"github.com/newtron-network/oftopo/pkg/core"
	"github.com/newtron-network/oftopo/pkg/discovery"
	"github.com/newtron-network/oftopo/pkg/event"
	"github.com/newtron-network/oftopo/pkg/oftopo"
	"github.com/newtron-network/oftopo/pkg/openflow"
	"github.com/newtron-network/oftopo/pkg/topology"
	"github.com/newtron-network/oftopo/pkg/util"
)

// Runner applies steps to a scripted protocol layer, a scripted discovery
// layer and a topology store, and checks expectations against the adaptor
// watching them. Apply and Check must run on the adaptor's loop.
type Runner struct {
	loop     *event.Loop
	clock    *event.ManualClock
	registry *core.Registry
	adaptor  *oftopo.Adaptor

	Protocol  *Protocol
	Discovery *Discovery
	Store     *topology.Store

	joins  int
	leaves int
}

// NewRunner creates a runner for a. clock may be nil for a live run, in
// which case advance steps are rejected.
func NewRunner(loop *event.Loop, clock *event.ManualClock, registry *core.Registry, a *oftopo.Adaptor) *Runner {
	r := &Runner{
		loop:      loop,
		clock:     clock,
		registry:  registry,
		adaptor:   a,
		Protocol:  NewProtocol(),
		Discovery: NewDiscovery(),
		Store:     topology.NewStore(),
	}
	a.Listen(oftopo.TopicSwitchJoin, func(any) { r.joins++ })
	a.Listen(oftopo.TopicSwitchLeave, func(any) { r.leaves++ })
	return r
}

// Loop returns the loop the runner's adaptor runs on.
func (r *Runner) Loop() *event.Loop { return r.loop }

// Adaptor returns the adaptor under test.
func (r *Runner) Adaptor() *oftopo.Adaptor { return r.adaptor }

// Joins returns the number of switch-join notifications seen.
func (r *Runner) Joins() int { return r.joins }

// Leaves returns the number of switch-leave notifications seen.
func (r *Runner) Leaves() int { return r.leaves }

// Register registers the named scripted component with the registry.
func (r *Runner) Register(name string) error {
	var c any
	switch name {
	case openflow.ComponentName:
		c = r.Protocol
	case topology.ComponentName:
		c = r.Store
	case discovery.ComponentName:
		c = r.Discovery
	default:
		return fmt.Errorf("unknown component %q: %w", name, util.ErrNotFound)
	}
	return r.registry.Register(name, c)
}

// Apply performs one step.
func (r *Runner) Apply(step *Step) error {
	switch step.Action {
	case ActionRegister:
		return r.Register(step.Component)

	case ActionConnect:
		ports, err := ExpandPorts(step.Ports)
		if err != nil {
			return err
		}
		r.Protocol.Connect(step.DPID, &openflow.FeaturesReply{
			Capabilities: step.Capabilities,
			Ports:        ports,
		})

	case ActionDisconnect:
		r.Protocol.Disconnect(step.DPID)

	case ActionPortStatus:
		reason, err := openflow.ParsePortReason(step.Reason)
		if err != nil {
			return err
		}
		ports, err := step.Port.Expand()
		if err != nil {
			return err
		}
		return r.Protocol.PortStatus(step.DPID, reason, ports[0])

	case ActionPacketIn:
		return r.Protocol.Send(step.DPID, openflow.TopicPacketIn, &openflow.PacketIn{InPort: step.InPort})

	case ActionBarrierReply:
		return r.Protocol.Send(step.DPID, openflow.TopicBarrierReply, &openflow.BarrierReply{XID: step.XID})

	case ActionLinkUp:
		r.Discovery.LinkUp(*step.Link)

	case ActionLinkDown:
		r.Discovery.LinkDown(*step.Link)

	case ActionAdvance:
		if r.clock == nil {
			return fmt.Errorf("advance needs a manual clock")
		}
		r.clock.Advance(time.Duration(step.Duration))

	case ActionExpect:
		return r.Check(step.Expect)

	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
	return nil
}

// Check compares the adaptor state with e.
func (r *Runner) Check(e *Expect) error {
	a := r.adaptor
	v := &util.ValidationBuilder{}

	switches := a.Switches()
	connected := 0
	for _, sw := range switches {
		if sw.Connected() {
			connected++
		}
	}

	if e.Ready != nil {
		v.Add(a.Ready() == *e.Ready, fmt.Sprintf("ready = %v, want %v", a.Ready(), *e.Ready))
	}
	checkCount(v, "switches", len(switches), e.Switches)
	checkCount(v, "connected", connected, e.Connected)
	checkCount(v, "links", len(a.Links()), e.Links)
	checkCount(v, "joins", r.joins, e.Joins)
	checkCount(v, "leaves", r.leaves, e.Leaves)

	for _, pe := range e.Ports {
		sw := a.Switch(pe.DPID)
		if sw == nil {
			v.AddErrorf("switch %s: not in topology", pe.DPID)
			continue
		}
		want, err := util.ExpandRange(pe.Ports)
		if err != nil {
			v.AddErrorf("switch %s: %v", pe.DPID, err)
			continue
		}
		var got []int
		for _, no := range sw.Ports.Numbers() {
			got = append(got, int(no))
		}
		if g, w := util.CompactRange(got), util.CompactRange(want); g != w {
			v.AddErrorf("switch %s: ports = [%s], want [%s]", pe.DPID, g, w)
		}
	}

	for _, ne := range e.Neighbors {
		sw := a.Switch(ne.DPID)
		if sw == nil {
			v.AddErrorf("switch %s: not in topology", ne.DPID)
			continue
		}
		p := sw.Ports.Get(ne.Port)
		if p == nil {
			v.AddErrorf("switch %s: no port %s", ne.DPID, ne.Port)
			continue
		}
		var got []string
		for _, n := range p.Neighbors() {
			got = append(got, openflow.DPID(n.EntityID()).String())
		}
		var want []string
		for _, d := range ne.Peers {
			want = append(want, d.String())
		}
		sort.Strings(got)
		sort.Strings(want)
		if fmt.Sprint(got) != fmt.Sprint(want) {
			v.AddErrorf("switch %s port %s: neighbors = %v, want %v", ne.DPID, ne.Port, got, want)
		}
	}

	return v.Build()
}

func checkCount(v *util.ValidationBuilder, what string, got int, want *int) {
	if want != nil && got != *want {
		v.AddErrorf("%s = %d, want %d", what, got, *want)
	}
}

// Replay runs sc to completion on a manual clock. attach, if non-nil, is
// called with the adaptor before anything is registered so recorders can
// subscribe. Replay stops at the first failing step.
func Replay(sc *Scenario, cfg oftopo.Config, attach func(*oftopo.Adaptor)) (*Runner, error) {
	if sc.ReconnectTimeout > 0 {
		cfg.ReconnectTimeout = time.Duration(sc.ReconnectTimeout)
	}

	clock := event.NewManualClock(time.Unix(0, 0).UTC())
	loop := event.NewLoop(clock)
	registry := core.NewRegistry()
	a := oftopo.New(loop, registry, cfg)
	if attach != nil {
		attach(a)
	}
	r := NewRunner(loop, clock, registry, a)

	a.Start()
	for _, name := range sc.Register {
		if err := r.Register(name); err != nil {
			return r, err
		}
	}
	loop.RunPending()

	for i := range sc.Steps {
		step := &sc.Steps[i]
		util.WithField("step", i+1).Debugf("Replay: %s", step)
		if err := r.Apply(step); err != nil {
			return r, fmt.Errorf("step %d (%s): %w", i+1, step, err)
		}
		loop.RunPending()
	}
	return r, nil
}
