package journal

import (
	"sync/atomic"
	"time"

	"github.com/newtron-network/oftopo/pkg/event"
	"github.com/newtron-network/oftopo/pkg/oftopo"
	"github.com/newtron-network/oftopo/pkg/openflow"
	"github.com/newtron-network/oftopo/pkg/util"
)

// Recorder turns adaptor notifications into journal events. Its handlers
// run on the adaptor's loop.
type Recorder struct {
	log    Logger
	now    func() time.Time
	source event.Source
	subs   []event.ListenerID
	failed atomic.Uint64
}

// NewRecorder creates a recorder writing to log.
func NewRecorder(log Logger) *Recorder {
	return &Recorder{log: log, now: time.Now}
}

// Failed returns how many events could not be written.
func (r *Recorder) Failed() uint64 {
	return r.failed.Load()
}

// Attach subscribes the recorder to a's notifications. Timestamps come
// from a's clock.
func (r *Recorder) Attach(a *oftopo.Adaptor) {
	r.source = a
	r.now = a.Clock().Now
	on := func(topic string, fn event.Handler) {
		r.subs = append(r.subs, a.Listen(topic, fn))
	}

	on(oftopo.TopicSwitchJoin, func(ev any) {
		sw := ev.(*oftopo.Switch)
		r.record(r.switchEvent(EventSwitchJoin, sw).WithDetail("%d ports", sw.Ports.Len()))
	})
	on(oftopo.TopicSwitchLeave, func(ev any) {
		r.record(r.switchEvent(EventSwitchLeave, ev.(*oftopo.Switch)).WithSeverity(SeverityWarning))
	})
	on(oftopo.TopicSwitchConnected, func(ev any) {
		r.record(r.switchEvent(EventSwitchConnected, ev.(*oftopo.Switch)))
	})
	on(oftopo.TopicSwitchDisconnected, func(ev any) {
		r.record(r.switchEvent(EventSwitchDisconnected, ev.(*oftopo.Switch)).WithSeverity(SeverityWarning))
	})
	on(oftopo.TopicPortsReconciled, func(ev any) {
		rec := ev.(*oftopo.PortsReconciledEvent)
		for _, p := range rec.Changes.Added {
			r.record(r.portEvent(EventPortAdded, rec.Switch, p))
		}
		for _, p := range rec.Changes.Modified {
			r.record(r.portEvent(EventPortModified, rec.Switch, p))
		}
		for _, p := range rec.Changes.Removed {
			r.record(r.portEvent(EventPortDeleted, rec.Switch, p))
		}
	})
	on(oftopo.TopicPortStatus, func(ev any) {
		ps := ev.(*oftopo.PortStatusEvent)
		typ := EventPortModified
		switch ps.Status.Reason {
		case openflow.PortReasonAdd:
			typ = EventPortAdded
		case openflow.PortReasonDelete:
			typ = EventPortDeleted
		}
		r.record(r.portEvent(typ, ps.Switch, ps.Port))
	})
	on(oftopo.TopicLinkAdded, func(ev any) {
		r.record(r.linkEvent(EventLinkAdded, ev.(*oftopo.LinkChange)))
	})
	on(oftopo.TopicLinkRemoved, func(ev any) {
		r.record(r.linkEvent(EventLinkRemoved, ev.(*oftopo.LinkChange)))
	})
	on(oftopo.TopicProtocolViolation, func(ev any) {
		v := ev.(*oftopo.ViolationEvent)
		r.record(NewEvent(r.now(), EventProtocolViolation, v.Switch.DPID.String()).
			WithPort(int(v.Err.Port), "").
			WithSeverity(SeverityError).
			WithDetail("%s: %s", v.Err.Reason, v.Err.Precondition))
	})
}

func (r *Recorder) switchEvent(typ EventType, sw *oftopo.Switch) *Event {
	return NewEvent(r.now(), typ, sw.DPID.String())
}

func (r *Recorder) portEvent(typ EventType, sw *oftopo.Switch, p *oftopo.Port) *Event {
	e := NewEvent(r.now(), typ, sw.DPID.String()).WithPort(int(p.Number), p.Name)
	if typ == EventPortDeleted {
		return e
	}
	switch {
	case p.AdminDown():
		e.WithDetail("admin down")
	case p.LinkDown():
		e.WithDetail("link down")
	default:
		e.WithDetail("up")
	}
	return e
}

func (r *Recorder) linkEvent(typ EventType, lc *oftopo.LinkChange) *Event {
	l := lc.Link
	e := NewEvent(r.now(), typ, l.DPID1.String()).
		WithPort(int(l.Port1), "").
		WithPeer(l.DPID2.String(), int(l.Port2))
	switch {
	case lc.Superseded:
		e.WithDetail("superseded")
	case lc.Detached:
		e.WithDetail("detached")
	}
	return e
}

func (r *Recorder) record(e *Event) {
	if err := r.log.Log(e); err != nil {
		r.failed.Add(1)
		util.WithComponent("journal").Errorf("Writing journal event: %v", err)
	}
}

// Close unsubscribes the recorder. The logger stays open.
func (r *Recorder) Close() {
	if r.source != nil {
		r.source.Unlisten(r.subs...)
		r.subs = nil
	}
}
