package statedb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/newtron-network/oftopo/pkg/discovery"
	"github.com/newtron-network/oftopo/pkg/event"
	"github.com/newtron-network/oftopo/pkg/oftopo"
	"github.com/newtron-network/oftopo/pkg/openflow"
	"github.com/newtron-network/oftopo/pkg/util"
)

const queueSize = 1024

// write is one batch of Redis changes, built on the loop and executed on
// the writer goroutine.
type write struct {
	set map[string]map[string]string
	del []string
	// delPattern removes every key matching a glob.
	delPattern string
}

// MirrorStats counts mirror activity.
type MirrorStats struct {
	Written uint64
	Dropped uint64
	Failed  uint64
}

// Mirror copies adaptor notifications into the mirror tables. Handlers run
// on the adaptor's loop and only snapshot state; the Redis writes happen on
// a separate goroutine so the loop never waits on I/O.
type Mirror struct {
	client  *Client
	queue   chan write
	wg      sync.WaitGroup
	source  event.Source
	subs    []event.ListenerID
	now     func() time.Time
	closing sync.Once

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewMirror starts a mirror writing through client.
func NewMirror(client *Client) *Mirror {
	m := &Mirror{
		client: client,
		queue:  make(chan write, queueSize),
		now:    time.Now,
	}
	m.wg.Add(1)
	go m.writer()
	return m
}

// Attach subscribes the mirror to a's notifications.
func (m *Mirror) Attach(a *oftopo.Adaptor) {
	m.source = a
	m.now = a.Clock().Now
	on := func(topic string, fn event.Handler) {
		m.subs = append(m.subs, a.Listen(topic, fn))
	}

	on(oftopo.TopicSwitchJoin, func(ev any) { m.syncSwitch(ev.(*oftopo.Switch)) })
	on(oftopo.TopicSwitchConnected, func(ev any) { m.syncSwitch(ev.(*oftopo.Switch)) })
	on(oftopo.TopicSwitchDisconnected, func(ev any) { m.syncSwitch(ev.(*oftopo.Switch)) })
	on(oftopo.TopicSwitchLeave, func(ev any) { m.removeSwitch(ev.(*oftopo.Switch)) })
	on(oftopo.TopicPortsReconciled, func(ev any) {
		rec := ev.(*oftopo.PortsReconciledEvent)
		w := write{}
		for _, p := range rec.Changes.Removed {
			w.del = append(w.del, portKey(rec.Switch.DPID, p.Number))
		}
		m.enqueue(w)
	})
	on(oftopo.TopicPortStatus, func(ev any) {
		ps := ev.(*oftopo.PortStatusEvent)
		if !ps.Port.Exists {
			m.enqueue(write{del: []string{portKey(ps.Switch.DPID, ps.Port.Number)}})
		}
		m.syncSwitch(ps.Switch)
	})
	on(oftopo.TopicLinkAdded, func(ev any) {
		l := ev.(*oftopo.LinkChange).Link
		m.enqueue(write{set: map[string]map[string]string{linkKey(l): linkFields(l)}})
		m.syncLinkEnds(a, l)
	})
	on(oftopo.TopicLinkRemoved, func(ev any) {
		l := ev.(*oftopo.LinkChange).Link
		m.enqueue(write{del: []string{linkKey(l)}})
		m.syncLinkEnds(a, l)
	})
}

// syncSwitch rewrites the switch entry and every port entry of sw.
func (m *Mirror) syncSwitch(sw *oftopo.Switch) {
	w := write{set: make(map[string]map[string]string)}
	w.set[switchKey(sw.DPID)] = switchFields(sw, m.now())
	for _, p := range sw.Ports.Ports() {
		w.set[portKey(sw.DPID, p.Number)] = portFields(p)
	}
	m.enqueue(w)
}

func (m *Mirror) syncLinkEnds(a *oftopo.Adaptor, l discovery.Link) {
	for _, end := range []struct {
		dpid openflow.DPID
		port openflow.PortNo
	}{{l.DPID1, l.Port1}, {l.DPID2, l.Port2}} {
		sw := a.Switch(end.dpid)
		if sw == nil {
			continue
		}
		if p := sw.Ports.Get(end.port); p != nil {
			m.enqueue(write{set: map[string]map[string]string{portKey(sw.DPID, p.Number): portFields(p)}})
		}
	}
}

func (m *Mirror) removeSwitch(sw *oftopo.Switch) {
	m.enqueue(write{
		del:        []string{switchKey(sw.DPID)},
		delPattern: PortTable + "|" + dpidKey(sw.DPID) + "|*",
	})
}

func (m *Mirror) enqueue(w write) {
	select {
	case m.queue <- w:
	default:
		m.dropped.Add(1)
		util.WithComponent("statedb").Warn("Mirror queue full; dropping update")
	}
}

func (m *Mirror) writer() {
	defer m.wg.Done()
	ctx := context.Background()
	for w := range m.queue {
		if err := m.apply(ctx, w); err != nil {
			m.failed.Add(1)
			util.WithComponent("statedb").Errorf("Mirror write failed: %v", err)
			continue
		}
		m.written.Add(1)
	}
}

func (m *Mirror) apply(ctx context.Context, w write) error {
	db := m.client.db
	del := w.del
	if w.delPattern != "" {
		keys, err := db.Keys(ctx, w.delPattern)
		if err != nil {
			return err
		}
		del = append(del, keys...)
	}
	if len(del) > 0 {
		if err := db.Del(ctx, del...); err != nil {
			return err
		}
	}
	for key, fields := range w.set {
		if err := db.HSet(ctx, key, fields); err != nil {
			return fmt.Errorf("writing %s: %w", key, err)
		}
	}
	return nil
}

// Stats returns the mirror's counters.
func (m *Mirror) Stats() MirrorStats {
	return MirrorStats{
		Written: m.written.Load(),
		Dropped: m.dropped.Load(),
		Failed:  m.failed.Load(),
	}
}

// Close unsubscribes, flushes queued writes and stops the writer. It must
// run on the adaptor's loop (or after it stopped).
func (m *Mirror) Close() {
	m.closing.Do(func() {
		if m.source != nil {
			m.source.Unlisten(m.subs...)
		}
		close(m.queue)
		m.wg.Wait()
	})
}

func dpidKey(d openflow.DPID) string {
	return fmt.Sprintf("%016x", uint64(d))
}

func switchKey(d openflow.DPID) string {
	return SwitchTable + "|" + dpidKey(d)
}

func portKey(d openflow.DPID, no openflow.PortNo) string {
	return PortTable + "|" + dpidKey(d) + "|" + strconv.Itoa(int(no))
}

func linkKey(l discovery.Link) string {
	l = l.Canonical()
	return fmt.Sprintf("%s|%s|%d|%s|%d", LinkTable, dpidKey(l.DPID1), l.Port1, dpidKey(l.DPID2), l.Port2)
}

func switchFields(sw *oftopo.Switch, now time.Time) map[string]string {
	return map[string]string{
		"dpid":         sw.DPID.String(),
		"connected":    strconv.FormatBool(sw.Connected()),
		"capabilities": fmt.Sprintf("0x%x", sw.Capabilities),
		"ports":        strconv.Itoa(sw.Ports.Len()),
		"updated":      now.UTC().Format(time.RFC3339),
	}
}

func portFields(p *oftopo.Port) map[string]string {
	admin, oper := "up", "up"
	if p.AdminDown() {
		admin = "down"
	}
	if p.LinkDown() {
		oper = "down"
	}
	var peers []string
	for _, n := range p.Neighbors() {
		peers = append(peers, openflow.DPID(n.EntityID()).String())
	}
	return map[string]string{
		"name":         p.Name,
		"hw_addr":      p.HWAddr.String(),
		"admin_status": admin,
		"oper_status":  oper,
		"neighbors":    strings.Join(peers, ","),
	}
}

func linkFields(l discovery.Link) map[string]string {
	l = l.Canonical()
	return map[string]string{
		"dpid1": l.DPID1.String(),
		"port1": strconv.Itoa(int(l.Port1)),
		"dpid2": l.DPID2.String(),
		"port2": strconv.Itoa(int(l.Port2)),
	}
}
