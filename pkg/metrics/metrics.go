// Package metrics exports the adaptor's state and activity to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/newtron-network/oftopo/pkg/event"
	"github.com/newtron-network/oftopo/pkg/oftopo"
	"github.com/newtron-network/oftopo/pkg/util"
)

// HandlerTimeout bounds a single scrape.
const HandlerTimeout = time.Minute

var (
	SwitchesMeta = MetricMeta{
		Name: "oftopo_switches",
		Help: "Number of switches in the topology, connected or within their reconnect window.",
	}
	ConnectedMeta = MetricMeta{
		Name: "oftopo_switches_connected",
		Help: "Number of switches with a live control connection.",
	}
	PortsMeta = MetricMeta{
		Name: "oftopo_ports",
		Help: "Number of tracked ports across all switches.",
	}
	LinksMeta = MetricMeta{
		Name: "oftopo_links",
		Help: "Number of active links.",
	}
	SwitchEventsMeta = MetricMeta{
		Name:   "oftopo_switch_events_total",
		Help:   "Total number of switch lifecycle events.",
		Labels: []string{"event"},
	}
	PortStatusMeta = MetricMeta{
		Name:   "oftopo_port_status_total",
		Help:   "Total number of port-status messages applied.",
		Labels: []string{"reason"},
	}
	LinkChangesMeta = MetricMeta{
		Name:   "oftopo_link_changes_total",
		Help:   "Total number of link changes.",
		Labels: []string{"change"},
	}
	ViolationsMeta = MetricMeta{
		Name:   "oftopo_protocol_violations_total",
		Help:   "Total number of port-status messages dropped as protocol violations.",
		Labels: []string{"reason"},
	}
	MessagesMeta = MetricMeta{
		Name:   "oftopo_messages_total",
		Help:   "Total number of per-switch messages passed through.",
		Labels: []string{"type"},
	}
)

// MetricMeta describes one metric.
type MetricMeta struct {
	Name   string
	Help   string
	Labels []string
}

func (mm *MetricMeta) NewGauge(f promauto.Factory) prometheus.Gauge {
	return f.NewGauge(prometheus.GaugeOpts{Name: mm.Name, Help: mm.Help})
}

func (mm *MetricMeta) NewCounterVec(f promauto.Factory) *prometheus.CounterVec {
	return f.NewCounterVec(prometheus.CounterOpts{Name: mm.Name, Help: mm.Help}, mm.Labels)
}

// Collector holds the adaptor metrics.
type Collector struct {
	Switches     prometheus.Gauge
	Connected    prometheus.Gauge
	Ports        prometheus.Gauge
	Links        prometheus.Gauge
	SwitchEvents *prometheus.CounterVec
	PortStatus   *prometheus.CounterVec
	LinkChanges  *prometheus.CounterVec
	Violations   *prometheus.CounterVec
	Messages     *prometheus.CounterVec

	source event.Source
	subs   []event.ListenerID
}

// NewCollector creates the metrics and registers them with reg. A nil reg
// uses the default registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collector{
		Switches:     SwitchesMeta.NewGauge(f),
		Connected:    ConnectedMeta.NewGauge(f),
		Ports:        PortsMeta.NewGauge(f),
		Links:        LinksMeta.NewGauge(f),
		SwitchEvents: SwitchEventsMeta.NewCounterVec(f),
		PortStatus:   PortStatusMeta.NewCounterVec(f),
		LinkChanges:  LinkChangesMeta.NewCounterVec(f),
		Violations:   ViolationsMeta.NewCounterVec(f),
		Messages:     MessagesMeta.NewCounterVec(f),
	}
}

// Attach subscribes the collector to a's notifications.
func (c *Collector) Attach(a *oftopo.Adaptor) {
	c.source = a
	on := func(topic string, fn event.Handler) {
		c.subs = append(c.subs, a.Listen(topic, fn))
	}
	switchEvent := func(topic string) {
		on(topic, func(any) {
			c.SwitchEvents.WithLabelValues(topic).Inc()
			c.refresh(a)
		})
	}

	switchEvent(oftopo.TopicSwitchJoin)
	switchEvent(oftopo.TopicSwitchLeave)
	switchEvent(oftopo.TopicSwitchConnected)
	switchEvent(oftopo.TopicSwitchDisconnected)

	on(oftopo.TopicPortsReconciled, func(any) { c.refresh(a) })
	on(oftopo.TopicPortStatus, func(ev any) {
		c.PortStatus.WithLabelValues(ev.(*oftopo.PortStatusEvent).Status.Reason.String()).Inc()
		c.refresh(a)
	})
	on(oftopo.TopicProtocolViolation, func(ev any) {
		c.Violations.WithLabelValues(ev.(*oftopo.ViolationEvent).Err.Reason).Inc()
	})
	on(oftopo.TopicLinkAdded, func(any) {
		c.LinkChanges.WithLabelValues("added").Inc()
		c.refresh(a)
	})
	on(oftopo.TopicLinkRemoved, func(ev any) {
		lc := ev.(*oftopo.LinkChange)
		change := "removed"
		switch {
		case lc.Superseded:
			change = "superseded"
		case lc.Detached:
			change = "detached"
		}
		c.LinkChanges.WithLabelValues(change).Inc()
		c.refresh(a)
	})
	for _, topic := range []string{oftopo.TopicPacketIn, oftopo.TopicFlowRemoved, oftopo.TopicBarrierReply} {
		topic := topic
		on(topic, func(any) { c.Messages.WithLabelValues(topic).Inc() })
	}

	c.refresh(a)
}

// refresh recomputes the gauges from the adaptor's state.
func (c *Collector) refresh(a *oftopo.Adaptor) {
	switches := a.Switches()
	connected, ports := 0, 0
	for _, sw := range switches {
		if sw.Connected() {
			connected++
		}
		ports += sw.Ports.Len()
	}
	c.Switches.Set(float64(len(switches)))
	c.Connected.Set(float64(connected))
	c.Ports.Set(float64(ports))
	c.Links.Set(float64(len(a.Links())))
}

// Close unsubscribes the collector.
func (c *Collector) Close() {
	if c.source != nil {
		c.source.Unlisten(c.subs...)
		c.subs = nil
	}
}

// Serve exposes reg's metrics on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(
		reg,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{Timeout: HandlerTimeout}),
	))
	util.WithComponent("metrics").Infof("Exporting prometheus metrics on %s", addr)

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving prometheus metrics: %w", err)
	}
	return nil
}
