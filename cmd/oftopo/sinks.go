package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/newtron-network/oftopo/pkg/journal"
	"github.com/newtron-network/oftopo/pkg/metrics"
	"github.com/newtron-network/oftopo/pkg/oftopo"
	"github.com/newtron-network/oftopo/pkg/settings"
	"github.com/newtron-network/oftopo/pkg/statedb"
	"github.com/newtron-network/oftopo/pkg/util"
)

// sinks are the optional consumers of adaptor notifications.
type sinks struct {
	client    *statedb.Client
	mirror    *statedb.Mirror
	journal   *journal.FileLogger
	recorder  *journal.Recorder
	collector *metrics.Collector
}

// openSinks opens every consumer enabled in s. With serve set, the metrics
// endpoint is started and stops with ctx.
func openSinks(ctx context.Context, s *settings.Settings, serve bool) (*sinks, error) {
	k := &sinks{}

	if s.StateDB.Enabled() {
		client, err := statedb.Dial(ctx, s.StateDBOptions())
		if err != nil {
			return nil, err
		}
		if err := client.Clear(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("clearing mirror tables: %w", err)
		}
		k.client = client
		k.mirror = statedb.NewMirror(client)
	}

	if s.Journal.Path != "" {
		log, err := journal.NewFileLogger(s.Journal.Path, s.JournalRotation())
		if err != nil {
			k.close()
			return nil, err
		}
		k.journal = log
		k.recorder = journal.NewRecorder(log)
	}

	if serve && s.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		k.collector = metrics.NewCollector(reg)
		go func() {
			if err := metrics.Serve(ctx, s.Metrics.Addr, reg); err != nil {
				util.WithComponent("metrics").Error(err)
			}
		}()
	}
	return k, nil
}

// attach subscribes every open consumer to a.
func (k *sinks) attach(a *oftopo.Adaptor) {
	if k.mirror != nil {
		k.mirror.Attach(a)
	}
	if k.recorder != nil {
		k.recorder.Attach(a)
	}
	if k.collector != nil {
		k.collector.Attach(a)
	}
}

// close flushes and closes the consumers. The adaptor's loop must have
// stopped.
func (k *sinks) close() {
	if k.collector != nil {
		k.collector.Close()
	}
	if k.recorder != nil {
		k.recorder.Close()
	}
	if k.journal != nil {
		k.journal.Close()
	}
	if k.mirror != nil {
		k.mirror.Close()
		if s := k.mirror.Stats(); s.Dropped > 0 || s.Failed > 0 {
			util.WithComponent("statedb").Warnf("Mirror dropped %d and failed %d writes", s.Dropped, s.Failed)
		}
	}
	if k.client != nil {
		k.client.Close()
	}
}
