package statedb

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/newtron-network/oftopo/pkg/oftopo"
	"github.com/newtron-network/oftopo/pkg/openflow"
)

// SwitchEntry is a SWITCH_TABLE entry.
type SwitchEntry struct {
	DPID         string `json:"dpid"`
	Connected    bool   `json:"connected"`
	Capabilities string `json:"capabilities,omitempty"`
	Ports        int    `json:"ports"`
	Updated      string `json:"updated,omitempty"`
}

// PortEntry is a PORT_TABLE entry.
type PortEntry struct {
	Switch      string   `json:"switch"`
	Number      int      `json:"number"`
	Name        string   `json:"name"`
	HWAddr      string   `json:"hw_addr,omitempty"`
	AdminStatus string   `json:"admin_status"`
	OperStatus  string   `json:"oper_status"`
	Neighbors   []string `json:"neighbors,omitempty"`
}

// LinkEntry is a LINK_TABLE entry.
type LinkEntry struct {
	DPID1 string `json:"dpid1"`
	Port1 int    `json:"port1"`
	DPID2 string `json:"dpid2"`
	Port2 int    `json:"port2"`
}

// Snapshot is the whole mirror as read back from Redis, sorted by key.
type Snapshot struct {
	Switches []SwitchEntry `json:"switches"`
	Ports    []PortEntry   `json:"ports"`
	Links    []LinkEntry   `json:"links"`
}

// Snapshot reads every mirror table.
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	for _, table := range []string{SwitchTable, PortTable, LinkTable} {
		keys, err := c.db.Keys(ctx, table+"|*")
		if err != nil {
			return nil, err
		}
		sort.Strings(keys)

		for _, key := range keys {
			_, entry, ok := splitKey(key)
			if !ok {
				continue
			}
			vals, err := c.db.HGetAll(ctx, key)
			if err != nil {
				continue
			}
			snap.parseEntry(table, entry, vals)
		}
	}

	sort.SliceStable(snap.Ports, func(i, j int) bool {
		a, b := snap.Ports[i], snap.Ports[j]
		if a.Switch != b.Switch {
			return a.Switch < b.Switch
		}
		return a.Number < b.Number
	})
	return snap, nil
}

// Capture builds the snapshot the mirror would hold for a's current state.
// It must run on a's loop.
func Capture(a *oftopo.Adaptor) *Snapshot {
	snap := &Snapshot{}
	now := a.Clock().Now()
	for _, sw := range a.Switches() {
		snap.parseEntry(SwitchTable, dpidKey(sw.DPID), switchFields(sw, now))
		for _, p := range sw.Ports.Ports() {
			snap.parseEntry(PortTable, dpidKey(sw.DPID)+"|"+strconv.Itoa(int(p.Number)), portFields(p))
		}
	}
	for _, l := range a.Links() {
		snap.parseEntry(LinkTable, "", linkFields(l))
	}
	return snap
}

func (s *Snapshot) parseEntry(table, entry string, vals map[string]string) {
	switch table {
	case SwitchTable:
		ports, _ := strconv.Atoi(vals["ports"])
		s.Switches = append(s.Switches, SwitchEntry{
			DPID:         vals["dpid"],
			Connected:    vals["connected"] == "true",
			Capabilities: vals["capabilities"],
			Ports:        ports,
			Updated:      vals["updated"],
		})

	case PortTable:
		// entry is <dpid>|<port>
		_, portStr, ok := strings.Cut(entry, "|")
		if !ok {
			return
		}
		num, _ := strconv.Atoi(portStr)
		var neighbors []string
		if n := vals["neighbors"]; n != "" {
			neighbors = strings.Split(n, ",")
		}
		s.Ports = append(s.Ports, PortEntry{
			Switch:      switchName(entry),
			Number:      num,
			Name:        vals["name"],
			HWAddr:      vals["hw_addr"],
			AdminStatus: vals["admin_status"],
			OperStatus:  vals["oper_status"],
			Neighbors:   neighbors,
		})

	case LinkTable:
		p1, _ := strconv.Atoi(vals["port1"])
		p2, _ := strconv.Atoi(vals["port2"])
		s.Links = append(s.Links, LinkEntry{
			DPID1: vals["dpid1"],
			Port1: p1,
			DPID2: vals["dpid2"],
			Port2: p2,
		})
	}
}

// switchName turns the hex key part of a port entry back into the display
// form of the dpid.
func switchName(entry string) string {
	hex, _, _ := strings.Cut(entry, "|")
	v, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return hex
	}
	return openflow.DPID(v).String()
}
