package oftopo

import (
	"errors"
	"sort"

	"github.com/newtron-network/oftopo/pkg/openflow"
	"github.com/newtron-network/oftopo/pkg/util"
)

// PortChanges summarizes one reconciliation. Removed ports have Exists
// false and are no longer in the table.
type PortChanges struct {
	Added    []*Port
	Removed  []*Port
	Modified []*Port
}

// Empty reports whether the reconciliation changed nothing.
func (c PortChanges) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// PortTable is the per-switch table of ports, keyed by port number.
type PortTable struct {
	dpid  openflow.DPID
	ports map[openflow.PortNo]*Port
}

func newPortTable(dpid openflow.DPID) *PortTable {
	return &PortTable{
		dpid:  dpid,
		ports: make(map[openflow.PortNo]*Port),
	}
}

// Get returns the port with the given number, or nil.
func (t *PortTable) Get(no openflow.PortNo) *Port {
	return t.ports[no]
}

// Len returns the number of tracked ports.
func (t *PortTable) Len() int {
	return len(t.ports)
}

// Numbers returns the tracked port numbers in ascending order.
func (t *PortTable) Numbers() []openflow.PortNo {
	out := make([]openflow.PortNo, 0, len(t.ports))
	for no := range t.ports {
		out = append(out, no)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Ports returns the tracked ports ordered by number.
func (t *PortTable) Ports() []*Port {
	out := make([]*Port, 0, len(t.ports))
	for _, no := range t.Numbers() {
		out = append(out, t.ports[no])
	}
	return out
}

// Reconcile brings the table in line with a complete port list, as
// reported in a features reply. Ports missing from descs are dropped;
// ports already tracked are updated in place; new ports are created.
// A tracked port reported under a different name is treated as a
// different port: the old object is dropped and a new one created.
func (t *PortTable) Reconcile(descs []openflow.PhyPort) PortChanges {
	var changes PortChanges

	reported := make(map[openflow.PortNo]openflow.PhyPort, len(descs))
	for _, d := range descs {
		reported[d.PortNo] = d
	}

	for _, no := range t.Numbers() {
		d, ok := reported[no]
		if ok && d.Name == t.ports[no].Name {
			continue
		}
		changes.Removed = append(changes.Removed, t.remove(no))
	}

	seen := make(map[openflow.PortNo]bool, len(descs))
	for _, d := range descs {
		if seen[d.PortNo] {
			continue
		}
		seen[d.PortNo] = true
		d = reported[d.PortNo]

		if p, ok := t.ports[d.PortNo]; ok {
			if p.apply(d) {
				changes.Modified = append(changes.Modified, p)
			}
			continue
		}
		p := newPort(d)
		t.ports[d.PortNo] = p
		changes.Added = append(changes.Added, p)
	}

	return changes
}

// Apply applies one incremental port-status change. The existence
// precondition of each reason is enforced: add needs an untracked port,
// modify and delete need a tracked one. A violation returns a
// *util.ProtocolError and leaves the table untouched.
func (t *PortTable) Apply(reason openflow.PortReason, desc openflow.PhyPort) (*Port, error) {
	p, tracked := t.ports[desc.PortNo]

	switch reason {
	case openflow.PortReasonAdd:
		if tracked {
			return nil, t.violation(desc.PortNo, reason, "port must not already exist")
		}
		p = newPort(desc)
		t.ports[desc.PortNo] = p
		return p, nil

	case openflow.PortReasonModify:
		if !tracked {
			return nil, t.violation(desc.PortNo, reason, "port must already exist")
		}
		if _, err := p.Update(desc); err != nil {
			var pe *util.ProtocolError
			if errors.As(err, &pe) {
				pe.Switch = t.dpid.String()
			}
			return nil, err
		}
		return p, nil

	case openflow.PortReasonDelete:
		if !tracked {
			return nil, t.violation(desc.PortNo, reason, "port must already exist")
		}
		return t.remove(desc.PortNo), nil
	}

	return nil, t.violation(desc.PortNo, reason, "unknown reason code")
}

func (t *PortTable) remove(no openflow.PortNo) *Port {
	p := t.ports[no]
	p.Exists = false
	delete(t.ports, no)
	return p
}

func (t *PortTable) violation(no openflow.PortNo, reason openflow.PortReason, precondition string) error {
	return util.NewProtocolError(t.dpid.String(), uint16(no), reason.String(), precondition)
}
