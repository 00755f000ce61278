// Package journal records topology changes to a JSON-lines file.
package journal

import (
	"fmt"
	"sync/atomic"
	"time"
)

// EventType categorizes journal events
type EventType string

const (
	EventSwitchJoin         EventType = "switch-join"
	EventSwitchLeave        EventType = "switch-leave"
	EventSwitchConnected    EventType = "switch-connected"
	EventSwitchDisconnected EventType = "switch-disconnected"
	EventPortAdded          EventType = "port-added"
	EventPortModified       EventType = "port-modified"
	EventPortDeleted        EventType = "port-deleted"
	EventLinkAdded          EventType = "link-added"
	EventLinkRemoved        EventType = "link-removed"
	EventProtocolViolation  EventType = "protocol-violation"
)

// Severity indicates the importance of a journal event
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one recorded topology change
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Severity  Severity  `json:"severity"`
	Switch    string    `json:"dpid,omitempty"`
	Port      int       `json:"port,omitempty"`
	PortName  string    `json:"port_name,omitempty"`
	Peer      string    `json:"peer,omitempty"`
	PeerPort  int       `json:"peer_port,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Filter defines criteria for querying journal events
type Filter struct {
	Switch    string
	Type      EventType
	Severity  Severity
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

var seq atomic.Uint64

// NewEvent creates a new journal event at ts
func NewEvent(ts time.Time, typ EventType, dpid string) *Event {
	return &Event{
		ID:        fmt.Sprintf("%d-%d", ts.UnixNano(), seq.Add(1)),
		Timestamp: ts,
		Type:      typ,
		Severity:  SeverityInfo,
		Switch:    dpid,
	}
}

// WithPort sets the port
func (e *Event) WithPort(no int, name string) *Event {
	e.Port = no
	e.PortName = name
	return e
}

// WithPeer sets the far end of a link
func (e *Event) WithPeer(dpid string, port int) *Event {
	e.Peer = dpid
	e.PeerPort = port
	return e
}

// WithSeverity sets the severity
func (e *Event) WithSeverity(s Severity) *Event {
	e.Severity = s
	return e
}

// WithDetail sets free-form detail text
func (e *Event) WithDetail(format string, args ...any) *Event {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

func (f Filter) matches(e *Event) bool {
	if f.Switch != "" && e.Switch != f.Switch && e.Peer != f.Switch {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if !f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && e.Timestamp.After(f.EndTime) {
		return false
	}
	return true
}
