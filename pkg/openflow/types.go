// Package openflow defines the switch-control protocol values the topology
// adaptor consumes: datapath identifiers, physical port descriptors, the
// features (handshake) reply, and per-connection asynchronous messages.
//
// Wire encoding and decoding live in the protocol layer; this package only
// carries already-parsed values. Numeric constants follow OpenFlow 1.0.
package openflow

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DPID is a 64-bit datapath identifier. The low 48 bits are usually the
// switch MAC address; the high 16 bits are implementer-defined.
type DPID uint64

// String formats the DPID as six dash-separated hex bytes, with the upper
// 16 bits appended as "|<n>" when they are non-zero.
func (d DPID) String() string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(d))
	parts := make([]string, 6)
	for i, c := range b[2:] {
		parts[i] = fmt.Sprintf("%02x", c)
	}
	s := strings.Join(parts, "-")
	if hi := binary.BigEndian.Uint16(b[:2]); hi != 0 {
		s += "|" + strconv.Itoa(int(hi))
	}
	return s
}

// ParseDPID accepts the String form ("00-00-00-00-00-01", optionally with a
// "|<n>" suffix), colon-separated hex bytes, a "0x" hex literal, or a
// plain decimal integer.
func ParseDPID(s string) (DPID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty dpid")
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid dpid %q: %w", s, err)
		}
		return DPID(v), nil
	}

	if !strings.ContainsAny(s, "-:") {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid dpid %q: %w", s, err)
		}
		return DPID(v), nil
	}

	macPart, hiPart, hasHi := strings.Cut(s, "|")
	mac, err := net.ParseMAC(strings.ReplaceAll(macPart, "-", ":"))
	if err != nil || len(mac) != 6 {
		return 0, fmt.Errorf("invalid dpid %q: expected 6 hex bytes", s)
	}
	var b [8]byte
	copy(b[2:], mac)
	if hasHi {
		hi, err := strconv.ParseUint(hiPart, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid dpid %q: %w", s, err)
		}
		binary.BigEndian.PutUint16(b[:2], uint16(hi))
	}
	return DPID(binary.BigEndian.Uint64(b[:])), nil
}

// MarshalText implements encoding.TextMarshaler so DPIDs read naturally in
// JSON and YAML.
func (d DPID) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DPID) UnmarshalText(text []byte) error {
	v, err := ParseDPID(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// PortNo is a switch port number.
type PortNo uint16

// Reserved port numbers.
const (
	PortMax        PortNo = 0xff00
	PortInPort     PortNo = 0xfff8
	PortTable      PortNo = 0xfff9
	PortNormal     PortNo = 0xfffa
	PortFlood      PortNo = 0xfffb
	PortAll        PortNo = 0xfffc
	PortController PortNo = 0xfffd
	PortLocal      PortNo = 0xfffe
	PortNone       PortNo = 0xffff
)

var reservedPortNames = map[PortNo]string{
	PortInPort:     "IN_PORT",
	PortTable:      "TABLE",
	PortNormal:     "NORMAL",
	PortFlood:      "FLOOD",
	PortAll:        "ALL",
	PortController: "CONTROLLER",
	PortLocal:      "LOCAL",
	PortNone:       "NONE",
}

func (p PortNo) String() string {
	if name, ok := reservedPortNames[p]; ok {
		return name
	}
	return strconv.Itoa(int(p))
}

// IsReserved reports whether p is one of the logical ports above PortMax.
func (p PortNo) IsReserved() bool {
	return p > PortMax
}

// Port config bits (ofp_port_config).
const (
	PortConfigDown       uint32 = 1 << 0
	PortConfigNoSTP      uint32 = 1 << 1
	PortConfigNoRecv     uint32 = 1 << 2
	PortConfigNoRecvSTP  uint32 = 1 << 3
	PortConfigNoFlood    uint32 = 1 << 4
	PortConfigNoFwd      uint32 = 1 << 5
	PortConfigNoPacketIn uint32 = 1 << 6
)

// Port state bits (ofp_port_state).
const (
	PortStateLinkDown uint32 = 1 << 0
)

// Switch capability bits (ofp_capabilities).
const (
	CapFlowStats  uint32 = 1 << 0
	CapTableStats uint32 = 1 << 1
	CapPortStats  uint32 = 1 << 2
	CapSTP        uint32 = 1 << 3
	CapIPReasm    uint32 = 1 << 5
	CapQueueStats uint32 = 1 << 6
	CapARPMatchIP uint32 = 1 << 7
)

// PhyPort describes one physical port as reported by the switch.
type PhyPort struct {
	PortNo     PortNo           `json:"port_no" yaml:"port_no"`
	HWAddr     net.HardwareAddr `json:"hw_addr,omitempty" yaml:"-"`
	Name       string           `json:"name" yaml:"name"`
	Config     uint32           `json:"config,omitempty" yaml:"config,omitempty"`
	State      uint32           `json:"state,omitempty" yaml:"state,omitempty"`
	Curr       uint32           `json:"curr,omitempty" yaml:"curr,omitempty"`
	Advertised uint32           `json:"advertised,omitempty" yaml:"advertised,omitempty"`
	Supported  uint32           `json:"supported,omitempty" yaml:"supported,omitempty"`
	Peer       uint32           `json:"peer,omitempty" yaml:"peer,omitempty"`
}

// FeaturesReply is the handshake information received when a connection
// comes up: capability flags and the complete port list.
type FeaturesReply struct {
	DPID         DPID      `json:"dpid"`
	NBuffers     uint32    `json:"n_buffers,omitempty"`
	NTables      uint8     `json:"n_tables,omitempty"`
	Capabilities uint32    `json:"capabilities"`
	Actions      uint32    `json:"actions,omitempty"`
	Ports        []PhyPort `json:"ports"`
}

// PortReason is the reason code carried by a port-status message.
type PortReason uint8

const (
	PortReasonAdd    PortReason = 0
	PortReasonDelete PortReason = 1
	PortReasonModify PortReason = 2
)

func (r PortReason) String() string {
	switch r {
	case PortReasonAdd:
		return "add"
	case PortReasonDelete:
		return "delete"
	case PortReasonModify:
		return "modify"
	}
	return "reason(" + strconv.Itoa(int(r)) + ")"
}

// ParsePortReason maps "add", "delete" and "modify" to reason codes.
func ParsePortReason(s string) (PortReason, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add":
		return PortReasonAdd, nil
	case "delete":
		return PortReasonDelete, nil
	case "modify":
		return PortReasonModify, nil
	}
	return 0, fmt.Errorf("unknown port-status reason %q", s)
}

// PortStatus reports that a single port was added, removed or modified.
type PortStatus struct {
	Reason PortReason
	Desc   PhyPort
}

// PacketIn is a packet forwarded from the switch to the controller.
type PacketIn struct {
	BufferID uint32
	TotalLen uint16
	InPort   PortNo
	Reason   uint8
	Data     []byte
}

// FlowRemoved reports that a flow entry expired or was deleted.
type FlowRemoved struct {
	Cookie       uint64
	Priority     uint16
	Reason       uint8
	DurationSec  uint32
	DurationNsec uint32
	IdleTimeout  uint16
	PacketCount  uint64
	ByteCount    uint64
}

// BarrierReply acknowledges a barrier request.
type BarrierReply struct {
	XID uint32
}
