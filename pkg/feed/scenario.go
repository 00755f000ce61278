package feed

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/oftopo/pkg/discovery"
	"github.com/newtron-network/oftopo/pkg/openflow"
	"github.com/newtron-network/oftopo/pkg/topology"
	"github.com/newtron-network/oftopo/pkg/util"
)

// Scenario is a scripted sequence of protocol and discovery events.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// ReconnectTimeout overrides the grace window for this scenario.
	ReconnectTimeout Duration `yaml:"reconnect_timeout,omitempty"`

	// Register lists the components registered before the first step, in
	// order. Nil means all of them.
	Register []string `yaml:"register,omitempty"`

	Steps []Step `yaml:"steps"`
}

// StepAction identifies what a step does.
type StepAction string

const (
	ActionRegister     StepAction = "register"
	ActionConnect      StepAction = "connect"
	ActionDisconnect   StepAction = "disconnect"
	ActionPortStatus   StepAction = "port-status"
	ActionLinkUp       StepAction = "link-up"
	ActionLinkDown     StepAction = "link-down"
	ActionPacketIn     StepAction = "packet-in"
	ActionBarrierReply StepAction = "barrier-reply"
	ActionAdvance      StepAction = "advance"
	ActionExpect       StepAction = "expect"
)

// Step is one scenario step or one line of an event stream. Fields are
// action-specific.
type Step struct {
	Name   string     `yaml:"name,omitempty" json:"name,omitempty"`
	Action StepAction `yaml:"action" json:"action"`

	// register
	Component string `yaml:"component,omitempty" json:"component,omitempty"`

	// connect, disconnect, port-status, packet-in, barrier-reply
	DPID openflow.DPID `yaml:"dpid,omitempty" json:"dpid,omitempty"`

	// connect
	Capabilities uint32     `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	Ports        []PortSpec `yaml:"ports,omitempty" json:"ports,omitempty"`

	// port-status
	Reason string    `yaml:"reason,omitempty" json:"reason,omitempty"`
	Port   *PortSpec `yaml:"port,omitempty" json:"port,omitempty"`

	// packet-in
	InPort openflow.PortNo `yaml:"in_port,omitempty" json:"in_port,omitempty"`

	// barrier-reply
	XID uint32 `yaml:"xid,omitempty" json:"xid,omitempty"`

	// link-up, link-down
	Link *discovery.Link `yaml:"link,omitempty" json:"link,omitempty"`

	// advance
	Duration Duration `yaml:"duration,omitempty" json:"duration,omitempty"`

	// expect
	Expect *Expect `yaml:"expect,omitempty" json:"expect,omitempty"`
}

func (s *Step) String() string {
	if s.Name != "" {
		return s.Name
	}
	return string(s.Action)
}

// PortSpec describes one port, or with Range a run of ports. In a range,
// Name may hold a %d verb that is replaced by the port number.
type PortSpec struct {
	Number openflow.PortNo `yaml:"number,omitempty" json:"number,omitempty"`
	Range  string          `yaml:"range,omitempty" json:"range,omitempty"`
	Name   string          `yaml:"name,omitempty" json:"name,omitempty"`
	HWAddr string          `yaml:"hw_addr,omitempty" json:"hw_addr,omitempty"`
	Config uint32          `yaml:"config,omitempty" json:"config,omitempty"`
	State  uint32          `yaml:"state,omitempty" json:"state,omitempty"`
}

// Expand returns the port descriptors a PortSpec stands for.
func (p PortSpec) Expand() ([]openflow.PhyPort, error) {
	var hw net.HardwareAddr
	if p.HWAddr != "" {
		var err error
		if hw, err = net.ParseMAC(p.HWAddr); err != nil {
			return nil, fmt.Errorf("port %q: %w", p.Name, err)
		}
	}

	numbers := []int{int(p.Number)}
	if p.Range != "" {
		var err error
		if numbers, err = util.ExpandRange(p.Range); err != nil {
			return nil, err
		}
	}

	out := make([]openflow.PhyPort, 0, len(numbers))
	for _, n := range numbers {
		if n < 0 || n > int(openflow.PortNone) {
			return nil, fmt.Errorf("port number %d out of range", n)
		}
		name := p.Name
		if p.Range != "" && strings.Contains(name, "%d") {
			name = fmt.Sprintf(name, n)
		}
		out = append(out, openflow.PhyPort{
			PortNo: openflow.PortNo(n),
			HWAddr: hw,
			Name:   name,
			Config: p.Config,
			State:  p.State,
		})
	}
	return out, nil
}

// ExpandPorts expands every spec in order.
func ExpandPorts(specs []PortSpec) ([]openflow.PhyPort, error) {
	var out []openflow.PhyPort
	for _, s := range specs {
		ports, err := s.Expand()
		if err != nil {
			return nil, err
		}
		out = append(out, ports...)
	}
	return out, nil
}

// Expect checks the adaptor state at a point in a scenario. Nil fields are
// not checked.
type Expect struct {
	Ready     *bool             `yaml:"ready,omitempty" json:"ready,omitempty"`
	Switches  *int              `yaml:"switches,omitempty" json:"switches,omitempty"`
	Connected *int              `yaml:"connected,omitempty" json:"connected,omitempty"`
	Links     *int              `yaml:"links,omitempty" json:"links,omitempty"`
	Joins     *int              `yaml:"joins,omitempty" json:"joins,omitempty"`
	Leaves    *int              `yaml:"leaves,omitempty" json:"leaves,omitempty"`
	Ports     []PortsExpect     `yaml:"ports,omitempty" json:"ports,omitempty"`
	Neighbors []NeighborsExpect `yaml:"neighbors,omitempty" json:"neighbors,omitempty"`
}

// PortsExpect requires switch DPID to track exactly the ports in Ports, a
// range such as "1,3-4". An empty range means no ports.
type PortsExpect struct {
	DPID  openflow.DPID `yaml:"dpid" json:"dpid"`
	Ports string        `yaml:"ports" json:"ports"`
}

// NeighborsExpect requires the given port to have exactly Peers as
// neighbors.
type NeighborsExpect struct {
	DPID  openflow.DPID   `yaml:"dpid" json:"dpid"`
	Port  openflow.PortNo `yaml:"port" json:"port"`
	Peers []openflow.DPID `yaml:"peers" json:"peers"`
}

// Duration is a time.Duration written as "30s" in YAML and JSON.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ParseScenario reads a YAML scenario file and returns a validated Scenario.
func ParseScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}

	s, err := parseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

func parseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Register == nil {
		s.Register = []string{
			topology.ComponentName,
			openflow.ComponentName,
			discovery.ComponentName,
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks every step for the fields its action needs.
func (s *Scenario) Validate() error {
	v := &util.ValidationBuilder{}
	v.Add(s.ReconnectTimeout >= 0, "reconnect_timeout must not be negative")
	for _, name := range s.Register {
		v.Add(knownComponent(name), fmt.Sprintf("register: unknown component %q", name))
	}
	for i := range s.Steps {
		if err := s.Steps[i].Validate(); err != nil {
			v.AddErrorf("step %d (%s): %v", i+1, s.Steps[i].String(), err)
		}
	}
	return v.Build()
}

func knownComponent(name string) bool {
	switch name {
	case openflow.ComponentName, topology.ComponentName, discovery.ComponentName:
		return true
	}
	return false
}

// Validate checks that the step carries what its action needs.
func (s *Step) Validate() error {
	switch s.Action {
	case ActionRegister:
		if !knownComponent(s.Component) {
			return fmt.Errorf("unknown component %q", s.Component)
		}
	case ActionConnect:
		if _, err := ExpandPorts(s.Ports); err != nil {
			return err
		}
	case ActionDisconnect, ActionPacketIn, ActionBarrierReply:
	case ActionPortStatus:
		if _, err := openflow.ParsePortReason(s.Reason); err != nil {
			return err
		}
		if s.Port == nil {
			return fmt.Errorf("port is required")
		}
		if s.Port.Range != "" {
			return fmt.Errorf("port-status takes a single port, not a range")
		}
		if _, err := s.Port.Expand(); err != nil {
			return err
		}
	case ActionLinkUp, ActionLinkDown:
		if s.Link == nil {
			return fmt.Errorf("link is required")
		}
	case ActionAdvance:
		if s.Duration <= 0 {
			return fmt.Errorf("duration must be positive")
		}
	case ActionExpect:
		if s.Expect == nil {
			return fmt.Errorf("expect is required")
		}
		for _, pe := range s.Expect.Ports {
			if _, err := util.ExpandRange(pe.Ports); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
	return nil
}
