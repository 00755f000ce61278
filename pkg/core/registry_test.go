package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/newtron-network/oftopo/pkg/util"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	var announced []string
	r.Listen(TopicComponentRegistered, func(ev any) {
		announced = append(announced, ev.(*ComponentRegistered).Name)
	})

	if err := r.Register("topology", struct{}{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("openflow", 42); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if c, ok := r.Lookup("openflow"); !ok || c.(int) != 42 {
		t.Errorf("Lookup(openflow) = %v, %v", c, ok)
	}
	if r.Has("openflow_discovery") {
		t.Error("Has should be false for unregistered names")
	}
	if got := strings.Join(r.Names(), ","); got != "openflow,topology" {
		t.Errorf("Names() = %q", got)
	}
	if got := strings.Join(announced, ","); got != "topology,openflow" {
		t.Errorf("announcements = %q, want registration order", got)
	}
}

func TestRegistry_RegisterErrors(t *testing.T) {
	r := NewRegistry()
	r.Register("topology", 1)

	tests := []struct {
		name      string
		component any
		want      error
	}{
		{"topology", 2, util.ErrAlreadyExists},
		{"", 1, util.ErrInvalidConfig},
		{"openflow", nil, util.ErrInvalidConfig},
	}
	for _, tt := range tests {
		if err := r.Register(tt.name, tt.component); !errors.Is(err, tt.want) {
			t.Errorf("Register(%q, %v) = %v, want %v", tt.name, tt.component, err, tt.want)
		}
	}

	if c, _ := r.Lookup("topology"); c.(int) != 1 {
		t.Error("failed re-registration must not replace the original component")
	}
}
