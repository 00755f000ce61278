package oftopo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/newtron-network/oftopo/pkg/core"
	"github.com/newtron-network/oftopo/pkg/util"
)

func TestGate_ReadyOnceInAnyOrder(t *testing.T) {
	required := []string{"a", "b", "c"}
	orders := [][]string{
		{"a", "b", "c"},
		{"c", "b", "a"},
		{"b", "x", "a", "c"},
	}

	for _, order := range orders {
		t.Run(fmt.Sprint(order), func(t *testing.T) {
			reg := core.NewRegistry()
			var bound []string
			g := NewGate("test", required, reg, func(name string, _ any) error {
				bound = append(bound, name)
				return nil
			})
			ready := 0
			g.OnReady(func() { ready++ })

			if g.Watch(reg, nil) {
				t.Fatal("ready before anything registered")
			}
			for _, name := range order {
				if g.Ready() {
					t.Fatalf("ready before %s registered", name)
				}
				if err := reg.Register(name, name); err != nil {
					t.Fatal(err)
				}
			}

			if !g.Ready() || ready != 1 {
				t.Fatalf("Ready=%v ready callbacks=%d, want true and 1", g.Ready(), ready)
			}
			if len(bound) != 3 {
				t.Errorf("bound %v, want each required name once", bound)
			}
			if n := reg.ListenerCount(core.TopicComponentRegistered); n != 0 {
				t.Errorf("gate still watching the bus (%d listeners)", n)
			}
			if !g.Resolve() || ready != 1 {
				t.Error("Resolve after ready changed state")
			}
		})
	}
}

func TestGate_EmptyIsReadyImmediately(t *testing.T) {
	reg := core.NewRegistry()
	ready := 0
	g := NewGate("test", nil, reg, nil)
	g.OnReady(func() { ready++ })

	if !g.Watch(reg, nil) {
		t.Fatal("empty gate not ready")
	}
	if ready != 1 {
		t.Errorf("ready callbacks = %d, want 1", ready)
	}
	if g.Err() != nil {
		t.Errorf("Err() = %v, want nil", g.Err())
	}
}

func TestGate_AlreadyRegistered(t *testing.T) {
	reg := core.NewRegistry()
	if err := reg.Register("a", 1); err != nil {
		t.Fatal(err)
	}
	g := NewGate("test", []string{"a", "a"}, reg, nil)
	if !g.Watch(reg, nil) {
		t.Fatal("gate not ready although its only dependency is registered")
	}
}

func TestGate_BindFailureStaysPending(t *testing.T) {
	reg := core.NewRegistry()
	fail := true
	g := NewGate("test", []string{"a", "b"}, reg, func(name string, _ any) error {
		if name == "a" && fail {
			return errors.New("wrong type")
		}
		return nil
	})
	g.Watch(reg, nil)

	_ = reg.Register("a", 1)
	_ = reg.Register("b", 2)
	if g.Ready() {
		t.Fatal("ready although a failed to bind")
	}
	if diff := cmp.Diff([]string{"a"}, g.Pending()); diff != "" {
		t.Errorf("Pending() mismatch (-want +got):\n%s", diff)
	}
	err := g.Err()
	var de *util.DependencyError
	if !errors.As(err, &de) || !errors.Is(err, util.ErrDependencyMissing) {
		t.Fatalf("Err() = %v, want *DependencyError", err)
	}
	if de.Resource != "test" {
		t.Errorf("Resource = %q, want test", de.Resource)
	}

	fail = false
	if !g.Resolve() {
		t.Error("explicit Resolve did not retry the failed bind")
	}
}

func TestGate_PostDefersResolve(t *testing.T) {
	reg := core.NewRegistry()
	var queued []func()
	post := func(fn func()) bool {
		queued = append(queued, fn)
		return true
	}

	g := NewGate("test", []string{"a"}, reg, nil)
	g.Watch(reg, post)
	_ = reg.Register("a", 1)

	if g.Ready() {
		t.Fatal("resolved on the registering goroutine")
	}
	if len(queued) != 1 {
		t.Fatalf("queued %d resolves, want 1", len(queued))
	}
	queued[0]()
	if !g.Ready() {
		t.Error("posted resolve did not make the gate ready")
	}
}
