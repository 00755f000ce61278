package oftopo

import (
	"sort"

	"github.com/newtron-network/oftopo/pkg/core"
	"github.com/newtron-network/oftopo/pkg/event"
	"github.com/newtron-network/oftopo/pkg/util"
)

// Provider looks up collaborators by name. *core.Registry implements it.
type Provider interface {
	Lookup(name string) (any, bool)
}

// BindFunc takes ownership of a resolved collaborator. Returning an error
// leaves the name pending so a later Resolve can try again.
type BindFunc func(name string, component any) error

// Gate holds back its owner until a fixed set of named collaborators are
// all available. It becomes ready exactly once, whatever order the
// collaborators register in, and never goes back.
type Gate struct {
	owner    string
	required []string
	pending  map[string]bool
	provider Provider
	bind     BindFunc

	ready   bool
	onReady []func()

	bus      event.Source
	listenID event.ListenerID
}

// NewGate creates a gate for owner waiting on required. Duplicate names
// count once. An empty set is ready on the first Resolve.
func NewGate(owner string, required []string, provider Provider, bind BindFunc) *Gate {
	g := &Gate{
		owner:    owner,
		pending:  make(map[string]bool),
		provider: provider,
		bind:     bind,
	}
	for _, name := range required {
		if g.pending[name] {
			continue
		}
		g.pending[name] = true
		g.required = append(g.required, name)
	}
	return g
}

// OnReady registers fn to run once when the gate becomes ready. If it
// already is, fn never runs.
func (g *Gate) OnReady(fn func()) {
	g.onReady = append(g.onReady, fn)
}

// Resolve binds every pending collaborator the provider now has and
// reports whether the gate is ready. Already bound names are not
// looked up again.
func (g *Gate) Resolve() bool {
	if g.ready {
		return true
	}

	for _, name := range g.required {
		if !g.pending[name] {
			continue
		}
		component, ok := g.provider.Lookup(name)
		if !ok {
			continue
		}
		if g.bind != nil {
			if err := g.bind(name, component); err != nil {
				util.WithComponent(g.owner).Warnf("Cannot bind %s: %v", name, err)
				continue
			}
		}
		delete(g.pending, name)
		util.WithComponent(g.owner).Debugf("Bound %s", name)
	}

	if len(g.pending) > 0 {
		util.WithComponent(g.owner).Debugf("Still waiting for %v", g.Pending())
		return false
	}

	g.ready = true
	g.stopWatching()
	util.WithComponent(g.owner).Debug("Adaptor ready")
	for _, fn := range g.onReady {
		fn()
	}
	g.onReady = nil
	return true
}

// Watch re-runs Resolve whenever bus announces a registration, until the
// gate is ready, and resolves once immediately. With post non-nil each
// re-run is handed to post (normally an event loop's Post) instead of
// running on the announcing goroutine.
func (g *Gate) Watch(bus event.Source, post func(func()) bool) bool {
	if g.ready {
		return true
	}
	g.stopWatching()

	g.bus = bus
	g.listenID = bus.Listen(core.TopicComponentRegistered, func(any) {
		if post == nil {
			g.Resolve()
			return
		}
		post(func() { g.Resolve() })
	})
	return g.Resolve()
}

// Stop detaches the gate from its bus without changing readiness.
func (g *Gate) Stop() {
	g.stopWatching()
}

func (g *Gate) stopWatching() {
	if g.bus == nil {
		return
	}
	g.bus.Unlisten(g.listenID)
	g.bus = nil
}

// Ready reports whether every required collaborator is bound.
func (g *Gate) Ready() bool {
	return g.ready
}

// Pending returns the unresolved names, sorted.
func (g *Gate) Pending() []string {
	out := make([]string, 0, len(g.pending))
	for name := range g.pending {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Err returns a *util.DependencyError naming the pending collaborators, or
// nil once ready.
func (g *Gate) Err() error {
	if g.ready {
		return nil
	}
	return util.NewDependencyError(g.owner, g.Pending()...)
}
