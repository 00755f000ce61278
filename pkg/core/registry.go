// Package core holds the component registry components use to find each
// other. It replaces a process-wide service locator: the registry is created
// by whoever owns the process lifecycle and handed to components explicitly.
package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/newtron-network/oftopo/pkg/event"
	"github.com/newtron-network/oftopo/pkg/util"
)

// TopicComponentRegistered is raised with a *ComponentRegistered after each
// successful Register.
const TopicComponentRegistered = "component-registered"

// ComponentRegistered announces a newly available component.
type ComponentRegistered struct {
	Name      string
	Component any
}

// Registry maps component names to components and doubles as the
// registration bus.
type Registry struct {
	event.Emitter

	mu         sync.RWMutex
	components map[string]any
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{components: make(map[string]any)}
}

// Register adds a component under name and announces it. Names are unique.
func (r *Registry) Register(name string, component any) error {
	if name == "" {
		return fmt.Errorf("component name: %w", util.ErrInvalidConfig)
	}
	if component == nil {
		return fmt.Errorf("component %s is nil: %w", name, util.ErrInvalidConfig)
	}

	r.mu.Lock()
	if _, exists := r.components[name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("component %s: %w", name, util.ErrAlreadyExists)
	}
	r.components[name] = component
	r.mu.Unlock()

	util.WithComponent(name).Debug("Component registered")
	r.Emit(TopicComponentRegistered, &ComponentRegistered{Name: name, Component: component})
	return nil
}

// Lookup returns the component registered under name.
func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[name]
	return c, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns the registered component names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
