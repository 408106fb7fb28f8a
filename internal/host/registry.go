// Package host implements the command side of the bridge: the handler
// registry, the main-thread executor, and the TCP server speaking the
// framed protocol.
package host

import (
	"fmt"
	"sort"
	"sync"
)

// HandlerFunc executes one command. Params hold the decoded command
// parameters; the returned value is marshaled into the success result.
type HandlerFunc func(params map[string]any) (any, error)

// Registration binds a command name to its handler. Handlers marked
// RequiresMainThread are queued for the executor drain; all others run
// on the connection goroutine.
type Registration struct {
	Name               string
	Handler            HandlerFunc
	RequiresMainThread bool
}

// Registry maps command names to handlers. It follows the embedding
// host's lifecycle: construction activates it, Deactivate tears it
// down and discards every registration so nothing can dispatch into a
// torn-down host. Optional integrations register and deregister their
// handler groups at runtime, so lookups always reflect the current
// toggle state.
type Registry struct {
	mu       sync.RWMutex
	active   bool
	handlers map[string]Registration
}

func NewRegistry() *Registry {
	return &Registry{active: true, handlers: make(map[string]Registration)}
}

// Activate re-arms a deactivated registry. Handlers discarded by the
// teardown stay gone; the host registers them again.
func (r *Registry) Activate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = true
}

// Deactivate marks the registry torn down and discards all
// registrations. Register fails until the next Activate; commands
// already queued find no handler when they drain.
func (r *Registry) Deactivate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
	r.handlers = make(map[string]Registration)
}

// Register adds a handler. Registering a name twice is an error so a
// toggle cannot silently shadow a core command.
func (r *Registry) Register(reg Registration) error {
	if reg.Name == "" {
		return fmt.Errorf("registering handler with empty name")
	}
	if reg.Handler == nil {
		return fmt.Errorf("registering %q with nil handler", reg.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return fmt.Errorf("registering %q on a deactivated registry", reg.Name)
	}
	if _, exists := r.handlers[reg.Name]; exists {
		return fmt.Errorf("handler %q already registered", reg.Name)
	}
	r.handlers[reg.Name] = reg
	return nil
}

// RegisterAll registers a handler group, rolling back on the first
// failure so a partially enabled integration never leaks handlers.
func (r *Registry) RegisterAll(regs ...Registration) error {
	for i, reg := range regs {
		if err := r.Register(reg); err != nil {
			for _, done := range regs[:i] {
				r.Deregister(done.Name)
			}
			return err
		}
	}
	return nil
}

// Deregister removes handlers by name. Unknown names are ignored.
func (r *Registry) Deregister(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		delete(r.handlers, name)
	}
}

// Lookup finds the handler for a command.
func (r *Registry) Lookup(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.handlers[name]
	return reg, ok
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
