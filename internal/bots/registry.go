package bots

import (
	"sort"
	"sync"
)

// Factory constructs a bot instance bound to one conversation.
type Factory func(info ConversationInfo) Bot

// Spec describes an installed bot.
type Spec struct {
	Factory Factory
	// Required marks bots that are permanently invited to every
	// conversation rather than opted into.
	Required bool
}

// Registry maps bot names to their specs. It is populated once at startup
// and read concurrently afterwards.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

// NewRegistry creates an empty bot registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

// Register installs a bot under the given name, replacing any previous
// registration.
func (r *Registry) Register(name string, required bool, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[name] = Spec{Factory: factory, Required: required}
}

// Spec returns the spec registered under name.
func (r *Registry) Spec(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// Names returns the installed bot names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
