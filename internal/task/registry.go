package task

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maintains the known task definitions a pipeline may reference.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: map[string]Definition{}}
}

// Register installs a task definition. Returns an error if the ID already
// exists or the definition is malformed.
func (r *Registry) Register(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.ID]; exists {
		return fmt.Errorf("task: %s already registered", def.ID)
	}
	r.defs[def.ID] = def
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Resolve returns a task definition by ID.
func (r *Registry) Resolve(id string) (Definition, error) {
	r.mu.RLock()
	def, ok := r.defs[id]
	r.mu.RUnlock()
	if !ok {
		return Definition{}, fmt.Errorf("task: unknown id %s", id)
	}
	return def, nil
}

// IDs returns a sorted list of registered task identifiers.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
