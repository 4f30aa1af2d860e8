package garm

import (
	"sort"
	"sync"
)

// Registry is a named collection of reusable definitions: either whole
// schemas or single rules sets. A string where a schema or rules set is
// expected resolves against the appropriate registry; resolution is lazy, so
// definitions may reference themselves or each other cyclically.
type Registry struct {
	mu         sync.RWMutex
	defs       map[string]map[string]any
	generation uint64
}

// NewRegistry returns an empty registry. Validators default to the shared
// SchemaRegistry and RulesSetRegistry but accept per-validator instances.
func NewRegistry() *Registry {
	return &Registry{defs: map[string]map[string]any{}}
}

// Add registers definition under name, replacing any previous entry.
func (r *Registry) Add(name string, definition map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[name] = deepCopy(definition).(map[string]any)
	r.generation++
}

// Extend registers every definition of the given mapping.
func (r *Registry) Extend(definitions map[string]map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, def := range definitions {
		r.defs[name] = deepCopy(def).(map[string]any)
	}
	r.generation++
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Remove drops the named definitions.
func (r *Registry) Remove(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		delete(r.defs, name)
	}
	r.generation++
}

// Clear drops every definition.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = map[string]map[string]any{}
	r.generation++
}

// All returns a snapshot of every registered definition.
func (r *Registry) All() map[string]map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]map[string]any, len(r.defs))
	for name, def := range r.defs {
		out[name] = deepCopy(def).(map[string]any)
	}
	return out
}

// Names returns the sorted names of all definitions.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generation increases on every mutation; the meta-validation cache keys on
// it so registry updates invalidate cached results.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// SchemaRegistry is the shared registry for named schemas.
var SchemaRegistry = NewRegistry()

// RulesSetRegistry is the shared registry for named rules sets.
var RulesSetRegistry = NewRegistry()
