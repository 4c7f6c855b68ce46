// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"slices"
	"sync"
)

// Registry is the ordered collection of resolved modules for one run.
// It only grows. Reads return snapshots and are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	modules []*Module
	byID    map[string]*Module
	byPath  map[string]*Module
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byID:   make(map[string]*Module),
		byPath: make(map[string]*Module),
	}
}

// Get returns the module registered under id.
func (r *Registry) Get(id string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	return m, ok
}

// Lookup returns the module registered at the canonical path.
func (r *Registry) Lookup(path string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byPath[path]
	return m, ok
}

// Modules returns the modules in registry order.
func (r *Registry) Modules() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.modules)
}

// Reverse returns the modules most recently resolved first.
func (r *Registry) Reverse() []*Module {
	mods := r.Modules()
	slices.Reverse(mods)
	return mods
}

// Healthy returns the modules without recorded failures, in registry order.
func (r *Registry) Healthy() []*Module {
	return slices.DeleteFunc(r.Modules(), func(m *Module) bool { return !m.Healthy() })
}

// IDs returns the module ids in registry order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.modules))
	for i, m := range r.modules {
		ids[i] = m.ID
	}
	return ids
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}

// Index returns the position of id in registry order, or -1.
func (r *Registry) Index(id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.IndexFunc(r.modules, func(m *Module) bool { return m.ID == id })
}

// insert places m before the first module that depends on it or that lives at
// appPath, and appends it otherwise. Callers hold the write lock.
func (r *Registry) insert(m *Module, appPath string) {
	at := slices.IndexFunc(r.modules, func(existing *Module) bool {
		return existing.DependsOn(m.ID) || (appPath != "" && existing.Path == appPath)
	})
	if at < 0 {
		r.modules = append(r.modules, m)
	} else {
		r.modules = slices.Insert(r.modules, at, m)
	}
	r.byID[m.ID] = m
	r.byPath[m.Path] = m
}
