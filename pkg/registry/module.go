// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"slices"
	"sync"

	"github.com/modboot/modboot/pkg/manifest"
)

// Module is a resolved module: its normalized manifest plus the failures
// recorded while resolving its dependencies.
//
// Everything except the failure state is immutable once the module is registered.
type Module struct {
	manifest.Manifest

	mu       sync.RWMutex
	err      string
	failures []*DependencyError
}

func newModule(m *manifest.Manifest) *Module {
	return &Module{Manifest: *m}
}

// Err returns the first dependency failure message, or "" when the module is healthy.
func (m *Module) Err() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Healthy reports whether no dependency failure has been recorded.
func (m *Module) Healthy() bool {
	return m.Err() == ""
}

// Failures returns every recorded dependency failure in the order they occurred.
func (m *Module) Failures() []*DependencyError {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.failures)
}

// DependsOn reports whether the module declares a dependency on id.
func (m *Module) DependsOn(id string) bool {
	return m.Dependencies.Has(id)
}

// recordFailure keeps the failure; only the first one sets the error message.
func (m *Module) recordFailure(f *DependencyError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err == "" {
		m.err = f.Error()
	}
	m.failures = append(m.failures, f)
}
