// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// KindMissing means the dependency's manifest could not be found or loaded.
	KindMissing FailureKind = iota + 1
	// KindVersionMismatch means the dependency's version does not satisfy the constraint.
	KindVersionMismatch
	// KindCycle means the dependency is already being resolved further up the chain.
	KindCycle
)

// ErrModuleNotFound is returned when a module id is not registered.
var ErrModuleNotFound = errors.New("module not found")

type (
	// FailureKind classifies a dependency resolution failure.
	FailureKind int

	// DependencyError describes why a dependency could not be resolved.
	DependencyError struct {
		// Kind is the failure class.
		Kind FailureKind
		// Requester is the id of the module that declared the dependency; empty
		// for a top-level import.
		Requester string
		// ID is the dependency id (or the basename of an absolute path).
		ID string
		// Path is the resolved location, when one was determined.
		Path string
		// Constraint is the version constraint that was requested.
		Constraint string
		// Version is the version that was found, for mismatches.
		Version string
		// Chain is the resolution path that closed the cycle, for KindCycle.
		Chain []string
		// Err is the underlying cause, if any.
		Err error
	}
)

// String returns the kind name.
func (k FailureKind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindVersionMismatch:
		return "version-mismatch"
	case KindCycle:
		return "cycle"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	switch e.Kind {
	case KindMissing:
		return fmt.Sprintf("%q/%s missing", e.ID, e.Constraint)
	case KindVersionMismatch:
		version := e.Version
		if version == "" {
			version = "(none)"
		}
		return fmt.Sprintf("%s/%s required, found %s", e.ID, e.Constraint, version)
	case KindCycle:
		return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Chain, " -> "))
	default:
		return fmt.Sprintf("dependency %s failed", e.ID)
	}
}

// Unwrap returns the underlying cause.
func (e *DependencyError) Unwrap() error { return e.Err }

// Is matches ErrModuleNotFound for missing dependencies.
func (e *DependencyError) Is(target error) bool {
	return target == ErrModuleNotFound && e.Kind == KindMissing
}
