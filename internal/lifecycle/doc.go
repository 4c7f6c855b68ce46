// SPDX-License-Identifier: MPL-2.0

// Package lifecycle dispatches setup, shutdown and exception hooks to the
// modules of a registry in load order.
//
// Hooks are plain values implementing one or more of the capability
// interfaces (Setupper, Shutdowner, ExceptionHandler). Modules whose
// dependency resolution failed are skipped.
package lifecycle
