// SPDX-License-Identifier: MPL-2.0

// Package registry resolves modules and their dependencies into one ordered
// collection.
//
// Order matters: dependencies precede their dependents and the application
// module comes last. Lifecycle dispatch walks the registry forward (and in
// reverse for shutdown), and file overlays use reverse order so that the
// most recently resolved module wins.
//
// Resolution failures are soft. A missing or incompatible dependency is
// returned as a *DependencyError and recorded on the module that requested it;
// that module stays registered with Err set, and resolution of its siblings
// continues.
package registry
