// SPDX-License-Identifier: MPL-2.0

// Package overlay finds files across the modules of a registry.
//
// Single-result lookups scan the registry in reverse so the most recently
// resolved module shadows files of the same relative path provided by its
// dependencies. Aggregating lookups scan forward so contributions can be
// applied in dependency order.
//
// A module directory may ship a subtree either as a plain directory
// (<module>/<name>/...) or as a packed zip archive (<module>/<name>.zip).
// Packed lookups prefer the archive and fall back to the directory.
package overlay
