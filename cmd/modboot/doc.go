// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for modboot.
//
// Every command boots the configured module set (or a subset of it) and
// reports on the registry, the overlay lookups, or the module configuration.
package cmd
