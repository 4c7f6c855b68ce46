// SPDX-License-Identifier: MPL-2.0

// Package modconfig aggregates the configuration fragments shipped by modules.
//
// Every module may provide files under raw/config (plain or packed). Each
// file's base name is a top-level key; its parsed content is deep merged into
// that key in module load order, so later modules override earlier ones.
package modconfig
