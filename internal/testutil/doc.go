// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers that lay out module trees on disk for
// tests and fail the test immediately when a filesystem operation fails.
package testutil
