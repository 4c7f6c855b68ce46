// SPDX-License-Identifier: MPL-2.0

// Package version compares dotted numeric module versions and evaluates the
// comparator-prefixed constraints that modules use to declare dependencies.
//
// Constraints have the form "[op]version" where op is one of <=, >=, <, > or =.
// A missing operator means >=, and "*" matches every version. Constraints that
// cannot be parsed are treated as satisfied.
package version
