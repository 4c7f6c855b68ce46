// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Any is the constraint that every version satisfies.
const Any = "*"

const (
	// OpEqual matches versions equal to the constraint version.
	OpEqual Op = "="
	// OpGreater matches versions strictly greater than the constraint version.
	OpGreater Op = ">"
	// OpGreaterEqual matches versions greater than or equal to the constraint version.
	OpGreaterEqual Op = ">="
	// OpLess matches versions strictly lower than the constraint version.
	OpLess Op = "<"
	// OpLessEqual matches versions lower than or equal to the constraint version.
	OpLessEqual Op = "<="
)

var (
	// ErrInvalidVersion is returned when a string is not a dotted numeric version.
	ErrInvalidVersion = errors.New("invalid version")
	// ErrInvalidConstraint is returned when a constraint expression cannot be parsed.
	ErrInvalidConstraint = errors.New("invalid version constraint")

	// versionRegex matches dotted numeric versions with an optional "v" prefix
	// and an optional pre-release or build suffix.
	versionRegex = regexp.MustCompile(`^v?(\d+(?:\.\d+)*)(?:-([0-9A-Za-z.\-]+))?(?:\+[0-9A-Za-z.\-]+)?$`)

	// constraintRegex splits a constraint into its operator and version parts.
	constraintRegex = regexp.MustCompile(`^\s*(<=|>=|<|>|=)?\s*(.+)$`)
)

type (
	// Op is a constraint comparison operator.
	Op string

	// Version is a parsed dotted numeric version.
	Version struct {
		// Segments holds the numeric parts in order (major, minor, patch, ...).
		Segments []int
		// Prerelease is the optional suffix after "-"; it sorts before the release.
		Prerelease string
		// Original is the string the version was parsed from.
		Original string
	}

	// Constraint is a parsed version requirement such as ">=1.2".
	Constraint struct {
		Op       Op
		Version  Version
		Original string
	}
)

// Parse parses a dotted numeric version string.
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)
	matches := versionRegex.FindStringSubmatch(s)
	if matches == nil {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}

	parts := strings.Split(matches[1], ".")
	segments := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("%w: segment %q of %q: %w", ErrInvalidVersion, p, s, err)
		}
		segments = append(segments, n)
	}

	return Version{Segments: segments, Prerelease: matches[2], Original: s}, nil
}

// String returns the version as it was written.
func (v Version) String() string {
	if v.Original != "" {
		return v.Original
	}
	parts := make([]string, len(v.Segments))
	for i, n := range v.Segments {
		parts[i] = strconv.Itoa(n)
	}
	s := strings.Join(parts, ".")
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	return s
}

// Compare returns -1, 0 or 1 when v is lower than, equal to or greater than other.
// Segment lists of different lengths are padded with zeros, so "1.2" equals "1.2.0".
func (v Version) Compare(other Version) int {
	n := max(len(v.Segments), len(other.Segments))
	for i := range n {
		a, b := segmentAt(v.Segments, i), segmentAt(other.Segments, i)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}

	switch {
	case v.Prerelease == other.Prerelease:
		return 0
	case v.Prerelease == "":
		return 1
	case other.Prerelease == "":
		return -1
	case v.Prerelease < other.Prerelease:
		return -1
	default:
		return 1
	}
}

func segmentAt(segments []int, i int) int {
	if i < len(segments) {
		return segments[i]
	}
	return 0
}

// Compare parses and compares two version strings. Strings that do not parse
// compare as version 0.
func Compare(a, b string) int {
	return parseOrZero(a).Compare(parseOrZero(b))
}

func parseOrZero(s string) Version {
	v, err := Parse(s)
	if err != nil {
		return Version{Segments: []int{0}, Original: s}
	}
	return v
}

// ParseConstraint parses a constraint expression. The "*" constraint yields an
// OpGreaterEqual constraint on version 0, which every version satisfies.
func ParseConstraint(s string) (Constraint, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == Any {
		return Constraint{Op: OpGreaterEqual, Version: Version{Segments: []int{0}}, Original: s}, nil
	}

	matches := constraintRegex.FindStringSubmatch(trimmed)
	if matches == nil {
		return Constraint{}, fmt.Errorf("%w: %q", ErrInvalidConstraint, s)
	}

	op := Op(matches[1])
	if op == "" {
		op = OpGreaterEqual
	}

	v, err := Parse(matches[2])
	if err != nil {
		return Constraint{}, fmt.Errorf("%w: %q: %w", ErrInvalidConstraint, s, err)
	}

	return Constraint{Op: op, Version: v, Original: s}, nil
}

// Check reports whether v satisfies the constraint.
func (c Constraint) Check(v Version) bool {
	cmp := v.Compare(c.Version)
	switch c.Op {
	case OpEqual:
		return cmp == 0
	case OpGreater:
		return cmp > 0
	case OpGreaterEqual:
		return cmp >= 0
	case OpLess:
		return cmp < 0
	case OpLessEqual:
		return cmp <= 0
	default:
		return false
	}
}

// String returns the constraint as it was written.
func (c Constraint) String() string {
	if c.Original != "" {
		return c.Original
	}
	return string(c.Op) + c.Version.String()
}

// Satisfies reports whether version meets constraint. "*" and malformed
// constraints are always satisfied; a version that does not parse is
// compared as 0.
func Satisfies(version, constraint string) bool {
	c, err := ParseConstraint(constraint)
	if err != nil {
		return true
	}
	return c.Check(parseOrZero(version))
}

// Valid reports whether s parses as a version.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}
