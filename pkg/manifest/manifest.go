// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modboot/modboot/pkg/cueutil"
	"github.com/modboot/modboot/pkg/version"
)

const (
	// DefaultFileName is the descriptor file looked up inside a module directory.
	DefaultFileName = "module.json"

	// DefaultBaseModuleID is the id of the foundational module every other module depends on.
	DefaultBaseModuleID = "base"
)

var (
	//go:embed manifest_schema.cue
	manifestSchema string

	// ErrManifestNotFound is returned when a module directory has no descriptor.
	ErrManifestNotFound = errors.New("module manifest not found")
)

type (
	// Dependency is one declared requirement: a module id and a version constraint.
	Dependency struct {
		ID         string `json:"id"`
		Constraint string `json:"constraint"`
	}

	// Dependencies is the ordered dependency list of a module.
	Dependencies []Dependency

	// Manifest is the normalized module descriptor.
	Manifest struct {
		ID           string       `json:"id"`
		Name         string       `json:"name,omitempty"`
		Description  string       `json:"description,omitempty"`
		Version      string       `json:"version,omitempty"`
		Dependencies Dependencies `json:"dependencies"`
		// Build is passed through without interpretation.
		Build any `json:"build,omitempty"`
		// Path is the module directory the manifest was loaded from.
		Path string `json:"path"`
	}

	// ParseError is returned when a descriptor exists but cannot be read or
	// does not match the schema.
	ParseError struct {
		Path string
		Err  error
	}

	// Loader reads and normalizes module descriptors.
	Loader struct {
		// BasePath resolves module paths that start with neither "/" nor ".".
		BasePath string
		// FileName is the descriptor name; DefaultFileName when empty.
		FileName string
		// BaseModuleID names the implicit dependency; DefaultBaseModuleID when empty.
		BaseModuleID string
	}

	// rawManifest mirrors the JSON document before normalization.
	rawManifest struct {
		ID           *string `json:"id"`
		Name         *string `json:"name"`
		Description  *string `json:"description"`
		Version      *string `json:"version"`
		Dependencies any     `json:"dependencies"`
		Build        any     `json:"build"`
	}
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid module manifest %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error { return e.Err }

// Has reports whether a dependency on id is declared.
func (d Dependencies) Has(id string) bool {
	_, ok := d.Constraint(id)
	return ok
}

// Constraint returns the constraint declared for id.
func (d Dependencies) Constraint(id string) (string, bool) {
	for _, dep := range d {
		if dep.ID == id {
			return dep.Constraint, true
		}
	}
	return "", false
}

// IDs returns the dependency ids in declaration order.
func (d Dependencies) IDs() []string {
	ids := make([]string, len(d))
	for i, dep := range d {
		ids[i] = dep.ID
	}
	return ids
}

// Map returns the dependencies as an id to constraint map.
func (d Dependencies) Map() map[string]string {
	m := make(map[string]string, len(d))
	for _, dep := range d {
		m[dep.ID] = dep.Constraint
	}
	return m
}

// NewLoader creates a loader with default file name and base module id.
func NewLoader(basePath string) *Loader {
	return &Loader{
		BasePath:     basePath,
		FileName:     DefaultFileName,
		BaseModuleID: DefaultBaseModuleID,
	}
}

func (l *Loader) fileName() string {
	if l.FileName == "" {
		return DefaultFileName
	}
	return l.FileName
}

func (l *Loader) baseModuleID() string {
	if l.BaseModuleID == "" {
		return DefaultBaseModuleID
	}
	return l.BaseModuleID
}

// ResolvePath applies the loader's single level of disambiguation: paths
// starting with "/" or "." are used as given, anything else is joined to BasePath.
func (l *Loader) ResolvePath(path string) string {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasPrefix(path, ".") || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.BasePath, path)
}

// FilePath returns the descriptor path for a module directory.
func (l *Loader) FilePath(modulePath string) string {
	return filepath.Join(l.ResolvePath(modulePath), l.fileName())
}

// Load reads and normalizes the descriptor of the module at path.
// It returns ErrManifestNotFound when the descriptor does not exist and a
// *ParseError when it cannot be read or validated.
func (l *Loader) Load(path string) (*Manifest, error) {
	path = l.ResolvePath(path)
	file := filepath.Join(path, l.fileName())

	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, file)
		}
		return nil, &ParseError{Path: file, Err: err}
	}

	m, err := l.Parse(data, file)
	if err != nil {
		return nil, err
	}
	m.Path = path
	l.normalize(m)
	return m, nil
}

// Parse validates a descriptor document without normalizing it.
// The returned manifest has no Path and no implicit dependency.
func (l *Loader) Parse(data []byte, filename string) (*Manifest, error) {
	result, err := cueutil.ParseAndDecodeString[rawManifest](
		manifestSchema,
		data,
		"#Manifest",
		cueutil.WithFilename(filename),
	)
	if err != nil {
		return nil, &ParseError{Path: filename, Err: err}
	}

	raw := result.Value
	m := &Manifest{
		ID:           strings.TrimSpace(deref(raw.ID)),
		Name:         deref(raw.Name),
		Description:  deref(raw.Description),
		Version:      strings.TrimSpace(deref(raw.Version)),
		Build:        raw.Build,
		Dependencies: Dependencies{},
	}

	// Declaration order comes from the CUE value; the decoded map has none.
	depMap, _ := raw.Dependencies.(map[string]any)
	names, err := cueutil.FieldNames(result.Unified, "dependencies")
	if err != nil {
		return nil, &ParseError{Path: filename, Err: err}
	}
	for _, id := range names {
		constraint, _ := depMap[id].(string)
		m.Dependencies = append(m.Dependencies, Dependency{ID: id, Constraint: normalizeConstraint(constraint)})
	}

	return m, nil
}

func (l *Loader) normalize(m *Manifest) {
	if m.ID == "" {
		m.ID = filepath.Base(filepath.Clean(m.Path))
	}

	baseID := l.baseModuleID()
	if m.ID != baseID && !m.Dependencies.Has(baseID) {
		m.Dependencies = append(m.Dependencies, Dependency{ID: baseID, Constraint: version.Any})
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func normalizeConstraint(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return version.Any
	}
	return c
}
