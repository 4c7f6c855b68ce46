// SPDX-License-Identifier: MPL-2.0

package overlay

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/modboot/modboot/pkg/registry"
)

// DefaultPackedExt is the file extension of packed archives.
const DefaultPackedExt = ".zip"

// ErrBadPattern is returned by Glob for malformed patterns.
var ErrBadPattern = doublestar.ErrBadPattern

type (
	// Options configures a Resolver.
	Options struct {
		// PackedExt is the packed archive extension, including the dot.
		PackedExt string
		// Logger receives archive diagnostics. Defaults to a discarding logger.
		Logger *log.Logger
	}

	// Resolver looks files up across the modules of a registry.
	// It is safe for concurrent use.
	Resolver struct {
		reg    *registry.Registry
		ext    string
		logger *log.Logger

		mu       sync.Mutex
		archives map[string]*archive
	}
)

// New creates a resolver over reg.
func New(reg *registry.Registry, opts Options) *Resolver {
	if opts.PackedExt == "" {
		opts.PackedExt = DefaultPackedExt
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Resolver{
		reg:      reg,
		ext:      opts.PackedExt,
		logger:   opts.Logger,
		archives: make(map[string]*archive),
	}
}

// PackedExt returns the packed archive extension.
func (r *Resolver) PackedExt() string {
	return r.ext
}

// Registry returns the registry the resolver reads from.
func (r *Resolver) Registry() *registry.Registry {
	return r.reg
}

// LocateFile returns <module>/<rel> from the most recently resolved module
// that provides it. A non-empty scope restricts the search to that module.
func (r *Resolver) LocateFile(rel, scope string) (Location, bool) {
	for _, m := range r.candidates(scope) {
		if loc, ok := plainLocation(m, rel); ok {
			return loc, true
		}
	}
	return Location{}, false
}

// LocatePackedFile is LocateFile for a subtree that may be packed: for each
// module the entry <name><ext>/<rel> is tried before <name>/<rel>.
func (r *Resolver) LocatePackedFile(name, rel, scope string) (Location, bool) {
	for _, m := range r.candidates(scope) {
		if loc, ok := r.packedLocation(m, name, rel); ok {
			return loc, true
		}
	}
	return Location{}, false
}

// AllFilePaths returns every module's <module>/<rel> in registry order.
func (r *Resolver) AllFilePaths(rel string) []Location {
	var locs []Location
	for _, m := range r.reg.Modules() {
		if loc, ok := plainLocation(m, rel); ok {
			locs = append(locs, loc)
		}
	}
	return dedup(locs)
}

// AllPackedFilePaths returns every module's packed or plain <name>/<rel> in
// registry order. An empty rel matches the archive or directory itself.
func (r *Resolver) AllPackedFilePaths(name, rel string) []Location {
	var locs []Location
	for _, m := range r.reg.Modules() {
		if loc, ok := r.packedLocation(m, name, rel); ok {
			locs = append(locs, loc)
		}
	}
	return dedup(locs)
}

// Glob returns the effective overlay view of plain files matching a
// doublestar pattern: for each relative path the most recently resolved
// module wins. Results are sorted by relative path.
func (r *Resolver) Glob(pattern string) ([]Location, error) {
	pattern = filepath.ToSlash(pattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: %s", ErrBadPattern, pattern)
	}

	winners := make(map[string]Location)
	for _, m := range r.reg.Modules() {
		matches, err := doublestar.Glob(os.DirFS(m.Path), pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %s in %s: %w", pattern, m.ID, err)
		}
		for _, rel := range matches {
			winners[rel] = Location{Module: m.ID, Path: filepath.Join(m.Path, filepath.FromSlash(rel))}
		}
	}

	rels := slices.Sorted(maps.Keys(winners))
	locs := make([]Location, len(rels))
	for i, rel := range rels {
		locs[i] = winners[rel]
	}
	return locs, nil
}

// Open opens the file at loc for reading.
func (r *Resolver) Open(loc Location) (io.ReadCloser, error) {
	if !loc.Packed() {
		return os.Open(loc.Path)
	}

	a, err := r.archive(loc.Archive)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%s: %w", loc.Archive, os.ErrNotExist)
	}
	f, err := a.open(loc.Entry)
	if err != nil {
		return nil, err
	}
	return f.Open()
}

// List returns the files directly under the directory at loc, sorted by
// name. Subdirectories are not included.
func (r *Resolver) List(loc Location) ([]Location, error) {
	if !loc.Packed() {
		entries, err := os.ReadDir(loc.Path)
		if err != nil {
			return nil, err
		}
		var locs []Location
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			locs = append(locs, Location{Module: loc.Module, Path: filepath.Join(loc.Path, e.Name())})
		}
		return locs, nil
	}

	a, err := r.archive(loc.Archive)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%s: %w", loc.Archive, os.ErrNotExist)
	}
	var locs []Location
	for _, entry := range a.children(loc.Entry) {
		locs = append(locs, Location{Module: loc.Module, Archive: loc.Archive, Entry: entry})
	}
	return locs, nil
}

// ReadFile reads the whole file at loc.
func (r *Resolver) ReadFile(loc Location) ([]byte, error) {
	rc, err := r.Open(loc)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Close releases every cached archive reader.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for p, a := range r.archives {
		errs = append(errs, a.close())
		delete(r.archives, p)
	}
	return errors.Join(errs...)
}

// candidates returns the modules to search, most recent first.
func (r *Resolver) candidates(scope string) []*registry.Module {
	if scope == "" {
		return r.reg.Reverse()
	}
	if m, ok := r.reg.Get(scope); ok {
		return []*registry.Module{m}
	}
	return nil
}

func plainLocation(m *registry.Module, rel string) (Location, bool) {
	p := filepath.Join(m.Path, filepath.FromSlash(cleanEntry(rel)))
	if _, err := os.Stat(p); err != nil {
		return Location{}, false
	}
	return Location{Module: m.ID, Path: p}, true
}

func (r *Resolver) packedLocation(m *registry.Module, name, rel string) (Location, bool) {
	entry := cleanEntry(rel)
	archivePath := filepath.Join(m.Path, filepath.FromSlash(cleanEntry(name))+r.ext)

	a, err := r.archive(archivePath)
	if err != nil {
		r.logger.Warn("skipping unreadable archive", "module", m.ID, "archive", archivePath, "error", err)
	} else if a != nil && a.has(entry) {
		return Location{Module: m.ID, Archive: archivePath, Entry: entry}, true
	}

	return plainLocation(m, name+"/"+entry)
}

// archive returns the cached index for p, reopening it when the file changed.
// It returns nil without error when p does not exist.
func (r *Resolver) archive(p string) (*archive, error) {
	info, statErr := os.Stat(p)

	r.mu.Lock()
	defer r.mu.Unlock()

	cached := r.archives[p]
	if statErr != nil || info.IsDir() {
		if cached != nil {
			_ = cached.close()
			delete(r.archives, p)
		}
		if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
			return nil, statErr
		}
		return nil, nil
	}

	if cached != nil {
		if !cached.stale(info) {
			return cached, nil
		}
		_ = cached.close()
		delete(r.archives, p)
	}

	a, err := openArchive(p, info)
	if err != nil {
		return nil, err
	}
	r.archives[p] = a
	return a, nil
}

// dedup keeps the first occurrence of each rendered location.
func dedup(locs []Location) []Location {
	seen := make(map[string]bool, len(locs))
	return slices.DeleteFunc(locs, func(l Location) bool {
		key := l.String()
		if seen[key] {
			return true
		}
		seen[key] = true
		return false
	})
}
