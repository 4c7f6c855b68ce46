// SPDX-License-Identifier: MPL-2.0

// Package autoload maps logical code-unit names to the files that define
// them, searching the class directory of every module through the overlay.
package autoload

import (
	"maps"
	"path"
	"strings"
	"sync"

	"github.com/modboot/modboot/pkg/overlay"
)

const (
	// DefaultDir is the module subtree holding code units.
	DefaultDir = "class"
	// DefaultExt is the code-unit file extension.
	DefaultExt = ".php"
)

type (
	// Options configures a Locator.
	Options struct {
		// Dir is the module subtree to search. Defaults to DefaultDir.
		Dir string
		// Ext is the file extension, including the dot. Defaults to DefaultExt.
		Ext string
		// ClassMap, when non-nil, is the only source of locations: names
		// absent from it are not searched for.
		ClassMap map[string]overlay.Location
	}

	// Locator resolves code-unit names. It is safe for concurrent use.
	Locator struct {
		r        *overlay.Resolver
		dir      string
		ext      string
		classMap map[string]overlay.Location

		mu    sync.Mutex
		gen   int
		cache map[string]result
	}

	result struct {
		loc overlay.Location
		ok  bool
	}
)

// New creates a locator over r.
func New(r *overlay.Resolver, opts Options) *Locator {
	if opts.Dir == "" {
		opts.Dir = DefaultDir
	}
	if opts.Ext == "" {
		opts.Ext = DefaultExt
	}
	if !strings.HasPrefix(opts.Ext, ".") {
		opts.Ext = "." + opts.Ext
	}
	var classMap map[string]overlay.Location
	if opts.ClassMap != nil {
		classMap = make(map[string]overlay.Location, len(opts.ClassMap))
		for name, loc := range opts.ClassMap {
			classMap[Normalize(name)] = loc
		}
	}
	return &Locator{
		r:        r,
		dir:      opts.Dir,
		ext:      opts.Ext,
		classMap: classMap,
		cache:    make(map[string]result),
	}
}

// Normalize converts a logical name such as `Gini\Model\User` to the
// slash-separated, lowercase form `gini/model/user`. Dots are kept, so
// `a.b` names the file `a.b<ext>`.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.Trim(path.Clean("/"+name), "/")
}

// Locate returns the file defining name. Results are memoized until the
// registry grows.
func (l *Locator) Locate(name string) (overlay.Location, bool) {
	key := Normalize(name)
	if key == "" {
		return overlay.Location{}, false
	}
	if l.classMap != nil {
		loc, ok := l.classMap[key]
		return loc, ok
	}

	gen := l.r.Registry().Len()

	l.mu.Lock()
	if gen != l.gen {
		clear(l.cache)
		l.gen = gen
	}
	res, hit := l.cache[key]
	l.mu.Unlock()
	if hit {
		return res.loc, res.ok
	}

	loc, ok := l.r.LocatePackedFile(l.dir, key+l.ext, "")

	l.mu.Lock()
	if gen == l.gen {
		l.cache[key] = result{loc: loc, ok: ok}
	}
	l.mu.Unlock()
	return loc, ok
}

// BuildClassMap scans the plain class directories of every module and
// returns the effective name to location map, later modules winning.
// Packed archives are not scanned.
func (l *Locator) BuildClassMap() (map[string]overlay.Location, error) {
	locs, err := l.r.Glob(l.dir + "/**/*" + l.ext)
	if err != nil {
		return nil, err
	}
	out := make(map[string]overlay.Location, len(locs))
	for _, loc := range locs {
		rel := loc.Path
		if m, ok := l.r.Registry().Get(loc.Module); ok {
			rel = strings.TrimPrefix(loc.Path, m.Path)
		}
		rel = strings.ReplaceAll(rel, "\\", "/")
		rel = strings.TrimPrefix(strings.TrimPrefix(rel, "/"), l.dir+"/")
		out[Normalize(strings.TrimSuffix(rel, l.ext))] = loc
	}
	return out, nil
}

// ClassMap returns a copy of the explicit class map, or nil.
func (l *Locator) ClassMap() map[string]overlay.Location {
	if l.classMap == nil {
		return nil
	}
	return maps.Clone(l.classMap)
}
