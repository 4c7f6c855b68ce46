// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/modboot/modboot/pkg/manifest"
	"github.com/modboot/modboot/pkg/version"
)

// DefaultModulesDir is the directory, relative to a module, that holds its bundled dependencies.
const DefaultModulesDir = "modules"

type (
	// Options configures a Resolver.
	Options struct {
		// BasePath is the global fallback location for module ids.
		BasePath string
		// WorkDir is searched for <ModulesDir>/<id> when there is no parent module.
		// Defaults to the process working directory.
		WorkDir string
		// AppPath marks the application module; it is kept last in the registry.
		AppPath string
		// ModulesDir defaults to DefaultModulesDir.
		ModulesDir string
		// Loader reads manifests. Defaults to manifest.NewLoader(BasePath).
		Loader *manifest.Loader
		// Logger receives resolution diagnostics. Defaults to a discarding logger.
		Logger *log.Logger
	}

	// Resolver imports modules into a Registry.
	//
	// The whole import call graph runs under the registry write lock, so
	// concurrent imports are serialized and never interleave insertions.
	Resolver struct {
		reg        *Registry
		loader     *manifest.Loader
		basePath   string
		workDir    string
		appPath    string
		modulesDir string
		logger     *log.Logger
	}

	// resolution carries per-call traversal state.
	resolution struct {
		ctx context.Context
		// inProgress holds the canonical paths on the current resolution chain.
		inProgress map[string]bool
		chain      []string
	}
)

// NewResolver creates a resolver that registers modules into reg.
func NewResolver(reg *Registry, opts Options) *Resolver {
	if opts.ModulesDir == "" {
		opts.ModulesDir = DefaultModulesDir
	}
	if opts.Loader == nil {
		opts.Loader = manifest.NewLoader(opts.BasePath)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	r := &Resolver{
		reg:        reg,
		loader:     opts.Loader,
		basePath:   opts.BasePath,
		workDir:    opts.WorkDir,
		modulesDir: opts.ModulesDir,
		logger:     opts.Logger,
	}
	r.appPath = r.canonicalOrSelf(opts.AppPath)
	return r
}

// Registry returns the registry this resolver populates.
func (r *Resolver) Registry() *Registry {
	return r.reg
}

// AppPath returns the canonical application module path.
func (r *Resolver) AppPath() string {
	r.reg.mu.RLock()
	defer r.reg.mu.RUnlock()
	return r.appPath
}

// SetAppPath changes the application module location used for ordering.
func (r *Resolver) SetAppPath(path string) {
	canonical := r.canonicalOrSelf(path)
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()
	r.appPath = canonical
}

// Import resolves the module at pathOrID and all of its dependencies.
//
// It returns an error only when the module itself cannot be loaded or ctx is
// done. Dependency failures are recorded on the module that declared them.
func (r *Resolver) Import(ctx context.Context, pathOrID string) (*Module, error) {
	return r.ImportVersion(ctx, pathOrID, version.Any)
}

// ImportVersion is Import with a version constraint on the root module.
// A root that does not satisfy constraint is not registered.
func (r *Resolver) ImportVersion(ctx context.Context, pathOrID, constraint string) (*Module, error) {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()

	res := newResolution(ctx)
	mod, err := r.resolve(res, pathOrID, constraint, nil, constraint != version.Any && constraint != "")
	if err != nil {
		return nil, err
	}
	return mod, nil
}

// Require resolves depID on behalf of the registered module parentID, the way
// an on-demand lookup would after boot. A failure is recorded on the parent
// and also returned.
func (r *Resolver) Require(ctx context.Context, parentID, depID, constraint string) (*Module, error) {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()

	parent, ok := r.reg.byID[parentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, parentID)
	}

	res := newResolution(ctx)
	mod, err := r.resolve(res, depID, constraint, parent, true)
	if err != nil {
		var depErr *DependencyError
		if errors.As(err, &depErr) {
			parent.recordFailure(depErr)
		}
		return nil, err
	}
	return mod, nil
}

func newResolution(ctx context.Context) *resolution {
	return &resolution{
		ctx:        ctx,
		inProgress: make(map[string]bool),
	}
}

// resolve imports one module. It returns a *DependencyError for soft
// failures and the context error when resolution was cancelled.
func (r *Resolver) resolve(res *resolution, pathOrID, constraint string, parent *Module, checkVersion bool) (*Module, error) {
	if err := res.ctx.Err(); err != nil {
		return nil, err
	}
	if constraint == "" {
		constraint = version.Any
	}
	requester := ""
	if parent != nil {
		requester = parent.ID
	}

	// Identity: an already registered id is returned as is, after the version check.
	if cached, ok := r.reg.byID[pathOrID]; ok {
		if checkVersion && !version.Satisfies(cached.Version, constraint) {
			return nil, &DependencyError{
				Kind:       KindVersionMismatch,
				Requester:  requester,
				ID:         cached.ID,
				Path:       cached.Path,
				Constraint: constraint,
				Version:    cached.Version,
			}
		}
		return cached, nil
	}

	id, path := r.locate(pathOrID, parent)
	canonical, err := canonicalPath(path)
	if err != nil {
		return nil, &DependencyError{Kind: KindMissing, Requester: requester, ID: id, Path: path, Constraint: constraint, Err: err}
	}

	m, err := r.loader.Load(canonical)
	if err != nil {
		return nil, &DependencyError{Kind: KindMissing, Requester: requester, ID: id, Path: canonical, Constraint: constraint, Err: err}
	}

	if checkVersion && !version.Satisfies(m.Version, constraint) {
		return nil, &DependencyError{
			Kind:       KindVersionMismatch,
			Requester:  requester,
			ID:         m.ID,
			Path:       canonical,
			Constraint: constraint,
			Version:    m.Version,
		}
	}

	if cached, ok := r.reg.byPath[canonical]; ok {
		return cached, nil
	}
	if cached, ok := r.reg.byID[m.ID]; ok {
		r.logger.Warn("module id already registered from another location",
			"id", m.ID, "registered", cached.Path, "ignored", canonical)
		return cached, nil
	}

	if res.inProgress[canonical] {
		chain := append(append([]string{}, res.chain...), m.ID)
		return nil, &DependencyError{
			Kind:       KindCycle,
			Requester:  requester,
			ID:         m.ID,
			Path:       canonical,
			Constraint: constraint,
			Chain:      chain,
		}
	}

	res.inProgress[canonical] = true
	res.chain = append(res.chain, m.ID)
	defer func() {
		delete(res.inProgress, canonical)
		res.chain = res.chain[:len(res.chain)-1]
	}()

	mod := newModule(m)
	r.logger.Debug("resolving module", "id", mod.ID, "path", canonical, "version", mod.Version)

	for _, dep := range mod.Dependencies {
		if dep.ID == "" {
			continue
		}
		if _, err := r.resolve(res, dep.ID, dep.Constraint, mod, true); err != nil {
			var depErr *DependencyError
			if !errors.As(err, &depErr) {
				return nil, err
			}
			r.logger.Warn("dependency failed", "module", mod.ID, "dependency", dep.ID, "kind", depErr.Kind, "error", depErr)
			mod.recordFailure(depErr)
		}
	}

	r.reg.insert(mod, r.appPath)
	return mod, nil
}

// locate maps pathOrID to a module id and a candidate directory.
func (r *Resolver) locate(pathOrID string, parent *Module) (id, path string) {
	if filepath.IsAbs(pathOrID) {
		return filepath.Base(filepath.Clean(pathOrID)), pathOrID
	}

	id = pathOrID
	if parent != nil {
		path = filepath.Join(parent.Path, r.modulesDir, id)
	} else {
		path = filepath.Join(r.workDir, r.modulesDir, id)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return id, path
	}
	return id, filepath.Join(r.basePath, id)
}

func (r *Resolver) canonicalOrSelf(path string) string {
	if path == "" {
		return ""
	}
	if canonical, err := canonicalPath(path); err == nil {
		return canonical
	}
	return path
}

// canonicalPath returns the absolute path with symlinks evaluated.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
