// SPDX-License-Identifier: MPL-2.0

// Package boot assembles a running module set: it imports the system and
// application modules, then wires the overlay and its consumers.
package boot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/modboot/modboot/internal/autoload"
	"github.com/modboot/modboot/internal/config"
	"github.com/modboot/modboot/internal/lifecycle"
	"github.com/modboot/modboot/internal/modconfig"
	"github.com/modboot/modboot/internal/views"
	"github.com/modboot/modboot/pkg/manifest"
	"github.com/modboot/modboot/pkg/overlay"
	"github.com/modboot/modboot/pkg/registry"
)

// ErrNoModules is returned when neither a system nor an application path is set.
var ErrNoModules = errors.New("no system or application module path configured")

type (
	// Options configures Boot.
	Options struct {
		// Config supplies paths and defaults. Nil uses config.DefaultConfig.
		Config *config.Config
		// Logger receives boot diagnostics. Nil discards them.
		Logger *log.Logger
		// WorkDir is where bundled modules are searched for the root imports.
		// Defaults to the process working directory.
		WorkDir string
		// Hooks maps module ids to lifecycle hooks.
		Hooks map[string]any
		// App is the application lifecycle hook, if any.
		App any
	}

	// App is a booted module set.
	App struct {
		// Session identifies this boot in logs.
		Session string
		// ID is the id of the last imported root module.
		ID      string
		SysPath string
		AppPath string

		Config    *config.Config
		Registry  *registry.Registry
		Resolver  *registry.Resolver
		Overlay   *overlay.Resolver
		ModConfig *modconfig.Store
		Classes   *autoload.Locator
		Views     *views.Locator
		Lifecycle *lifecycle.Dispatcher

		logger *log.Logger
	}
)

// Boot imports the system module, then the application module, and wires
// the lookup services over the resulting registry. When no application
// path is set the system module is the application.
func Boot(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if cfg.SysPath == "" && cfg.AppPath == "" {
		return nil, ErrNoModules
	}

	session := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger = logger.With("session", session)

	workDir := opts.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		workDir = wd
	}

	sysPath := rootPath(workDir, cfg.SysPath)
	appRoot := rootPath(workDir, cfg.AppPath)
	appPath := appRoot
	if appPath == "" {
		appPath = sysPath
	}

	loader := manifest.NewLoader(cfg.ModuleBasePath)
	loader.FileName = cfg.ManifestFile
	loader.BaseModuleID = cfg.BaseModuleID

	reg := registry.New()
	res := registry.NewResolver(reg, registry.Options{
		BasePath:   cfg.ModuleBasePath,
		WorkDir:    workDir,
		AppPath:    appPath,
		ModulesDir: cfg.ModulesDir,
		Loader:     loader,
		Logger:     logger,
	})

	app := &App{
		Session:  session,
		SysPath:  sysPath,
		AppPath:  appPath,
		Config:   cfg,
		Registry: reg,
		Resolver: res,
		logger:   logger,
	}

	for _, root := range rootPaths(sysPath, appRoot) {
		m, err := res.Import(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("importing %s: %w", root, err)
		}
		if !m.Healthy() {
			logger.Warn("module has failed dependencies", "module", m.ID, "error", m.Err())
		}
		app.ID = m.ID
	}
	logger.Info("modules resolved", "app", app.ID, "count", reg.Len())

	app.Overlay = overlay.New(reg, overlay.Options{PackedExt: cfg.PackedExt, Logger: logger})

	store, err := modconfig.Load(ctx, app.Overlay, modconfig.Options{Logger: logger})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			_ = app.Overlay.Close()
			return nil, ctxErr
		}
		logger.Warn("some module config fragments were skipped", "error", err)
	}
	app.ModConfig = store

	app.Classes = autoload.New(app.Overlay, autoload.Options{Ext: cfg.Autoload.Extension})
	app.Views = views.New(app.Overlay, views.Options{Engines: cfg.Views.Engines})

	app.Lifecycle = lifecycle.NewDispatcher(reg, logger)
	for id, hook := range opts.Hooks {
		if err := app.Lifecycle.Register(id, hook); err != nil {
			_ = app.Overlay.Close()
			return nil, err
		}
	}
	if opts.App != nil {
		app.Lifecycle.RegisterApp(opts.App)
	}

	return app, nil
}

// rootPath anchors a root given as "./x" or "../x" at workDir. Absolute
// paths and bare module ids are returned unchanged.
func rootPath(workDir, p string) string {
	if p == "" || filepath.IsAbs(p) || !strings.HasPrefix(p, ".") {
		return p
	}
	return filepath.Join(workDir, p)
}

// rootPaths returns the non-empty root imports in order, without repeats.
func rootPaths(sysPath, appPath string) []string {
	var out []string
	for _, p := range []string{sysPath, appPath} {
		if p != "" && (len(out) == 0 || out[0] != p) {
			out = append(out, p)
		}
	}
	return out
}

// Start runs the setup hooks.
func (a *App) Start(ctx context.Context) error {
	return a.Lifecycle.Setup(ctx)
}

// Run sets up every module, runs the application hook's Main and shuts
// down. Failures are passed to the exception hooks before shutdown.
func (a *App) Run(ctx context.Context, args []string) error {
	var errs []error
	if err := a.Start(ctx); err != nil {
		a.logger.Error("setup failed", "error", err)
		a.Lifecycle.HandleException(ctx, err)
		errs = append(errs, err)
	} else if err := a.Lifecycle.Main(ctx, args); err != nil {
		a.logger.Error("main failed", "error", err)
		a.Lifecycle.HandleException(ctx, err)
		errs = append(errs, err)
	}

	if err := a.Stop(ctx); err != nil {
		a.logger.Error("shutdown failed", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Stop runs the shutdown hooks. They receive ctx without its cancellation,
// so an interrupted run still shuts down.
func (a *App) Stop(ctx context.Context) error {
	return a.Lifecycle.Shutdown(context.WithoutCancel(ctx))
}

// Close releases the overlay's archive readers.
func (a *App) Close() error {
	if a.Overlay == nil {
		return nil
	}
	return a.Overlay.Close()
}
