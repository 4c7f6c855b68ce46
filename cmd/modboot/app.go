// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/modboot/modboot/internal/boot"
	"github.com/modboot/modboot/internal/config"
	"github.com/modboot/modboot/internal/issue"
	"github.com/modboot/modboot/internal/logging"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives the App and reads configuration and output streams from it.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer
		flags  globalFlags
	}

	// globalFlags holds the persistent root flags.
	globalFlags struct {
		verbose    bool
		json       bool
		configPath string
		basePath   string
		sysPath    string
		appPath    string
	}

	// session is a booted module set plus the logger it writes to.
	session struct {
		*boot.App
		logger *logging.Logger
	}
)

// NewApp creates an App writing to stdout and stderr.
func NewApp(stdout, stderr io.Writer) *App {
	return &App{
		Config: config.NewProvider(),
		stdout: stdout,
		stderr: stderr,
	}
}

// loadConfig loads the configuration and applies the path flags on top.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, a.loadOptions())
	if err != nil {
		return nil, err
	}
	a.applyFlags(cfg)
	return cfg, nil
}

func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: a.flags.configPath}
}

// applyFlags overrides cfg with the path and verbosity flags.
func (a *App) applyFlags(cfg *config.Config) {
	if a.flags.basePath != "" {
		cfg.ModuleBasePath = a.flags.basePath
	}
	if a.flags.sysPath != "" {
		cfg.SysPath = a.flags.sysPath
	}
	if a.flags.appPath != "" {
		cfg.AppPath = a.flags.appPath
	}
	if a.flags.verbose {
		cfg.UI.Verbose = true
	}
}

func (a *App) verbose() bool {
	return a.flags.verbose
}

// boot loads the configuration and boots the configured modules.
// The caller must close the returned session.
func (a *App) boot(ctx context.Context) (*session, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	opts := logging.FromConfig(cfg)
	opts.Output = a.stderr
	opts.Prefix = "modboot"
	logger, err := logging.New(opts)
	if err != nil {
		return nil, err
	}

	app, err := boot.Boot(ctx, boot.Options{Config: cfg, Logger: logger.Logger})
	if err != nil {
		_ = logger.Close()
		resource := cfg.AppPath
		if resource == "" {
			resource = cfg.SysPath
		}
		if errors.Is(err, boot.ErrNoModules) {
			return nil, issue.NewErrorContext().
				WithOperation("boot modules").
				WithSuggestion("Pass --app or --sys, or set MODBOOT_APP_PATH").
				WithSuggestion("Run 'modboot config show' to inspect the configured paths").
				Wrap(err).
				BuildError()
		}
		return nil, issue.Classify(err, "boot modules", resource)
	}
	return &session{App: app, logger: logger}, nil
}

func (s *session) Close() error {
	return errors.Join(s.App.Close(), s.logger.Close())
}

// fail prints err the way the CLI renders failures and returns an
// ExitError so cobra and fang stay quiet.
func (a *App) fail(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	fmt.Fprintf(a.stderr, "\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, a.verbose()))

	var ae *issue.ActionableError
	if a.verbose() && errors.As(err, &ae) {
		if guide := ae.Issue(); guide != nil {
			if rendered, renderErr := guide.Render("notty"); renderErr == nil {
				fmt.Fprint(a.stderr, rendered)
			}
		}
	}
	return &ExitError{Code: 1, Err: err}
}

// printJSON writes v as indented JSON.
func (a *App) printJSON(v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, string(data))
	return err
}

// renderMarkdown renders md for the terminal in the configured scheme.
func renderMarkdown(md string, scheme config.ColorScheme) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(80)}
	switch scheme {
	case config.ColorSchemeDark, config.ColorSchemeLight:
		opts = append(opts, glamour.WithStandardStyle(string(scheme)))
	default:
		opts = append(opts, glamour.WithAutoStyle())
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
