// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/modboot/modboot/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the modboot command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "modboot",
		Short: "Resolve, inspect and boot modular applications",
		Long: TitleStyle.Render("modboot") + SubtitleStyle.Render(" - Resolve, inspect and boot modular applications") + `

modboot discovers the modules an application depends on, resolves them
into a strict load order and lets later modules override the files of
earlier ones (code, views, configuration).

` + SubtitleStyle.Render("Quick Start:") + `
  1. Give each module directory a module.json manifest
  2. Point --app (or MODBOOT_APP_PATH) at the application module
  3. Inspect the result with: modboot modules

` + SubtitleStyle.Render("Examples:") + `
  modboot modules                 List modules in load order
  modboot info gini               Show one module and its dependencies
  modboot locate view/home.tpl    Find the effective copy of a file
  modboot graph --check           Verify the load order
  modboot config show             Show current configuration`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	flags.StringVar(&app.flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/modboot/config.cue)")
	flags.StringVar(&app.flags.basePath, "base-path", "", "global module base path")
	flags.StringVar(&app.flags.sysPath, "sys", "", "system module path")
	flags.StringVar(&app.flags.appPath, "app", "", "application module path")
	flags.BoolVar(&app.flags.json, "json", false, "print machine-readable JSON")

	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.AddCommand(
		newModulesCommand(app),
		newInfoCommand(app),
		newLocateCommand(app),
		newPathsCommand(app),
		newGlobCommand(app),
		newSatisfiesCommand(app),
		newGraphCommand(app),
		newConfigCommand(app),
		newModConfigCommand(app),
		newPackCommand(app),
		newBootCommand(app),
	)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	app := NewApp(os.Stdout, os.Stderr)
	rootCmd := NewRootCommand(app)

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
