// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modboot/modboot/internal/lifecycle"
)

// bootReport is the JSON shape of `modboot boot`.
type bootReport struct {
	Session  string            `json:"session"`
	App      string            `json:"app"`
	SysPath  string            `json:"sys_path,omitempty"`
	AppPath  string            `json:"app_path"`
	Modules  []string          `json:"modules"`
	Failed   []string          `json:"failed,omitempty"`
	Hooks    map[string]string `json:"hooks"`
	Config   []string          `json:"config_keys"`
	Engines  []string          `json:"view_engines"`
	Classes  int               `json:"classes"`
	Setup    string            `json:"setup,omitempty"`
	Shutdown string            `json:"shutdown,omitempty"`
}

// newBootCommand creates the `modboot boot` command.
func newBootCommand(app *App) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "boot",
		Short: "Boot the configured modules and report the result",
		Long: `Run the full boot sequence: import the system module, then the
application module, wire the file overlay and load the module
configuration. Unless --dry-run is given the setup and shutdown phases of
the lifecycle are dispatched as well.

Modules whose dependencies failed are reported and take no part in the
lifecycle. The command fails when the boot itself fails.

Examples:
  modboot boot --sys ./gini --app ./app
  modboot boot --dry-run --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := app.boot(ctx)
			if err != nil {
				return app.fail(cmd, err)
			}
			defer s.Close()

			classes, err := s.Classes.BuildClassMap()
			if err != nil {
				return app.fail(cmd, err)
			}

			report := bootReport{
				Session: s.Session,
				App:     s.ID,
				SysPath: s.SysPath,
				AppPath: s.AppPath,
				Modules: s.Registry.IDs(),
				Hooks:   s.Lifecycle.Snapshot(),
				Config:  s.ModConfig.Keys(),
				Engines: s.Views.Engines(),
				Classes: len(classes),
			}
			for _, m := range s.Registry.Modules() {
				if !m.Healthy() {
					report.Failed = append(report.Failed, m.ID)
				}
			}

			var phaseErr error
			if !dryRun {
				report.Setup, report.Shutdown = "ok", "ok"
				if err := s.Start(ctx); err != nil {
					report.Setup = err.Error()
					s.Lifecycle.HandleException(ctx, err)
					phaseErr = err
				}
				if err := s.Stop(ctx); err != nil {
					report.Shutdown = err.Error()
					if phaseErr == nil {
						phaseErr = err
					}
				}
			}

			if app.flags.json {
				if err := app.printJSON(report); err != nil {
					return err
				}
			} else {
				printBootReport(app, report)
			}
			if phaseErr != nil {
				return app.fail(cmd, phaseErr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve and wire modules without running lifecycle hooks")

	return cmd
}

func printBootReport(app *App, r bootReport) {
	out := app.stdout
	fmt.Fprintf(out, "%s %s\n", TitleStyle.Render("Booted"), CmdStyle.Render(r.App))
	fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("session"), r.Session)
	fmt.Fprintf(out, "%s: %d %s\n", CmdStyle.Render("modules"), len(r.Modules), SubtitleStyle.Render(fmt.Sprint(r.Modules)))
	if len(r.Failed) > 0 {
		fmt.Fprintf(out, "%s: %s\n", ErrorStyle.Render("failed"), fmt.Sprint(r.Failed))
	}
	fmt.Fprintf(out, "%s: %d\n", CmdStyle.Render("classes"), r.Classes)
	fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("config keys"), fmt.Sprint(r.Config))

	hooked := 0
	for _, status := range r.Hooks {
		if status != lifecycle.StatusMissing {
			hooked++
		}
	}
	fmt.Fprintf(out, "%s: %d\n", CmdStyle.Render("hooks"), hooked)
	if r.Setup != "" {
		fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("setup"), r.Setup)
		fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("shutdown"), r.Shutdown)
	}
}
