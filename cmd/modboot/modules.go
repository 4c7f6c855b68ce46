// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modboot/modboot/pkg/registry"
	"github.com/modboot/modboot/pkg/version"
)

type (
	// moduleView is the JSON shape of a resolved module.
	moduleView struct {
		ID           string           `json:"id"`
		Name         string           `json:"name,omitempty"`
		Description  string           `json:"description,omitempty"`
		Version      string           `json:"version,omitempty"`
		Path         string           `json:"path"`
		Dependencies []dependencyView `json:"dependencies"`
		Error        string           `json:"error,omitempty"`
		Failures     []string         `json:"failures,omitempty"`
	}

	dependencyView struct {
		ID         string `json:"id"`
		Constraint string `json:"constraint"`
		Resolved   string `json:"resolved,omitempty"`
		Satisfied  bool   `json:"satisfied"`
	}
)

func newModuleView(reg *registry.Registry, m *registry.Module) moduleView {
	v := moduleView{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		Version:      m.Version,
		Path:         m.Path,
		Dependencies: []dependencyView{},
		Error:        m.Err(),
	}
	for _, dep := range m.Dependencies {
		dv := dependencyView{ID: dep.ID, Constraint: dep.Constraint}
		if resolved, ok := reg.Get(dep.ID); ok {
			dv.Resolved = resolved.Path
			dv.Satisfied = version.Satisfies(resolved.Version, dep.Constraint)
		}
		v.Dependencies = append(v.Dependencies, dv)
	}
	for _, f := range m.Failures() {
		v.Failures = append(v.Failures, f.Error())
	}
	return v
}

// newModulesCommand creates the `modboot modules` command.
func newModulesCommand(app *App) *cobra.Command {
	var healthyOnly bool

	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List resolved modules in load order",
		Long: `Resolve the configured system and application modules and list every
module in load order. Dependencies always precede their dependents and the
application module comes last.

Modules whose dependencies failed to resolve stay registered and are shown
with their error; they take no part in the lifecycle.

Examples:
  modboot modules --app ./app
  modboot modules --healthy
  modboot modules --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.boot(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			defer s.Close()

			modules := s.Registry.Modules()
			if healthyOnly {
				modules = s.Registry.Healthy()
			}

			if app.flags.json {
				views := make([]moduleView, 0, len(modules))
				for _, m := range modules {
					views = append(views, newModuleView(s.Registry, m))
				}
				return app.printJSON(views)
			}

			fmt.Fprintln(app.stdout, TitleStyle.Render("Modules")+SubtitleStyle.Render(fmt.Sprintf(" (%d, app: %s)", len(modules), s.ID)))
			fmt.Fprintln(app.stdout)
			for i, m := range modules {
				status := SuccessStyle.Render("ok")
				if !m.Healthy() {
					status = ErrorStyle.Render("error")
				}
				ver := m.Version
				if ver == "" {
					ver = "-"
				}
				fmt.Fprintf(app.stdout, "%3d. %s %s [%s] %s\n", i+1, CmdStyle.Render(m.ID), ver, status, VerboseStyle.Render(m.Path))
				if err := m.Err(); err != "" {
					fmt.Fprintf(app.stdout, "     %s %s\n", WarningStyle.Render("↳"), err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&healthyOnly, "healthy", false, "only list modules without dependency failures")

	return cmd
}

// newInfoCommand creates the `modboot info` command.
func newInfoCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "info <module-id>",
		Short: "Show a module and its dependencies",
		Long: `Show the manifest of a resolved module, the status of each declared
dependency and every failure recorded while resolving them.

The module description is rendered as Markdown.

Examples:
  modboot info gini
  modboot info app --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.boot(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			defer s.Close()

			m, ok := s.Registry.Get(args[0])
			if !ok {
				return app.fail(cmd, fmt.Errorf("module %q: %w", args[0], registry.ErrModuleNotFound))
			}
			view := newModuleView(s.Registry, m)
			if app.flags.json {
				return app.printJSON(view)
			}

			out := app.stdout
			title := view.ID
			if view.Name != "" {
				title = view.Name + " (" + view.ID + ")"
			}
			fmt.Fprintln(out, TitleStyle.Render(title))
			fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("version"), orDash(view.Version))
			fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("path"), view.Path)
			fmt.Fprintf(out, "%s: %d\n", CmdStyle.Render("position"), s.Registry.Index(view.ID)+1)

			if desc := strings.TrimSpace(view.Description); desc != "" {
				rendered, err := renderMarkdown(desc, s.Config.UI.ColorScheme)
				if err != nil {
					rendered = desc + "\n"
				}
				fmt.Fprintln(out)
				fmt.Fprint(out, rendered)
			}

			fmt.Fprintln(out)
			fmt.Fprintf(out, "%s:\n", CmdStyle.Render("dependencies"))
			if len(view.Dependencies) == 0 {
				fmt.Fprintf(out, "  %s\n", SubtitleStyle.Render("(none)"))
			}
			for _, dep := range view.Dependencies {
				mark := SuccessStyle.Render("✓")
				if !dep.Satisfied {
					mark = ErrorStyle.Render("✗")
				}
				fmt.Fprintf(out, "  %s %s %s\n", mark, dep.ID, SubtitleStyle.Render(dep.Constraint))
			}

			if len(view.Failures) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintf(out, "%s:\n", ErrorStyle.Render("failures"))
				for _, f := range view.Failures {
					fmt.Fprintf(out, "  - %s\n", f)
				}
			}
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
