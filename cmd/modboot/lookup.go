// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/modboot/modboot/internal/issue"
	"github.com/modboot/modboot/internal/views"
	"github.com/modboot/modboot/pkg/overlay"
	"github.com/modboot/modboot/pkg/version"
)

// newLocateCommand creates the `modboot locate` command.
func newLocateCommand(app *App) *cobra.Command {
	var (
		packed string
		scope  string
		class  bool
		view   bool
	)

	cmd := &cobra.Command{
		Use:   "locate <path|name>",
		Short: "Find the effective copy of a file",
		Long: `Find the file a lookup would use: the most recently loaded module that
provides it wins.

With --packed NAME the path is looked up inside each module's packed archive
NAME.zip before the plain directory NAME. With --class the argument is a
code-unit name (Gini\Model\User) and with --view a view name (errors/404).

Examples:
  modboot locate view/home.tpl
  modboot locate --packed class gini/core.php
  modboot locate --class 'Gini\Core'
  modboot locate --view home --scope framework`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.boot(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			defer s.Close()

			var (
				loc    overlay.Location
				ok     bool
				engine string
			)
			switch {
			case class:
				loc, ok = s.Classes.Locate(args[0])
			case view:
				var found views.View
				found, ok = s.Views.Find(args[0])
				loc, engine = found.Location, found.Engine
			case packed != "":
				loc, ok = s.Overlay.LocatePackedFile(packed, args[0], scope)
			default:
				loc, ok = s.Overlay.LocateFile(args[0], scope)
			}
			if !ok {
				return app.fail(cmd, issue.Classify(fmt.Errorf("%s: %w", args[0], fs.ErrNotExist), "locate file", args[0]))
			}

			if app.flags.json {
				return app.printJSON(loc)
			}
			line := fmt.Sprintf("%s %s", loc.String(), SubtitleStyle.Render("("+loc.Module+")"))
			if engine != "" {
				line += " " + VerboseStyle.Render("engine="+engine)
			}
			fmt.Fprintln(app.stdout, line)
			return nil
		},
	}

	cmd.Flags().StringVar(&packed, "packed", "", "look inside the packed archive or directory `NAME`")
	cmd.Flags().StringVar(&scope, "scope", "", "only search the module with this id")
	cmd.Flags().BoolVar(&class, "class", false, "treat the argument as a code-unit name")
	cmd.Flags().BoolVar(&view, "view", false, "treat the argument as a view name")
	cmd.MarkFlagsMutuallyExclusive("packed", "class", "view")
	cmd.MarkFlagsMutuallyExclusive("scope", "class")
	cmd.MarkFlagsMutuallyExclusive("scope", "view")

	return cmd
}

// newPathsCommand creates the `modboot paths` command.
func newPathsCommand(app *App) *cobra.Command {
	var packed string

	cmd := &cobra.Command{
		Use:   "paths <path>",
		Short: "List every module's copy of a file in load order",
		Long: `List every existing copy of a file across all modules, in load order
(earliest module first). Duplicates are listed once.

Examples:
  modboot paths raw/config/database.yml
  modboot paths --packed raw config`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.boot(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			defer s.Close()

			var locs []overlay.Location
			if packed != "" {
				locs = s.Overlay.AllPackedFilePaths(packed, args[0])
			} else {
				locs = s.Overlay.AllFilePaths(args[0])
			}
			return app.printLocations(locs)
		},
	}

	cmd.Flags().StringVar(&packed, "packed", "", "look inside the packed archive or directory `NAME`")

	return cmd
}

// newGlobCommand creates the `modboot glob` command.
func newGlobCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "glob <pattern>",
		Short: "List the effective files matching a pattern",
		Long: `List the files matching a doublestar pattern across all modules. For each
relative path only the copy from the most recently loaded module is shown.
Packed archives are not searched.

Examples:
  modboot glob 'view/**/*.tpl'
  modboot glob 'class/gini/*.php' --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.boot(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			defer s.Close()

			locs, err := s.Overlay.Glob(args[0])
			if err != nil {
				return app.fail(cmd, issue.NewErrorContext().
					WithOperation("match pattern").
					WithResource(args[0]).
					WithSuggestion("Use doublestar syntax, e.g. 'view/**/*.tpl'").
					Wrap(err).
					BuildError())
			}
			return app.printLocations(locs)
		},
	}
}

func (a *App) printLocations(locs []overlay.Location) error {
	if a.flags.json {
		if locs == nil {
			locs = []overlay.Location{}
		}
		return a.printJSON(locs)
	}
	for _, loc := range locs {
		fmt.Fprintf(a.stdout, "%s %s\n", loc.String(), SubtitleStyle.Render("("+loc.Module+")"))
	}
	return nil
}

// newSatisfiesCommand creates the `modboot satisfies` command.
func newSatisfiesCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "satisfies <version> <constraint>",
		Short: "Check a version against a constraint",
		Long: `Check whether a version satisfies a constraint the way dependency
resolution does. The command exits with status 1 when it does not.

A constraint is an optional operator (=, <, <=, >, >=) followed by a
version; a bare version means >=. "*" and malformed constraints accept every
version.

Examples:
  modboot satisfies 1.2.3 '>=1.0'
  modboot satisfies 2.0 '<2'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ver, constraint := args[0], args[1]
			ok := version.Satisfies(ver, constraint)

			if app.flags.json {
				if err := app.printJSON(map[string]any{
					"version":    ver,
					"constraint": constraint,
					"satisfies":  ok,
				}); err != nil {
					return err
				}
			} else if ok {
				fmt.Fprintf(app.stdout, "%s %s satisfies %s\n", SuccessStyle.Render("✓"), ver, constraint)
			} else {
				fmt.Fprintf(app.stdout, "%s %s does not satisfy %s\n", ErrorStyle.Render("✗"), ver, constraint)
			}

			if !ok {
				cmd.SilenceErrors = true
				cmd.SilenceUsage = true
				return &ExitError{Code: 1}
			}
			return nil
		},
	}
}
