// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modboot/modboot/internal/dag"
)

// newGraphCommand creates the `modboot graph` command.
func newGraphCommand(app *App) *cobra.Command {
	var (
		dot   bool
		check bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show or verify the module dependency graph",
		Long: `Build the dependency graph of the resolved modules.

By default the topological order of the graph is printed. With --check the
registry load order is verified against the graph and the command fails when
a dependency is loaded after one of its dependents. With --dot the graph is
written in Graphviz DOT format; failed modules are drawn in red and missing
dependencies with dashed edges.

Examples:
  modboot graph
  modboot graph --check
  modboot graph --dot | dot -Tsvg > modules.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.boot(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			defer s.Close()

			g := dag.FromRegistry(s.Registry)

			if dot {
				return g.WriteDOT(app.stdout, "modules")
			}

			if check {
				violations := g.CheckOrder(s.Registry.IDs())
				if len(violations) == 0 {
					fmt.Fprintf(app.stdout, "%s load order is consistent (%d modules)\n", SuccessStyle.Render("✓"), s.Registry.Len())
					return nil
				}
				for _, v := range violations {
					fmt.Fprintf(app.stderr, "%s %s\n", ErrorStyle.Render("✗"), v)
				}
				cmd.SilenceErrors = true
				cmd.SilenceUsage = true
				return &ExitError{Code: 1, Err: fmt.Errorf("%d load order violations", len(violations))}
			}

			order, err := g.TopologicalSort()
			if err != nil {
				return app.fail(cmd, err)
			}
			if app.flags.json {
				return app.printJSON(order)
			}
			for i, id := range order {
				line := fmt.Sprintf("%3d. %s", i+1, CmdStyle.Render(id))
				if missing := g.Unresolved(id); len(missing) > 0 {
					line += " " + WarningStyle.Render(fmt.Sprintf("(missing: %v)", missing))
				}
				fmt.Fprintln(app.stdout, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dot, "dot", false, "write the graph in Graphviz DOT format")
	cmd.Flags().BoolVar(&check, "check", false, "verify the registry load order")

	return cmd
}
