// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modboot/modboot/internal/issue"
	"github.com/modboot/modboot/pkg/overlay"
)

// newPackCommand creates the `modboot pack` command.
func newPackCommand(app *App) *cobra.Command {
	var ext string

	cmd := &cobra.Command{
		Use:   "pack <module-dir> <dir>...",
		Short: "Pack module subtrees into archives",
		Long: `Pack each <module-dir>/<dir> into <module-dir>/<dir>.zip. Lookups prefer
the archive over the plain directory, so a packed module can ship without
its plain copies.

Hidden and empty files are skipped. File contents are stored unchanged.

Examples:
  modboot pack ./modules/gini class view
  modboot pack ./app raw --ext .pkg`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ext == "" {
				cfg, err := app.loadConfig(cmd.Context())
				if err != nil {
					return app.fail(cmd, err)
				}
				ext = cfg.PackedExt
			}

			moduleDir := args[0]
			var results []*overlay.PackResult
			for _, dir := range args[1:] {
				res, err := overlay.Pack(moduleDir, dir, ext)
				if err != nil {
					return app.fail(cmd, issue.NewErrorContext().
						WithOperation("pack archive").
						WithResource(dir).
						WithIssue(issue.PackFailedId).
						WithSuggestion("Check that the directory exists inside the module").
						Wrap(err).
						BuildError())
				}
				results = append(results, res)
			}

			if app.flags.json {
				return app.printJSON(results)
			}
			for _, res := range results {
				fmt.Fprintf(app.stdout, "%s %s %s\n",
					SuccessStyle.Render("✓"),
					res.Archive,
					SubtitleStyle.Render(fmt.Sprintf("(%d files, %d bytes)", res.Files, res.Bytes)))
				for _, skipped := range res.Skipped {
					fmt.Fprintf(app.stdout, "  %s skipped %s\n", WarningStyle.Render("!"), skipped)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ext, "ext", "", "archive extension (default from config)")

	return cmd
}
