// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/modboot/modboot/internal/modconfig"
)

// newModConfigCommand creates the `modboot modconfig` command.
func newModConfigCommand(app *App) *cobra.Command {
	var sources bool

	cmd := &cobra.Command{
		Use:   "modconfig [key]",
		Short: "Show the merged module configuration",
		Long: `Show the configuration assembled from every module's raw/config
fragments (YAML, TOML or JSON, plain or packed). Each file name is a
top-level key; fragments are merged in load order so later modules override
earlier ones.

Without a key the whole configuration is printed as YAML. Keys are dotted
paths into the merged tree.

Examples:
  modboot modconfig
  modboot modconfig database.host
  modboot modconfig --sources`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.boot(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			defer s.Close()

			if sources {
				list := s.ModConfig.Sources()
				if app.flags.json {
					if list == nil {
						list = []modconfig.Source{}
					}
					return app.printJSON(list)
				}
				for _, src := range list {
					fmt.Fprintf(app.stdout, "%s %s %s\n", CmdStyle.Render(src.Key), src.Location.String(), SubtitleStyle.Render("("+src.Location.Module+")"))
				}
				return nil
			}

			var value any = s.ModConfig.All()
			if len(args) == 1 {
				v, ok := s.ModConfig.Get(args[0])
				if !ok {
					return app.fail(cmd, fmt.Errorf("config key %q: %w", args[0], modconfig.ErrKeyNotFound))
				}
				value = v
			}

			if app.flags.json {
				return app.printJSON(value)
			}
			data, err := yaml.Marshal(value)
			if err != nil {
				return err
			}
			_, err = app.stdout.Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&sources, "sources", false, "list the merged fragments instead of the values")

	return cmd
}
