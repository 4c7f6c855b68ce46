// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modboot/modboot/internal/config"
	"github.com/modboot/modboot/internal/issue"
)

// newConfigCommand creates the `modboot config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect modboot configuration",
		Long: `Inspect modboot configuration.

Configuration is stored in:
  - Linux: ~/.config/modboot/config.cue
  - macOS: ~/Library/Application Support/modboot/config.cue
  - Windows: %APPDATA%\modboot\config.cue

MODBOOT_* environment variables override the file; command-line flags
override both.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := showConfig(cmd.Context(), app); err != nil {
				return app.fail(cmd, err)
			}
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return app.fail(cmd, err)
			}
			file, err := config.ConfigFilePath()
			if err != nil {
				return app.fail(cmd, err)
			}
			if app.flags.configPath != "" {
				file = app.flags.configPath
			}
			fmt.Fprintf(app.stdout, "Config directory: %s\n", dir)
			fmt.Fprintf(app.stdout, "Config file: %s\n", file)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, path, err := config.LoadWithPath(ctx, app.loadOptions())
	if err != nil {
		if rendered, renderErr := issue.Get(issue.ConfigLoadFailedId).Render("notty"); renderErr == nil && app.verbose() {
			fmt.Fprint(app.stderr, rendered)
		}
		return err
	}
	app.applyFlags(cfg)

	if app.flags.json {
		return app.printJSON(cfg)
	}

	out := app.stdout
	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	value := func(s string) string {
		if s == "" {
			return SubtitleStyle.Render("(not set)")
		}
		return valueStyle.Render(s)
	}

	fmt.Fprintln(out, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(out)
	if path != "" {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("module_base_path"), value(cfg.ModuleBasePath))
	fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("sys_path"), value(cfg.SysPath))
	fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("app_path"), value(cfg.AppPath))
	fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("base_module_id"), value(cfg.BaseModuleID))
	fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("manifest_file"), value(cfg.ManifestFile))
	fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("modules_dir"), value(cfg.ModulesDir))
	fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("packed_ext"), value(cfg.PackedExt))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("log"))
	fmt.Fprintf(out, "  level: %s\n", value(string(cfg.Log.Level)))
	fmt.Fprintf(out, "  file: %s\n", value(cfg.Log.File))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(out, "  color_scheme: %s\n", value(string(cfg.UI.ColorScheme)))
	fmt.Fprintf(out, "  verbose: %s\n", value(fmt.Sprintf("%v", cfg.UI.Verbose)))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("views"))
	fmt.Fprintf(out, "  engines: %s\n", value(strings.Join(cfg.Views.Engines, ", ")))
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("autoload"))
	fmt.Fprintf(out, "  extension: %s\n", value(cfg.Autoload.Extension))

	return nil
}
