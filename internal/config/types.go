// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// LogLevel is the minimum level written by the logger.
	LogLevel string

	// InvalidConfigError collects every invalid field of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config is the application configuration.
	Config struct {
		// ModuleBasePath is the fallback location for module ids.
		ModuleBasePath string `json:"module_base_path" mapstructure:"module_base_path"`
		// SysPath is the system module, imported first.
		SysPath string `json:"sys_path" mapstructure:"sys_path"`
		// AppPath is the application module, imported last and kept last in the registry.
		AppPath string `json:"app_path" mapstructure:"app_path"`
		// BaseModuleID is the id every module implicitly depends on.
		BaseModuleID string `json:"base_module_id" mapstructure:"base_module_id"`
		// ManifestFile is the descriptor file name inside a module.
		ManifestFile string `json:"manifest_file" mapstructure:"manifest_file"`
		// ModulesDir holds bundled dependencies inside a module.
		ModulesDir string `json:"modules_dir" mapstructure:"modules_dir"`
		// PackedExt is the packed archive extension, including the dot.
		PackedExt string `json:"packed_ext" mapstructure:"packed_ext"`

		Log      LogConfig      `json:"log" mapstructure:"log"`
		UI       UIConfig       `json:"ui" mapstructure:"ui"`
		Views    ViewsConfig    `json:"views" mapstructure:"views"`
		Autoload AutoloadConfig `json:"autoload" mapstructure:"autoload"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
		// File enables a rotated log file in addition to stderr.
		File       string `json:"file" mapstructure:"file"`
		MaxSize    int    `json:"max_size" mapstructure:"max_size"`
		MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
		Compress   bool   `json:"compress" mapstructure:"compress"`
	}

	// UIConfig configures terminal output.
	UIConfig struct {
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}

	// ViewsConfig configures view lookup.
	ViewsConfig struct {
		// Engines are the view file extensions tried in order, without the dot.
		Engines []string `json:"engines" mapstructure:"engines"`
	}

	// AutoloadConfig configures code-unit lookup.
	AutoloadConfig struct {
		// Extension is the code-unit file extension, including the dot.
		Extension string `json:"extension" mapstructure:"extension"`
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseModuleID: "base",
		ManifestFile: "module.json",
		ModulesDir:   "modules",
		PackedExt:    ".zip",
		Log: LogConfig{
			Level:      LogLevelInfo,
			MaxSize:    10,
			MaxBackups: 3,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
		Views: ViewsConfig{
			Engines: []string{"phtml", "tpl", "html"},
		},
		Autoload: AutoloadConfig{
			Extension: ".php",
		},
	}
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate returns an error if the color scheme is not recognized.
func (c ColorScheme) Validate() error {
	switch c {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidColorScheme, string(c))
	}
}

// Validate returns an error if the log level is not recognized.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, string(l))
	}
}

// Validate checks values that can also come from the environment or flags,
// where the CUE schema does not apply.
func (c *Config) Validate() error {
	var errs []error
	if err := c.UI.ColorScheme.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Log.Level.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.BaseModuleID == "" {
		errs = append(errs, errors.New("base_module_id must not be empty"))
	}
	if c.ManifestFile == "" {
		errs = append(errs, errors.New("manifest_file must not be empty"))
	}
	if !strings.HasPrefix(c.PackedExt, ".") {
		errs = append(errs, fmt.Errorf("packed_ext %q must start with a dot", c.PackedExt))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}
