// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MODBOOT"

// Env holds the environment overrides. Empty values leave the file and
// default values untouched.
type Env struct {
	ModuleBasePath string `envconfig:"MODULE_BASE_PATH"`
	AppPath        string `envconfig:"APP_PATH"`
	SysPath        string `envconfig:"SYS_PATH"`
	LogLevel       string `envconfig:"LOG_LEVEL"`
	LogFile        string `envconfig:"LOG_FILE"`
	Verbose        *bool  `envconfig:"VERBOSE"`
}

// LoadEnv reads the MODBOOT_* variables.
func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("reading %s_* environment: %w", EnvPrefix, err)
	}
	return &env, nil
}

// apply overrides viper keys with the non-empty environment values.
func (e *Env) apply(v *viper.Viper) {
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("module_base_path", e.ModuleBasePath)
	set("app_path", e.AppPath)
	set("sys_path", e.SysPath)
	set("log.level", e.LogLevel)
	set("log.file", e.LogFile)
	if e.Verbose != nil {
		v.Set("ui.verbose", *e.Verbose)
	}
}
