// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/modboot/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/modboot/config.cue on macOS, %APPDATA%\modboot\config.cue
// on Windows), falling back to ./config.cue. Environment variables with the MODBOOT_
// prefix override the file; command-line flags override both.
//
// The file is validated against an embedded CUE schema (config_schema.cue) before it is
// merged over the defaults.
package config
