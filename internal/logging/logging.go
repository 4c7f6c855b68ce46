// SPDX-License-Identifier: MPL-2.0

// Package logging builds the process logger: leveled charmbracelet/log output
// on stderr, optionally mirrored to a size-rotated log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/modboot/modboot/internal/config"
)

// Options configures New.
type Options struct {
	// Level is the minimum level; debug when Verbose is set.
	Level config.LogLevel
	// Verbose forces debug level and caller reporting.
	Verbose bool
	// File, when set, receives a copy of every record, rotated by size.
	File       string
	MaxSize    int
	MaxBackups int
	Compress   bool
	// Output defaults to os.Stderr.
	Output io.Writer
	// Prefix is printed before every message.
	Prefix string
}

// Logger is a charmbracelet logger plus the file rotator it may own.
type Logger struct {
	*log.Logger
	rotator *lumberjack.Logger
}

// FromConfig maps the log and ui sections of cfg to Options.
func FromConfig(cfg *config.Config) Options {
	return Options{
		Level:      cfg.Log.Level,
		Verbose:    cfg.UI.Verbose,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	}
}

// New creates a logger. When the log file directory cannot be created the
// logger still writes to Output and the error is returned alongside it.
func New(opts Options) (*Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var fileErr error
	var rotator *lumberjack.Logger
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			fileErr = fmt.Errorf("creating log directory: %w", err)
		} else {
			rotator = &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    opts.MaxSize,
				MaxBackups: opts.MaxBackups,
				Compress:   opts.Compress,
				LocalTime:  true,
			}
			out = io.MultiWriter(out, rotator)
		}
	}

	logger := log.NewWithOptions(out, log.Options{
		Prefix:          opts.Prefix,
		Level:           ParseLevel(opts.Level, opts.Verbose),
		ReportTimestamp: rotator != nil,
		ReportCaller:    opts.Verbose,
	})
	if fileErr != nil {
		logger.Warn("log file disabled", "path", opts.File, "error", fileErr)
	}

	return &Logger{Logger: logger, rotator: rotator}, fileErr
}

// ParseLevel maps a configured level to a charmbracelet level.
// Verbose wins; unknown levels fall back to info.
func ParseLevel(level config.LogLevel, verbose bool) log.Level {
	if verbose {
		return log.DebugLevel
	}
	l, err := log.ParseLevel(string(level))
	if err != nil {
		return log.InfoLevel
	}
	return l
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// Close flushes and closes the rotated log file, if any.
func (l *Logger) Close() error {
	if l.rotator == nil {
		return nil
	}
	return l.rotator.Close()
}
