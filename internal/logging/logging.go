// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jeranaias/parley/internal/util"
)

// Options describes where and how to log.
type Options struct {
	Level  string
	Format string // text or json

	// File is a rotating log file. Empty disables file logging.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Console enables logging to Stderr. Interactive sessions turn this off
	// so log lines never interleave with the chat transcript.
	Console bool

	WithCaller bool
}

// Closer flushes and closes the log file, if any.
type Closer func() error

// Init replaces log.Logger according to opts and sets the global level.
func Init(opts Options) (Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var writers []io.Writer
	if opts.Console {
		if strings.EqualFold(opts.Format, "json") {
			writers = append(writers, os.Stderr)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
		}
	}

	closer := Closer(func() error { return nil })
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), util.PrivateDirPerm); err != nil {
			return nil, errors.Wrap(err, "create log directory")
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		closer = rotator.Close

		if strings.EqualFold(opts.Format, "json") {
			writers = append(writers, rotator)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{NoColor: true, Out: rotator})
		}
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	ctx := zerolog.New(out).With().Timestamp()
	if opts.WithCaller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	zerolog.SetGlobalLevel(level)
	return closer, nil
}

// ParseLevel maps a level name to a zerolog level. Empty means info.
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	}
	return zerolog.NoLevel, errors.Errorf("unknown log level %q", name)
}
