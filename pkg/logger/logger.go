// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package logger provides structured logging using zerolog.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Output formats accepted by Initialize.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// current holds the global logger. It is replaced, never mutated.
var current atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(os.Stderr).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	current.Store(&l)
}

func load() *zerolog.Logger {
	return current.Load()
}

// update replaces the global logger with fn applied to it.
func update(fn func(zerolog.Logger) zerolog.Logger) {
	for {
		old := current.Load()
		next := fn(*old)
		if current.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Initialize sets up the global logger with the specified level and a console writer.
func Initialize(level string) {
	InitializeWithFormat(level, FormatConsole)
}

// InitializeWithFormat sets up the global logger with the specified level and output format.
// Unknown formats fall back to the console writer.
func InitializeWithFormat(level, format string) {
	logLevel, err := parseLogLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if strings.ToLower(format) == FormatJSON {
		output = os.Stderr
	}

	l := zerolog.New(output).
		Level(logLevel).
		With().
		Timestamp().
		Caller().
		Logger()
	current.Store(&l)
}

// parseLogLevel converts string log level to zerolog.Level
func parseLogLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "fatal":
		return zerolog.FatalLevel, nil
	case "panic":
		return zerolog.PanicLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// SetLevel changes the level of the global logger. Invalid levels are ignored
// and reported as false.
func SetLevel(level string) bool {
	logLevel, err := parseLogLevel(level)
	if err != nil {
		return false
	}
	update(func(l zerolog.Logger) zerolog.Logger { return l.Level(logLevel) })
	return true
}

// Get returns the global logger instance
func Get() *zerolog.Logger {
	return load()
}

// Component returns a child logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return load().With().Str("component", name).Logger()
}

// Debug logs a debug message
func Debug() *zerolog.Event {
	return load().Debug()
}

// Info logs an info message
func Info() *zerolog.Event {
	return load().Info()
}

// Warn logs a warning message
func Warn() *zerolog.Event {
	return load().Warn()
}

// Error logs an error message
func Error() *zerolog.Event {
	return load().Error()
}

// Fatal logs a fatal message and exits
func Fatal() *zerolog.Event {
	return load().Fatal()
}

// With creates a child logger with additional fields
func With() zerolog.Context {
	return load().With()
}

// SetOutput sets the output writer for the logger
func SetOutput(w io.Writer) {
	update(func(l zerolog.Logger) zerolog.Logger { return l.Output(w) })
}
