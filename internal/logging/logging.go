// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package logging provides the structured logger shared by all components.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Logger is a leveled, structured logger. Keyvals are alternating keys and values.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type charmLogger struct {
	l *log.Logger
}

// New creates a logger writing to w at the given level name
// (debug, info, warn, error). Unknown levels fall back to info.
func New(w io.Writer, level string) Logger {
	l := log.NewWithOptions(w, log.Options{
		Level:           parseLevel(level),
		ReportTimestamp: false,
		Prefix:          "debapps",
	})

	return &charmLogger{l: l}
}

// NewStderr creates a logger on stderr.
func NewStderr(level string) Logger {
	return New(os.Stderr, level)
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return New(io.Discard, "error")
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func (c *charmLogger) Debug(msg string, keyvals ...any) { c.l.Debug(msg, keyvals...) }
func (c *charmLogger) Info(msg string, keyvals ...any)  { c.l.Info(msg, keyvals...) }
func (c *charmLogger) Warn(msg string, keyvals ...any)  { c.l.Warn(msg, keyvals...) }
func (c *charmLogger) Error(msg string, keyvals ...any) { c.l.Error(msg, keyvals...) }

func (c *charmLogger) With(keyvals ...any) Logger {
	return &charmLogger{l: c.l.With(keyvals...)}
}
