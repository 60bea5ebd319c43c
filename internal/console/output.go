// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package console formats the messages debapps writes outside the output
// adapter: help text, usage errors and the final exit error.
package console

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"strings"

	"golang.org/x/term"
)

// OutputState holds global output configuration.
type OutputState struct {
	Verbose bool
	JSON    bool
	Plain   bool

	stdout io.Writer
	stderr io.Writer
}

// DefaultOutput provides output formatting utilities.
var DefaultOutput = &OutputState{} //nolint:gochecknoglobals

// SetMode configures output mode.
func (o *OutputState) SetMode(verbose, json, plain bool) {
	o.Verbose = verbose
	o.JSON = json
	o.Plain = plain
}

// SetWriters redirects results and diagnostics. Nil keeps the process streams.
func (o *OutputState) SetWriters(stdout, stderr io.Writer) {
	o.stdout = stdout
	o.stderr = stderr
}

func (o *OutputState) out() io.Writer {
	if o.stdout == nil {
		return os.Stdout
	}

	return o.stdout
}

func (o *OutputState) errOut() io.Writer {
	if o.stderr == nil {
		return os.Stderr
	}

	return o.stderr
}

// IsTTY checks if output is going to a terminal (not piped/redirected).
func (o *OutputState) IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd)) //nolint:gosec
}

// Bold formats text with bold when in TTY, uppercase when piped.
func (o *OutputState) Bold(text string) string {
	if o.JSON || o.Plain {
		return text
	}

	// no-color.org
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return text
	}

	if f, ok := o.out().(*os.File); ok && o.IsTTY(f.Fd()) {
		return "\033[1m" + text + "\033[0m"
	}

	return strings.ToUpper(text)
}

// Header formats section headers consistently.
func (o *OutputState) Header(text string) string {
	return o.Bold(text)
}

// Warningf writes warning messages to stderr (always visible unless plain mode).
func (o *OutputState) Warningf(format string, args ...any) {
	if o.Plain {
		_, _ = fmt.Fprintf(o.errOut(), "warning: "+format+"\n", args...)
	} else {
		_, _ = fmt.Fprintf(o.errOut(), "⚠ "+format+"\n", args...)
	}
}

// Errorf writes error messages to stderr (always visible).
func (o *OutputState) Errorf(format string, args ...any) {
	if o.Plain {
		_, _ = fmt.Fprintf(o.errOut(), "error: "+format+"\n", args...)
	} else {
		_, _ = fmt.Fprintf(o.errOut(), "✗ "+format+"\n", args...)
	}
}

// JSONResult writes structured JSON results to stdout.
func (o *OutputState) JSONResult(status string, data map[string]any) {
	result := map[string]any{
		"status": status,
	}
	maps.Copy(result, data)

	if err := json.NewEncoder(o.out()).Encode(result); err != nil {
		_, _ = fmt.Fprintf(o.errOut(), "error encoding JSON: %v\n", err)
	}
}

// ErrorResult reports a failed command. JSON mode also writes an error
// document with the exit code to stdout.
func (o *OutputState) ErrorResult(message string, code int) {
	if o.JSON {
		o.JSONResult("error", map[string]any{
			"error": message,
			"code":  code,
		})
	}

	o.Errorf("%s", message)
}
