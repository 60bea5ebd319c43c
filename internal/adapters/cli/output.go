// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package cli provides output adapters for CLI operations.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/mattn/go-runewidth"
)

// OutputAdapter implements domain.OutputPort for CLI output.
type OutputAdapter struct {
	writer io.Writer
	format OutputFormat
	quiet  bool
}

var _ domain.OutputPort = (*OutputAdapter)(nil)

// OutputFormat represents the output format type.
type OutputFormat int

const (
	// TextFormat outputs human-readable text.
	TextFormat OutputFormat = iota
	// JSONFormat outputs machine-readable JSON.
	JSONFormat
)

// NewOutputAdapterWithWriter creates an output adapter writing to writer.
func NewOutputAdapterWithWriter(writer io.Writer, format OutputFormat, quiet bool) *OutputAdapter {
	return &OutputAdapter{
		writer: writer,
		format: format,
		quiet:  quiet,
	}
}

// Success outputs a success message with optional structured data.
func (o *OutputAdapter) Success(message string, data interface{}) error {
	if o.quiet && data == nil {
		return nil
	}

	if o.format == JSONFormat && data != nil {
		return o.outputJSON(data)
	}

	if message != "" && !o.quiet {
		_, _ = fmt.Fprintln(o.writer, message)
	}

	return nil
}

// Error outputs an error message.
func (o *OutputAdapter) Error(message string) error {
	if o.quiet {
		return nil
	}

	if o.format == JSONFormat {
		errorData := map[string]string{"error": message}

		return o.outputJSON(errorData)
	}

	_, _ = fmt.Fprintf(o.writer, "Error: %s\n", message)

	return nil
}

// Info outputs an informational message.
func (o *OutputAdapter) Info(message string) error {
	if o.quiet {
		return nil
	}

	if o.format == JSONFormat {
		infoData := map[string]string{"info": message}

		return o.outputJSON(infoData)
	}

	_, _ = fmt.Fprintln(o.writer, message)

	return nil
}

// Progress outputs progress information for long-running operations.
func (o *OutputAdapter) Progress(message string) error {
	if o.quiet || o.format == JSONFormat {
		return nil
	}

	_, _ = fmt.Fprintf(o.writer, "\r%s\n", message)

	return nil
}

// Table outputs tabular data. Columns are padded by display width so
// status glyphs and wide characters stay aligned.
func (o *OutputAdapter) Table(headers []string, rows [][]string) error {
	if o.quiet {
		return nil
	}

	if o.format == JSONFormat {
		tableData := map[string]interface{}{
			"headers": headers,
			"rows":    rows,
		}

		return o.outputJSON(tableData)
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}

	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
		}
	}

	separators := make([]string, len(headers))
	for i := range headers {
		separators[i] = strings.Repeat("-", widths[i])
	}

	o.writeRow(widths, headers)
	o.writeRow(widths, separators)

	for _, row := range rows {
		o.writeRow(widths, row)
	}

	return nil
}

func (o *OutputAdapter) writeRow(widths []int, cells []string) {
	var line strings.Builder

	for i, cell := range cells {
		if i >= len(widths) {
			break
		}

		if i == len(cells)-1 || i == len(widths)-1 {
			line.WriteString(cell)
			break
		}

		line.WriteString(runewidth.FillRight(cell, widths[i]))
		line.WriteString("  ")
	}

	_, _ = fmt.Fprintln(o.writer, strings.TrimRight(line.String(), " "))
}

// IsQuiet returns true if output should be suppressed.
func (o *OutputAdapter) IsQuiet() bool {
	return o.quiet
}

// outputJSON outputs data as JSON.
func (o *OutputAdapter) outputJSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(data)
}
