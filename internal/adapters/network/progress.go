// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package network

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

const (
	redrawInterval = 150 * time.Millisecond
	labelWidth     = 32
)

// progressWriter renders a single progress line for a download. It is an
// io.Writer so it can sit behind io.MultiWriter.
type progressWriter struct {
	out      io.Writer
	bar      progress.Model
	label    string
	total    int64
	written  int64
	lastDraw time.Time
}

func newProgressWriter(out io.Writer, label string, total, offset int64) *progressWriter {
	return &progressWriter{
		out:     out,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		label:   runewidth.Truncate(label, labelWidth, "..."),
		total:   total,
		written: offset,
	}
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))

	if time.Since(p.lastDraw) >= redrawInterval {
		p.draw()
	}

	return len(b), nil
}

func (p *progressWriter) draw() {
	p.lastDraw = time.Now()

	//nolint:gosec
	done := humanize.Bytes(uint64(p.written))

	if p.total <= 0 {
		_, _ = fmt.Fprintf(p.out, "\r%s %s", p.label, done)
		return
	}

	ratio := float64(p.written) / float64(p.total)
	if ratio > 1 {
		ratio = 1
	}

	//nolint:gosec
	_, _ = fmt.Fprintf(p.out, "\r%s %s %s/%s", p.label, p.bar.ViewAs(ratio), done, humanize.Bytes(uint64(p.total)))
}

func (p *progressWriter) finish() {
	p.draw()
	_, _ = fmt.Fprintln(p.out)
}
