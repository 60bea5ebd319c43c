// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package network

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
)

func TestProgressLabelTruncation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		label string
	}{
		{"short ascii", "tool.AppImage"},
		{"long ascii", strings.Repeat("a", 60) + ".tar.gz"},
		{"long multibyte", strings.Repeat("日本語", 12) + ".AppImage"},
		{"accents at the cut", strings.Repeat("é", 40)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := newProgressWriter(&bytes.Buffer{}, tt.label, 100, 0)

			assert.True(t, utf8.ValidString(p.label))
			assert.LessOrEqual(t, runewidth.StringWidth(p.label), labelWidth)

			if runewidth.StringWidth(tt.label) <= labelWidth {
				assert.Equal(t, tt.label, p.label)
			} else {
				assert.True(t, strings.HasSuffix(p.label, "..."))
			}
		})
	}
}
