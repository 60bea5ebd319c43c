// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package installer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArtifactExt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{"https://go.dev/dl/go1.25.0.linux-amd64.tar.gz", ".tar.gz"},
		{"https://example.com/Obsidian-1.8.10.AppImage", ".AppImage"},
		{"https://example.com/pkg_1.0_amd64.deb?token=abc", ".deb"},
		{"https://portswigger.net/burp/releases/download?product=community&type=Jar", ""},
		{"https://example.com/tool.tgz", ".tgz"},
		{"https://example.com/download", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, artifactExt(tt.url))
		})
	}
}
