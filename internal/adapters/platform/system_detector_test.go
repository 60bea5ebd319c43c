// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package platform

import (
	"context"
	"runtime"
	"testing"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemDetector_DetectDistribution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(*MockFileManager)
		want  *domain.Distribution
	}{
		{
			name: "detect Ubuntu distribution",
			setup: func(fm *MockFileManager) {
				fm.SetMockFile("/etc/os-release", []byte(`
ID=ubuntu
VERSION_ID="24.04"
NAME="Ubuntu"
VERSION="24.04.1 LTS (Noble Numbat)"
PRETTY_NAME="Ubuntu 24.04.1 LTS"
VERSION_CODENAME=noble
UBUNTU_CODENAME=noble
`))
			},
			want: &domain.Distribution{
				ID:       "ubuntu",
				Name:     "Ubuntu",
				Version:  "24.04.1 LTS (Noble Numbat)",
				Codename: "noble",
				Family:   "debian",
			},
		},
		{
			name: "Mint uses the Ubuntu codename",
			setup: func(fm *MockFileManager) {
				fm.SetMockFile("/etc/os-release", []byte(`
NAME="Linux Mint"
VERSION="22 (Wilma)"
ID=linuxmint
ID_LIKE="ubuntu debian"
VERSION_CODENAME=wilma
UBUNTU_CODENAME=noble
`))
			},
			want: &domain.Distribution{
				ID:       "linuxmint",
				Name:     "Linux Mint",
				Version:  "22 (Wilma)",
				Codename: "noble",
				Family:   "debian",
			},
		},
		{
			name: "family from ID_LIKE",
			setup: func(fm *MockFileManager) {
				fm.SetMockFile("/etc/os-release", []byte(`
ID=elementary
ID_LIKE=ubuntu
NAME="elementary OS"
VERSION_CODENAME=circe
UBUNTU_CODENAME=noble
`))
			},
			want: &domain.Distribution{
				ID:       "elementary",
				Name:     "elementary OS",
				Codename: "noble",
				Family:   "debian",
			},
		},
		{
			name: "detect Debian with comments",
			setup: func(fm *MockFileManager) {
				fm.SetMockFile("/etc/os-release", []byte(`
# This is a comment

ID=debian
VERSION="12 (bookworm)"
NAME="Debian GNU/Linux"
VERSION_CODENAME=bookworm
`))
			},
			want: &domain.Distribution{
				ID:       "debian",
				Name:     "Debian GNU/Linux",
				Version:  "12 (bookworm)",
				Codename: "bookworm",
				Family:   "debian",
			},
		},
		{
			name: "lsb-release fallback",
			setup: func(fm *MockFileManager) {
				fm.SetMockFile("/etc/lsb-release", []byte(`DISTRIB_ID=Ubuntu
DISTRIB_RELEASE=22.04
DISTRIB_CODENAME=jammy
DISTRIB_DESCRIPTION="Ubuntu 22.04.3 LTS"
`))
			},
			want: &domain.Distribution{
				ID:       "ubuntu",
				Name:     "Ubuntu 22.04.3 LTS",
				Version:  "22.04",
				Codename: "jammy",
				Family:   "debian",
			},
		},
		{
			name:  "missing os-release file",
			setup: func(_ *MockFileManager) {},
			want: &domain.Distribution{
				ID:     "unknown",
				Name:   "Unknown",
				Family: "unknown",
			},
		},
		{
			name: "malformed os-release file",
			setup: func(fm *MockFileManager) {
				fm.SetMockFile("/etc/os-release", []byte(`
This is not a valid os-release file
Random text here
`))
			},
			want: &domain.Distribution{Family: "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockFM := NewMockFileManager()
			tt.setup(mockFM)

			detector := NewSystemDetector(NewMockCommandRunner(false), mockFM)

			dist, err := detector.DetectDistribution(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, dist)
		})
	}
}

func TestSystemDetector_DetectDesktopEnvironment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  map[string]string
		want *domain.DesktopEnvironment
	}{
		{
			name: "detect GNOME desktop",
			env:  map[string]string{"XDG_CURRENT_DESKTOP": "ubuntu:GNOME", "XDG_SESSION_DESKTOP": "ubuntu"},
			want: &domain.DesktopEnvironment{Name: "ubuntu:GNOME", Session: "ubuntu"},
		},
		{
			name: "session fallback",
			env:  map[string]string{"DESKTOP_SESSION": "plasma"},
			want: &domain.DesktopEnvironment{Name: "plasma", Session: "plasma"},
		},
		{
			name: "no desktop environment",
			env:  map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			detector := NewSystemDetector(NewMockCommandRunner(false), NewMockFileManager())
			detector.getenv = func(k string) string { return tt.env[k] }

			de, err := detector.DetectDesktopEnvironment(context.Background())
			if tt.want == nil {
				require.ErrorIs(t, err, domain.ErrNoDesktopEnvironment)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, de)
		})
	}
}

func TestSystemDetector_DetectSystem(t *testing.T) {
	t.Parallel()

	t.Run("full system detection", func(t *testing.T) {
		t.Parallel()

		cmd := NewMockCommandRunner(false)
		cmd.SetMockOutput("dpkg --print-architecture", "amd64\n")
		cmd.SetMockOutput("uname -r", "6.8.0-51-generic\n")

		fm := NewMockFileManager()
		fm.SetMockFile("/etc/os-release", []byte("ID=ubuntu\nVERSION_CODENAME=noble\n"))

		info, err := NewSystemDetector(cmd, fm).DetectSystem(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "amd64", info.Architecture)
		assert.Equal(t, "6.8.0-51-generic", info.Kernel)
		assert.Equal(t, "noble", info.Distribution.Codename)
		assert.Equal(t, "ubuntu", info.Distribution.ID)
	})

	t.Run("architecture falls back to the runtime", func(t *testing.T) {
		t.Parallel()

		cmd := NewMockCommandRunner(false)
		cmd.SetMockError("dpkg --print-architecture", nil)
		cmd.SetMockError("uname -r", nil)

		info, err := NewSystemDetector(cmd, NewMockFileManager()).DetectSystem(context.Background())
		require.NoError(t, err)

		assert.Equal(t, runtime.GOARCH, info.Architecture)
		assert.Equal(t, "unknown", info.Kernel)
	})
}
