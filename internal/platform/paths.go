// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package platform provides host paths, proxy settings and user prompts.
package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName is the directory name used under every XDG base directory.
const AppName = "debapps"

// GetXDGConfigHome returns XDG config directory.
func GetXDGConfigHome() string {
	return xdgDir(os.Getenv("XDG_CONFIG_HOME"), ".config")
}

// GetXDGCacheHome returns XDG cache directory.
func GetXDGCacheHome() string {
	return xdgDir(os.Getenv("XDG_CACHE_HOME"), ".cache")
}

// GetXDGStateHome returns XDG state directory.
func GetXDGStateHome() string {
	return xdgDir(os.Getenv("XDG_STATE_HOME"), filepath.Join(".local", "state"))
}

// GetXDGDataHome returns XDG data directory.
func GetXDGDataHome() string {
	return xdgDir(os.Getenv("XDG_DATA_HOME"), filepath.Join(".local", "share"))
}

// xdgDir returns override when set, else $HOME/fallback.
func xdgDir(override, fallback string) string {
	if override != "" {
		return override
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, fallback)
	}

	return ""
}

// ConfigDir returns the debapps config directory.
func ConfigDir() string {
	return filepath.Join(GetXDGConfigHome(), AppName)
}

// CacheDir returns the debapps cache directory.
func CacheDir() string {
	return filepath.Join(GetXDGCacheHome(), AppName)
}

// StateDir returns the debapps state directory.
func StateDir() string {
	return filepath.Join(GetXDGStateHome(), AppName)
}

// ExpandPath expands ~ and the XDG variables this tool understands.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}

	vars := []struct {
		name string
		dir  func() string
	}{
		{"$XDG_CONFIG_HOME", GetXDGConfigHome},
		{"$XDG_CACHE_HOME", GetXDGCacheHome},
		{"$XDG_STATE_HOME", GetXDGStateHome},
		{"$XDG_DATA_HOME", GetXDGDataHome},
	}

	for _, v := range vars {
		if after, found := strings.CutPrefix(path, v.name); found {
			return v.dir() + after
		}
	}

	return path
}
