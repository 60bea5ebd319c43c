// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

// Distribution represents a Linux distribution.
type Distribution struct {
	Name     string `json:"name"`
	ID       string `json:"id"`
	Version  string `json:"version"`
	Codename string `json:"codename"`
	Family   string `json:"family"` // debian, rhel, arch, suse
}

// DesktopEnvironment represents the desktop environment.
type DesktopEnvironment struct {
	Name    string `json:"name"`
	Session string `json:"session"`
}

// SystemInfo contains system information.
type SystemInfo struct {
	Distribution       *Distribution       `json:"distribution"`
	DesktopEnvironment *DesktopEnvironment `json:"desktop_environment"`
	Architecture       string              `json:"architecture"`
	Kernel             string              `json:"kernel"`
}
