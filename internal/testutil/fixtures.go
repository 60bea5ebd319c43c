// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package testutil

import (
	"github.com/bradsec/debapps/internal/domain"
)

// GitHubApp returns an AppImage entry resolved from GitHub releases.
func GitHubApp(id, prefix string) *domain.App {
	return &domain.App{
		ID:     id,
		Name:   id,
		Method: domain.MethodAppImage,
		Source: domain.GitHubRelease{
			Repo:          "example/" + id,
			AssetPattern:  id + "-{version}.AppImage",
			VersionPrefix: prefix,
		},
		InstallLocation: "/opt/" + id,
		GUI:             true,
	}
}

// DirectApp returns a .deb entry with a fixed URL.
func DirectApp(id, url string) *domain.App {
	return &domain.App{
		ID:     id,
		Name:   id,
		Method: domain.MethodDEB,
		Source: domain.DirectDownload{URL: url},
	}
}

// APTRepoApp returns an entry installed from a third-party repository.
func APTRepoApp(id, pkg string) *domain.App {
	return &domain.App{
		ID:     id,
		Name:   id,
		Method: domain.MethodAPTRepo,
		Source: domain.APTRepository{
			KeyURL:      "https://example.com/key.asc",
			KeyName:     id + ".gpg",
			RepoLine:    "deb [signed-by=/etc/apt/keyrings/" + id + ".gpg] https://example.com/apt <DISTRO> main",
			RepoFile:    id + ".list",
			PackageName: pkg,
		},
		Detection: domain.Detection{APTPackages: []string{pkg}},
	}
}

// CreateTestSystemInfo returns an Ubuntu 24.04 host.
func CreateTestSystemInfo() *domain.SystemInfo {
	return &domain.SystemInfo{
		Distribution: &domain.Distribution{
			Name:     "Ubuntu",
			ID:       "ubuntu",
			Version:  "24.04",
			Codename: "noble",
			Family:   "debian",
		},
		DesktopEnvironment: &domain.DesktopEnvironment{Name: "GNOME", Session: "wayland"},
		Architecture:       "x86_64",
		Kernel:             "6.8.0-45-generic",
	}
}
