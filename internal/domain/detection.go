// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import (
	"strings"
	"time"
)

// DetectedBy names the probe that found an installation.
type DetectedBy string

// Probes in the order they run.
const (
	DetectedByLedger  DetectedBy = "ledger"
	DetectedByBinary  DetectedBy = "binary"
	DetectedByDpkg    DetectedBy = "dpkg"
	DetectedByFlatpak DetectedBy = "flatpak"
	DetectedBySnap    DetectedBy = "snap"
	DetectedByDesktop DetectedBy = "desktop"
)

// DetectionResult is derived on every query and never persisted.
type DetectionResult struct {
	AppID         string     `json:"app_id"`
	Installed     bool       `json:"installed"`
	Method        string     `json:"method"`
	Version       string     `json:"version"`
	Location      string     `json:"location"`
	Upgradeable   bool       `json:"upgradeable"`
	LatestVersion string     `json:"latest_version"`
	DetectedBy    DetectedBy `json:"detected_by,omitempty"`
}

// Resolution is the output of the version resolver.
type Resolution struct {
	Version     string    `json:"version"`
	DownloadURL string    `json:"download_url"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Download URL schemes that mean "install through a package manager".
const (
	APTURLScheme     = "apt://"
	FlatpakURLScheme = "flatpak://"
	SnapURLScheme    = "snap://"
)

// IsPackageManagerURL reports whether the download URL is a package manager
// sentinel rather than HTTP.
func (r Resolution) IsPackageManagerURL() bool {
	for _, scheme := range []string{APTURLScheme, FlatpakURLScheme, SnapURLScheme} {
		if strings.HasPrefix(r.DownloadURL, scheme) {
			return true
		}
	}

	return false
}
