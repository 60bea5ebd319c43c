// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import "time"

// FileType classifies a path recorded for an installation.
type FileType string

// Recorded path kinds.
const (
	FileSymlink     FileType = "symlink"
	FileDesktop     FileType = "desktop-file"
	FileIcon        FileType = "icon"
	FileDirectory   FileType = "directory"
	FileBinary      FileType = "binary"
	FileAPTSource   FileType = "apt-source"
	FileAPTKeyring  FileType = "apt-keyring"
	FileInstallLog  FileType = "install-log"
	FileUnspecified FileType = "file"
)

// Record is the ledger row for one installed application.
type Record struct {
	AppID           string
	AppName         string
	Method          InstallMethod
	Version         string
	InstallDate     time.Time
	InstallLocation string
	Metadata        map[string]string
}

// InstalledFile is a path created by an installation.
type InstalledFile struct {
	AppID string
	Path  string
	Type  FileType
}

// Version sentinels that never take part in ordering.
const (
	VersionLatest  = "latest"
	VersionUnknown = "unknown"
)

// IsSentinelVersion reports whether v carries no comparable version.
func IsSentinelVersion(v string) bool {
	return v == "" || v == VersionLatest || v == VersionUnknown
}
