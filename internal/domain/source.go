// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

// SourceType identifies how the latest version and download URL of an
// application are discovered.
type SourceType string

// Source strategies.
const (
	SourceGitHubRelease         SourceType = "github_release"
	SourceDirectDownload        SourceType = "direct_download"
	SourceAPTRepository         SourceType = "apt_repository"
	SourceAPTPackage            SourceType = "apt_package"
	SourceBurpInstaller         SourceType = "burp_installer"
	SourceTorBrowserLatest      SourceType = "tor_browser_latest"
	SourceLibreOfficeDebTarball SourceType = "libreoffice_deb_tarball"
	SourceCursorLatest          SourceType = "cursor_latest"
	SourceSlackLatest           SourceType = "slack_latest"
)

// Source is a sealed union over the source variants below.
type Source interface {
	Type() SourceType
	isSource()
}

// GitHubRelease resolves against the GitHub releases API.
// AssetPattern may contain {version}; a pattern without a scheme is relative
// to https://github.com/<repo>/releases/download/.
type GitHubRelease struct {
	Repo          string
	AssetPattern  string
	VersionPrefix string
}

// DirectDownload is an unversioned, fixed URL.
type DirectDownload struct {
	URL string
}

// APTRepository is a third-party signed APT repository.
type APTRepository struct {
	KeyURL      string
	KeyName     string
	RepoLine    string
	RepoFile    string
	PackageName string
}

// APTPackage is a package from the already configured APT sources.
type APTPackage struct {
	PackageName string
}

// BurpInstaller scrapes the PortSwigger release feed.
type BurpInstaller struct {
	Edition string
}

// TorBrowserLatest scrapes the Tor Project download page.
type TorBrowserLatest struct{}

// LibreOfficeDebTarball scrapes a LibreOffice mirror index.
type LibreOfficeDebTarball struct {
	BaseURL string
}

// CursorLatest follows the Cursor download redirect.
type CursorLatest struct {
	URL string
}

// SlackLatest scrapes the Slack Linux release notes.
type SlackLatest struct{}

func (GitHubRelease) Type() SourceType         { return SourceGitHubRelease }
func (DirectDownload) Type() SourceType        { return SourceDirectDownload }
func (APTRepository) Type() SourceType         { return SourceAPTRepository }
func (APTPackage) Type() SourceType            { return SourceAPTPackage }
func (BurpInstaller) Type() SourceType         { return SourceBurpInstaller }
func (TorBrowserLatest) Type() SourceType      { return SourceTorBrowserLatest }
func (LibreOfficeDebTarball) Type() SourceType { return SourceLibreOfficeDebTarball }
func (CursorLatest) Type() SourceType          { return SourceCursorLatest }
func (SlackLatest) Type() SourceType           { return SourceSlackLatest }

func (GitHubRelease) isSource()         {}
func (DirectDownload) isSource()        {}
func (APTRepository) isSource()         {}
func (APTPackage) isSource()            {}
func (BurpInstaller) isSource()         {}
func (TorBrowserLatest) isSource()      {}
func (LibreOfficeDebTarball) isSource() {}
func (CursorLatest) isSource()          {}
func (SlackLatest) isSource()           {}

// PackageName returns the APT package name carried by a source, if any.
func PackageName(src Source) string {
	switch s := src.(type) {
	case APTRepository:
		return s.PackageName
	case APTPackage:
		return s.PackageName
	}

	return ""
}
