// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package installer implements the install, remove, reinstall and upgrade
// lifecycle once and plugs one mechanism per installation method into it.
package installer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradsec/debapps/internal/appimage"
	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/logging"
)

var (
	// ErrNoDebs is returned when a multi-package tarball holds no packages.
	ErrNoDebs = errors.New("no .deb packages found")
	// ErrUnexpectedArtifact is returned when a download is not the kind of
	// file the installation method needs.
	ErrUnexpectedArtifact = errors.New("unexpected artifact type")
	// ErrNoInstaller is returned for a method without a registered installer.
	ErrNoInstaller = errors.New("no installer registered")
)

// MissingDebsError reports a multi-package tarball without a DEBS directory
// or without packages in it.
type MissingDebsError struct {
	AppID string
	Dir   string
}

func (e *MissingDebsError) Error() string {
	if e.Dir == "" {
		return fmt.Sprintf("%s: %s: archive has no DEBS directory", ErrNoDebs, e.AppID)
	}

	return fmt.Sprintf("%s: %s: %s is empty", ErrNoDebs, e.AppID, e.Dir)
}

// Unwrap returns ErrNoDebs.
func (e *MissingDebsError) Unwrap() error { return ErrNoDebs }

// Deps are the collaborators shared by every installer.
type Deps struct {
	Resolver domain.VersionResolver
	Ledger   domain.Ledger
	Network  domain.NetworkClient
	Packages domain.PackageManager
	Runner   domain.CommandRunner
	Files    domain.FileManager
	Prompter domain.Prompter
	System   domain.SystemDetector
	AppImage *appimage.Engine
	Flatpak  domain.SandboxRuntime
	Snap     domain.SandboxRuntime
	Logger   logging.Logger

	// DownloadDir holds artifacts while they are installed.
	DownloadDir string
	// BinDir receives launcher symlinks for tarball installs.
	BinDir string
	// ApplicationsDir receives generated launchers.
	ApplicationsDir string
	// InstallRoots bound where tarballs may be unpacked and removed.
	InstallRoots []string

	DryRun bool
	Now    func() time.Time
}

func (d *Deps) defaults() {
	if d.Logger == nil {
		d.Logger = logging.NewNop()
	}

	if d.BinDir == "" {
		d.BinDir = "/usr/local/bin"
	}

	if d.ApplicationsDir == "" {
		d.ApplicationsDir = "/usr/share/applications"
	}

	if len(d.InstallRoots) == 0 {
		d.InstallRoots = []string{"/opt", "/usr/local"}
	}

	if d.Now == nil {
		d.Now = time.Now
	}
}

// Outcome is what a mechanism produced during setup.
type Outcome struct {
	Version  string
	Location string
	Files    []domain.InstalledFile
	Metadata map[string]string
}

func (o *Outcome) record(appID, path string, t domain.FileType) {
	o.Files = append(o.Files, domain.InstalledFile{AppID: appID, Path: path, Type: t})
}

// Location is what is known about an installation when removing it.
type Location struct {
	// Path is the ledger location, or the catalog default without a record.
	Path   string
	Record *domain.Record
	Files  []domain.InstalledFile
}

// meta returns a metadata value of the ledger record.
func (l Location) meta(key string) string {
	if l.Record == nil || l.Record.Metadata == nil {
		return ""
	}

	return l.Record.Metadata[key]
}

// mechanism is the part of the lifecycle that differs per method.
type mechanism interface {
	method() domain.InstallMethod
	// downloads reports whether setup needs the resolved artifact on disk.
	downloads() bool
	// present probes the same signal detection would use.
	present(ctx context.Context, app *domain.App) bool
	setup(ctx context.Context, app *domain.App, res domain.Resolution, artifact string) (*Outcome, error)
	verify(ctx context.Context, app *domain.App, out *Outcome) error
	teardown(ctx context.Context, app *domain.App, loc Location) error
}

// nativeUpgrader is implemented by mechanisms with their own update channel.
type nativeUpgrader interface {
	upgrade(ctx context.Context, app *domain.App, loc Location) (string, error)
}

// Metadata keys stored in the ledger.
const (
	metaPackage  = "package"
	metaPackages = "packages"
	metaRef      = "ref"
	metaURL      = "download_url"
	metaRepoFile = "repo_file"
)
