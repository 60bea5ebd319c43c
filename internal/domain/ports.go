// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import (
	"context"
	"errors"
)

// Common domain errors.
var (
	ErrNoDesktopEnvironment = errors.New("no desktop environment detected")
	ErrMockFileNotFound     = errors.New("mock file not found")
)

// Installer implements the lifecycle for one installation mechanism.
type Installer interface {
	// Method returns the mechanism this installer handles.
	Method() InstallMethod

	// Install installs the application, replacing any existing installation.
	Install(ctx context.Context, app *App) (*InstallationResult, error)

	// Remove tears down the application and forgets it in the ledger.
	Remove(ctx context.Context, app *App) (*InstallationResult, error)

	// Reinstall removes then installs.
	Reinstall(ctx context.Context, app *App) (*InstallationResult, error)

	// Upgrade moves the application to the latest version.
	Upgrade(ctx context.Context, app *App) (*InstallationResult, error)
}

// VersionResolver discovers the latest version and download location.
type VersionResolver interface {
	Resolve(ctx context.Context, app *App) (Resolution, error)
}

// Ledger records what was installed and which paths it created.
type Ledger interface {
	Upsert(ctx context.Context, rec *Record) error
	Remove(ctx context.Context, appID string) error
	Get(ctx context.Context, appID string) (*Record, error)
	IsInstalled(ctx context.Context, appID string) (bool, error)
	ListFiles(ctx context.Context, appID string) ([]InstalledFile, error)
	AddFile(ctx context.Context, appID, path string, fileType FileType) error
	UpdateVersion(ctx context.Context, appID, version string) error
	List(ctx context.Context) ([]*Record, error)
	// Commit upserts rec and records files in one transaction.
	Commit(ctx context.Context, rec *Record, files []InstalledFile) error
}

// PackageManager wraps the OS package tools (apt-get, dpkg, apt-cache).
type PackageManager interface {
	// Update refreshes the package index.
	Update(ctx context.Context) error

	// InstallPackages installs packages from configured repositories.
	InstallPackages(ctx context.Context, names ...string) error

	// InstallDebs installs local .deb files in one batch.
	InstallDebs(ctx context.Context, paths ...string) error

	// FixBroken repairs a broken dependency graph.
	FixBroken(ctx context.Context) error

	// RemovePackages removes packages.
	RemovePackages(ctx context.Context, names ...string) error

	// UpgradePackages upgrades only the named packages.
	UpgradePackages(ctx context.Context, names ...string) error

	// IsPackageInstalled checks the dpkg database.
	IsPackageInstalled(ctx context.Context, name string) (bool, error)

	// InstalledVersion returns the dpkg version of an installed package.
	InstalledVersion(ctx context.Context, name string) (string, error)

	// CandidateVersion returns the version apt would install.
	CandidateVersion(ctx context.Context, name string) (string, error)

	// AddRepository registers a signing key and a source line.
	// It returns the keyring and source file paths it created.
	AddRepository(ctx context.Context, repo APTRepository, codename string) ([]string, error)

	// RemoveRepository deletes a source file and keyring.
	RemoveRepository(ctx context.Context, repo APTRepository) error
}

// SandboxRuntime wraps a sandboxed application runtime such as flatpak or snap.
type SandboxRuntime interface {
	Name() string
	Available() bool
	Install(ctx context.Context, ref string) error
	Remove(ctx context.Context, ref string) error
	Upgrade(ctx context.Context, ref string) error
	IsInstalled(ctx context.Context, ref string) (bool, error)
	Version(ctx context.Context, ref string) (string, error)
}

// SystemDetector defines the interface for system detection operations.
type SystemDetector interface {
	// DetectSystem returns system information.
	DetectSystem(ctx context.Context) (*SystemInfo, error)

	// DetectDistribution returns the Linux distribution information.
	DetectDistribution(ctx context.Context) (*Distribution, error)

	// DetectDesktopEnvironment returns the desktop environment information.
	DetectDesktopEnvironment(ctx context.Context) (*DesktopEnvironment, error)
}

// CommandRunner defines the interface for executing system commands.
type CommandRunner interface {
	// Execute runs a command and returns the result.
	Execute(ctx context.Context, name string, args ...string) error

	// ExecuteWithOutput runs a command and returns the output.
	ExecuteWithOutput(ctx context.Context, name string, args ...string) (string, error)

	// ExecuteSudo runs a command with sudo privileges.
	ExecuteSudo(ctx context.Context, name string, args ...string) error

	// ExecuteInDir runs a command with dir as its working directory.
	ExecuteInDir(ctx context.Context, dir, name string, args ...string) error

	// CommandExists checks if a command is available on the system.
	CommandExists(name string) bool
}

// FileManager defines the interface for file operations.
type FileManager interface {
	// FileExists checks if a file exists.
	FileExists(path string) bool

	// EnsureDir creates a directory and all parent directories if they don't exist.
	EnsureDir(path string) error

	// CopyFile copies a file from source to destination.
	CopyFile(src, dest string) error

	// MoveFile renames a file, copying across filesystems when needed.
	MoveFile(src, dest string) error

	// WriteFile writes data to a file.
	WriteFile(path string, data []byte) error

	// ReadFile reads data from a file.
	ReadFile(path string) ([]byte, error)

	// Symlink creates or replaces a symbolic link.
	Symlink(target, link string) error

	// Chmod changes file permissions.
	Chmod(path string, mode uint32) error

	// RemoveFile removes a file.
	RemoveFile(path string) error

	// RemoveAll removes a directory tree.
	RemoveAll(path string) error
}

// NetworkClient defines the interface for network operations.
type NetworkClient interface {
	// DownloadFile downloads a file from a URL to a destination path.
	DownloadFile(ctx context.Context, url, destPath string) error

	// Fetch returns the body of a small document such as an API response or HTML page.
	Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error)

	// FinalURL follows redirects and returns the last location.
	FinalURL(ctx context.Context, url string) (string, error)
}

// Prompter asks the user to confirm an action.
type Prompter interface {
	Confirm(title, description string) (bool, error)
}
