// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package ubuntu implements the Debian and Ubuntu package manager adapters:
// apt and dpkg, third-party APT repositories, flatpak and snap.
package ubuntu

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/logging"
	"github.com/bradsec/debapps/internal/platform"
	"github.com/google/uuid"
)

// DistroPlaceholder in a repository line is replaced by the release codename.
const DistroPlaceholder = "<DISTRO>"

// Default system locations.
const (
	DefaultKeyringDir = "/etc/apt/keyrings"
	DefaultSourcesDir = "/etc/apt/sources.list.d"
)

const noCandidate = "(none)"

var (
	// ErrInvalidKey is returned when a downloaded signing key is neither an
	// armored nor a binary OpenPGP key.
	ErrInvalidKey = errors.New("downloaded file is not an OpenPGP key")
	// ErrMissingCodename is returned when a repository line needs the
	// release codename and none is known.
	ErrMissingCodename = errors.New("release codename unknown")
)

// APTOptions configures an APT package manager.
type APTOptions struct {
	Runner     domain.CommandRunner
	Network    domain.NetworkClient
	Files      domain.FileManager
	KeyringDir string
	SourcesDir string
	// TempDir holds keys and source lines before they are installed.
	TempDir string
	Logger  logging.Logger
}

// APT implements domain.PackageManager with apt-get, dpkg-query and apt-cache.
type APT struct {
	runner     domain.CommandRunner
	network    domain.NetworkClient
	files      domain.FileManager
	keyringDir string
	sourcesDir string
	tempDir    string
	logger     logging.Logger
}

var _ domain.PackageManager = (*APT)(nil)

// NewAPT creates an APT package manager.
func NewAPT(opts APTOptions) *APT {
	a := &APT{
		runner:     opts.Runner,
		network:    opts.Network,
		files:      opts.Files,
		keyringDir: opts.KeyringDir,
		sourcesDir: opts.SourcesDir,
		tempDir:    opts.TempDir,
		logger:     opts.Logger,
	}

	if a.keyringDir == "" {
		a.keyringDir = DefaultKeyringDir
	}

	if a.sourcesDir == "" {
		a.sourcesDir = DefaultSourcesDir
	}

	if a.tempDir == "" {
		a.tempDir = os.TempDir()
	}

	if a.logger == nil {
		a.logger = logging.NewNop()
	}

	return a
}

// aptGet runs apt-get with the proxy options and a non-interactive frontend.
func (a *APT) aptGet(ctx context.Context, args ...string) error {
	full := append([]string{"DEBIAN_FRONTEND=noninteractive", "apt-get"}, platform.ConfigureAPTProxy()...)
	full = append(full, args...)

	return a.runner.ExecuteSudo(ctx, "env", full...)
}

// Update refreshes the package index.
func (a *APT) Update(ctx context.Context) error {
	if err := a.aptGet(ctx, "update"); err != nil {
		return fmt.Errorf("failed to update package lists: %w", err)
	}

	return nil
}

// InstallPackages installs packages from configured repositories.
func (a *APT) InstallPackages(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}

	if err := a.aptGet(ctx, append([]string{"install", "-y"}, names...)...); err != nil {
		return fmt.Errorf("failed to install %s: %w", strings.Join(names, ", "), err)
	}

	return nil
}

// InstallDebs installs local .deb files in one apt-get run so their
// dependencies are resolved together.
func (a *APT) InstallDebs(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	args := []string{"install", "-y"}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", p, err)
		}

		args = append(args, abs)
	}

	if err := a.aptGet(ctx, args...); err != nil {
		return fmt.Errorf("failed to install packages: %w", err)
	}

	return nil
}

// FixBroken repairs a broken dependency graph.
func (a *APT) FixBroken(ctx context.Context) error {
	if err := a.aptGet(ctx, "--fix-broken", "install", "-y"); err != nil {
		return fmt.Errorf("failed to fix broken packages: %w", err)
	}

	return nil
}

// RemovePackages removes packages.
func (a *APT) RemovePackages(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}

	if err := a.aptGet(ctx, append([]string{"remove", "-y"}, names...)...); err != nil {
		return fmt.Errorf("failed to remove %s: %w", strings.Join(names, ", "), err)
	}

	return nil
}

// UpgradePackages upgrades only the named packages.
func (a *APT) UpgradePackages(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}

	if err := a.aptGet(ctx, append([]string{"install", "--only-upgrade", "-y"}, names...)...); err != nil {
		return fmt.Errorf("failed to upgrade %s: %w", strings.Join(names, ", "), err)
	}

	return nil
}

// IsPackageInstalled checks the dpkg database. A package dpkg does not know
// is reported as not installed, not as an error.
func (a *APT) IsPackageInstalled(ctx context.Context, name string) (bool, error) {
	output, err := a.runner.ExecuteWithOutput(ctx, "dpkg-query", "-W", "-f=${Status}", name)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		return false, nil
	}

	return strings.Contains(output, "install ok installed"), nil
}

// InstalledVersion returns the dpkg version of an installed package.
func (a *APT) InstalledVersion(ctx context.Context, name string) (string, error) {
	installed, err := a.IsPackageInstalled(ctx, name)
	if err != nil {
		return "", err
	}

	if !installed {
		return "", fmt.Errorf("%s: %w", name, domain.ErrNotInstalled)
	}

	output, err := a.runner.ExecuteWithOutput(ctx, "dpkg-query", "-W", "-f=${Version}", name)
	if err != nil {
		return "", fmt.Errorf("failed to query %s: %w", name, err)
	}

	return strings.TrimSpace(output), nil
}

// CandidateVersion returns the version apt would install, or "(none)" when
// no configured source carries the package.
func (a *APT) CandidateVersion(ctx context.Context, name string) (string, error) {
	output, err := a.runner.ExecuteWithOutput(ctx, "apt-cache", "policy", name)
	if err != nil {
		return "", fmt.Errorf("failed to query apt policy for %s: %w", name, err)
	}

	return parseCandidate(output), nil
}

func parseCandidate(policy string) string {
	for _, line := range strings.Split(policy, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "Candidate:"); ok {
			return strings.TrimSpace(v)
		}
	}

	return noCandidate
}

// KeyringPath returns where the signing key of repo is installed.
func (a *APT) KeyringPath(repo domain.APTRepository) string {
	return filepath.Join(a.keyringDir, repo.KeyName)
}

// SourcePath returns where the source line of repo is installed.
func (a *APT) SourcePath(repo domain.APTRepository) string {
	return filepath.Join(a.sourcesDir, repo.RepoFile)
}

func validateRepo(repo domain.APTRepository) error {
	for field, name := range map[string]string{"key_name": repo.KeyName, "repo_file": repo.RepoFile} {
		if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
			return &domain.ConfigError{Field: field, Err: fmt.Errorf("%w: %q is not a file name", domain.ErrInvalidApp, name)}
		}
	}

	return nil
}

// RenderRepoLine substitutes the release codename into a repository line.
func RenderRepoLine(line, codename string) (string, error) {
	if !strings.Contains(line, DistroPlaceholder) {
		return line, nil
	}

	if codename == "" {
		return "", ErrMissingCodename
	}

	return strings.ReplaceAll(line, DistroPlaceholder, codename), nil
}

// IsArmoredKey reports whether data is an ASCII-armored OpenPGP key.
func IsArmoredKey(data []byte) bool {
	return bytes.Contains(data, []byte("-----BEGIN PGP PUBLIC KEY BLOCK-----"))
}

// isBinaryKey checks the OpenPGP packet tag bit of the first byte.
func isBinaryKey(data []byte) bool {
	return len(data) > 0 && data[0]&0x80 != 0
}

// AddRepository installs the signing key of repo, dearmoring it when it is
// ASCII-armored, and writes its source line with the codename filled in.
func (a *APT) AddRepository(ctx context.Context, repo domain.APTRepository, codename string) ([]string, error) {
	if err := validateRepo(repo); err != nil {
		return nil, err
	}

	line, err := RenderRepoLine(repo.RepoLine, codename)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	keyTmp := filepath.Join(a.tempDir, "debapps-key-"+id)
	sourceTmp := filepath.Join(a.tempDir, "debapps-source-"+id)

	defer func() {
		_ = a.files.RemoveFile(keyTmp)
		_ = a.files.RemoveFile(sourceTmp)
	}()

	if err := a.network.DownloadFile(ctx, repo.KeyURL, keyTmp); err != nil {
		return nil, fmt.Errorf("failed to download signing key: %w", err)
	}

	key, err := a.files.ReadFile(keyTmp)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	keyring := a.KeyringPath(repo)

	switch {
	case IsArmoredKey(key):
		a.logger.Debug("dearmoring signing key", "key", repo.KeyURL)

		if err := a.runner.ExecuteSudo(ctx, "install", "-d", "-m", "0755", a.keyringDir); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", a.keyringDir, err)
		}

		if err := a.runner.ExecuteSudo(ctx, "gpg", "--batch", "--yes", "--dearmor", "-o", keyring, keyTmp); err != nil {
			return nil, fmt.Errorf("failed to dearmor signing key: %w", err)
		}
	case isBinaryKey(key):
		if err := a.runner.ExecuteSudo(ctx, "install", "-D", "-m", "0644", keyTmp, keyring); err != nil {
			return nil, fmt.Errorf("failed to install signing key: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, repo.KeyURL)
	}

	if err := a.files.WriteFile(sourceTmp, []byte(line+"\n")); err != nil {
		return []string{keyring}, fmt.Errorf("failed to stage source line: %w", err)
	}

	source := a.SourcePath(repo)
	if err := a.runner.ExecuteSudo(ctx, "install", "-D", "-m", "0644", sourceTmp, source); err != nil {
		return []string{keyring}, fmt.Errorf("failed to install source line: %w", err)
	}

	a.logger.Info("added apt repository", "file", source, "keyring", keyring)

	return []string{keyring, source}, nil
}

// RemoveRepository deletes the source file and keyring of repo.
func (a *APT) RemoveRepository(ctx context.Context, repo domain.APTRepository) error {
	if err := validateRepo(repo); err != nil {
		return err
	}

	if err := a.runner.ExecuteSudo(ctx, "rm", "-f", a.SourcePath(repo), a.KeyringPath(repo)); err != nil {
		return fmt.Errorf("failed to remove apt repository: %w", err)
	}

	return nil
}
