// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bradsec/debapps/internal/archive"
	"github.com/bradsec/debapps/internal/domain"
	"github.com/google/uuid"
)

// debControl reads the Package and Version fields of a .deb file.
func debControl(ctx context.Context, runner domain.CommandRunner, path string) (name, version string, err error) {
	out, err := runner.ExecuteWithOutput(ctx, "dpkg-deb", "--field", path, "Package", "Version")
	if err != nil {
		return "", "", fmt.Errorf("failed to read package metadata of %s: %w", filepath.Base(path), err)
	}

	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		switch strings.TrimSpace(key) {
		case "Package":
			name = strings.TrimSpace(value)
		case "Version":
			version = strings.TrimSpace(value)
		}
	}

	if name == "" {
		return "", "", fmt.Errorf("%w: %s has no Package field", ErrUnexpectedArtifact, filepath.Base(path))
	}

	return name, version, nil
}

// installDebs installs packages in one batch and always runs the broken
// dependency fixer afterwards, since a partial failure does not always
// yield a non-zero status. Verification decides the outcome.
func installDebs(ctx context.Context, deps *Deps, appID string, paths ...string) {
	if err := deps.Packages.InstallDebs(ctx, paths...); err != nil {
		deps.Logger.Warn("package install reported failure", "app", appID, "err", err)
	}

	if err := deps.Packages.FixBroken(ctx); err != nil {
		deps.Logger.Warn("fixing broken dependencies failed", "app", appID, "err", err)
	}
}

// installedPackages returns which of names dpkg reports as installed.
func installedPackages(ctx context.Context, pm domain.PackageManager, names []string) []string {
	var found []string

	for _, n := range names {
		if ok, err := pm.IsPackageInstalled(ctx, n); err == nil && ok {
			found = append(found, n)
		}
	}

	return found
}

// debMechanism installs a single downloaded .deb.
type debMechanism struct {
	deps *Deps
}

func (m *debMechanism) method() domain.InstallMethod { return domain.MethodDEB }

func (m *debMechanism) downloads() bool { return true }

func (m *debMechanism) present(ctx context.Context, app *domain.App) bool {
	return len(installedPackages(ctx, m.deps.Packages, app.Detection.APTPackages)) > 0
}

func (m *debMechanism) setup(ctx context.Context, app *domain.App, _ domain.Resolution, artifact string) (*Outcome, error) {
	kind, err := archive.Classify(artifact)
	if err != nil {
		return nil, err
	}

	if kind != archive.KindDeb {
		return nil, fmt.Errorf("%w: %s downloaded a %s file, expected deb", ErrUnexpectedArtifact, app.ID, kind)
	}

	name, version, err := debControl(ctx, m.deps.Runner, artifact)
	if err != nil {
		return nil, err
	}

	installDebs(ctx, m.deps, app.ID, artifact)

	return &Outcome{
		Version:  version,
		Location: name,
		Metadata: map[string]string{metaPackage: name},
	}, nil
}

func (m *debMechanism) verify(ctx context.Context, app *domain.App, out *Outcome) error {
	pkg := out.Metadata[metaPackage]
	if len(installedPackages(ctx, m.deps.Packages, []string{pkg})) == 0 {
		return &domain.VerificationError{AppID: app.ID, Probe: "dpkg (" + pkg + ")"}
	}

	return nil
}

func (m *debMechanism) teardown(ctx context.Context, app *domain.App, loc Location) error {
	pkgs := app.Detection.APTPackages
	if pkg := loc.meta(metaPackage); pkg != "" {
		pkgs = []string{pkg}
	}

	return removePackages(ctx, m.deps, app, pkgs)
}

func removePackages(ctx context.Context, deps *Deps, app *domain.App, pkgs []string) error {
	installed := installedPackages(ctx, deps.Packages, pkgs)
	if len(installed) == 0 {
		deps.Logger.Info("no packages left to remove", "app", app.ID)
		return nil
	}

	return deps.Packages.RemovePackages(ctx, installed...)
}

// debTarballMechanism installs every package of a tarball's DEBS directory.
type debTarballMechanism struct {
	deps *Deps
}

func (m *debTarballMechanism) method() domain.InstallMethod { return domain.MethodDEBTarball }

func (m *debTarballMechanism) downloads() bool { return true }

func (m *debTarballMechanism) present(ctx context.Context, app *domain.App) bool {
	return len(installedPackages(ctx, m.deps.Packages, app.Detection.APTPackages)) > 0
}

func (m *debTarballMechanism) setup(ctx context.Context, app *domain.App, _ domain.Resolution, artifact string) (*Outcome, error) {
	staging := filepath.Join(m.deps.DownloadDir, app.ID+"-"+uuid.NewString())

	defer func() {
		if err := m.deps.Files.RemoveAll(staging); err != nil {
			m.deps.Logger.Warn("failed to delete extracted packages", "path", staging, "err", err)
		}
	}()

	if err := archive.Extract(ctx, artifact, staging); err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", app.ID, err)
	}

	debsDir, ok := archive.FindDir(staging, "DEBS")
	if !ok {
		return nil, &MissingDebsError{AppID: app.ID}
	}

	debs, err := archive.Glob(debsDir, ".deb")
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}

	if len(debs) == 0 {
		return nil, &MissingDebsError{AppID: app.ID, Dir: debsDir}
	}

	names := make([]string, 0, len(debs))

	for _, deb := range debs {
		name, _, err := debControl(ctx, m.deps.Runner, deb)
		if err != nil {
			return nil, err
		}

		names = append(names, name)
	}

	m.deps.Logger.Info("installing packages", "app", app.ID, "count", len(debs))
	installDebs(ctx, m.deps, app.ID, debs...)

	return &Outcome{Metadata: map[string]string{metaPackages: strings.Join(names, ",")}}, nil
}

// verify requires the detection packages when the catalog names them and
// every extracted package otherwise.
func (m *debTarballMechanism) verify(ctx context.Context, app *domain.App, out *Outcome) error {
	want := app.Detection.APTPackages
	if len(want) == 0 {
		want = strings.Split(out.Metadata[metaPackages], ",")
	}

	if got := installedPackages(ctx, m.deps.Packages, want); len(got) != len(want) {
		return &domain.VerificationError{AppID: app.ID, Probe: "dpkg (" + strings.Join(want, ", ") + ")"}
	}

	out.Location = want[0]

	return nil
}

func (m *debTarballMechanism) teardown(ctx context.Context, app *domain.App, loc Location) error {
	pkgs := app.Detection.APTPackages
	if recorded := loc.meta(metaPackages); recorded != "" {
		pkgs = strings.Split(recorded, ",")
	}

	return removePackages(ctx, m.deps, app, pkgs)
}
