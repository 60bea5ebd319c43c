// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package installer

import (
	"context"
	"fmt"

	"github.com/bradsec/debapps/internal/domain"
)

// aptRepoMechanism installs from a third-party repository or from the
// sources already configured.
type aptRepoMechanism struct {
	deps *Deps
}

func (m *aptRepoMechanism) method() domain.InstallMethod { return domain.MethodAPTRepo }

func (m *aptRepoMechanism) downloads() bool { return false }

func (m *aptRepoMechanism) packageName(app *domain.App, loc *Location) string {
	if loc != nil {
		if pkg := loc.meta(metaPackage); pkg != "" {
			return pkg
		}
	}

	return domain.PackageName(app.Source)
}

func (m *aptRepoMechanism) present(ctx context.Context, app *domain.App) bool {
	pkg := m.packageName(app, nil)
	if pkg == "" {
		return false
	}

	ok, err := m.deps.Packages.IsPackageInstalled(ctx, pkg)

	return err == nil && ok
}

func (m *aptRepoMechanism) codename(ctx context.Context) (string, error) {
	if m.deps.System == nil {
		return "", nil
	}

	dist, err := m.deps.System.DetectDistribution(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to detect distribution: %w", err)
	}

	return dist.Codename, nil
}

func (m *aptRepoMechanism) setup(ctx context.Context, app *domain.App, _ domain.Resolution, _ string) (*Outcome, error) {
	pkg := m.packageName(app, nil)
	if pkg == "" {
		return nil, &domain.ConfigError{AppID: app.ID, Field: "source.package_name", Err: domain.ErrInvalidApp}
	}

	out := &Outcome{Location: pkg, Metadata: map[string]string{metaPackage: pkg}}

	if repo, ok := app.Source.(domain.APTRepository); ok {
		codename, err := m.codename(ctx)
		if err != nil {
			return nil, err
		}

		paths, err := m.deps.Packages.AddRepository(ctx, repo, codename)
		if err != nil {
			return nil, fmt.Errorf("failed to add repository for %s: %w", app.ID, err)
		}

		for i, p := range paths {
			t := domain.FileAPTSource
			if i == 0 {
				t = domain.FileAPTKeyring
			}

			out.record(app.ID, p, t)
		}

		out.Metadata[metaRepoFile] = repo.RepoFile
	}

	if err := m.deps.Packages.Update(ctx); err != nil {
		return nil, err
	}

	if err := m.deps.Packages.InstallPackages(ctx, pkg); err != nil {
		return nil, err
	}

	if v, err := m.deps.Packages.InstalledVersion(ctx, pkg); err == nil {
		out.Version = v
	}

	return out, nil
}

func (m *aptRepoMechanism) verify(ctx context.Context, app *domain.App, out *Outcome) error {
	pkg := out.Metadata[metaPackage]

	ok, err := m.deps.Packages.IsPackageInstalled(ctx, pkg)
	if err != nil || !ok {
		return &domain.VerificationError{AppID: app.ID, Probe: "dpkg (" + pkg + ")"}
	}

	return nil
}

func (m *aptRepoMechanism) teardown(ctx context.Context, app *domain.App, loc Location) error {
	pkg := m.packageName(app, &loc)

	var firstErr error

	if err := m.deps.Packages.RemovePackages(ctx, pkg); err != nil {
		firstErr = err
	}

	repo, ok := app.Source.(domain.APTRepository)
	if !ok {
		return firstErr
	}

	if err := m.deps.Packages.RemoveRepository(ctx, repo); err != nil && firstErr == nil {
		firstErr = err
	}

	// drop the removed repository from the index
	if err := m.deps.Packages.Update(ctx); err != nil {
		m.deps.Logger.Warn("package index refresh failed", "app", app.ID, "err", err)
	}

	return firstErr
}

func (m *aptRepoMechanism) upgrade(ctx context.Context, app *domain.App, loc Location) (string, error) {
	pkg := m.packageName(app, &loc)

	if err := m.deps.Packages.Update(ctx); err != nil {
		return "", err
	}

	if err := m.deps.Packages.UpgradePackages(ctx, pkg); err != nil {
		return "", err
	}

	v, err := m.deps.Packages.InstalledVersion(ctx, pkg)
	if err != nil {
		return "", fmt.Errorf("failed to read upgraded version: %w", err)
	}

	return v, nil
}
