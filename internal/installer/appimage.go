// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package installer

import (
	"context"
	"errors"
	"fmt"

	"github.com/bradsec/debapps/internal/appimage"
	"github.com/bradsec/debapps/internal/domain"
)

type appImageMechanism struct {
	deps *Deps
}

func (m *appImageMechanism) method() domain.InstallMethod { return domain.MethodAppImage }

func (m *appImageMechanism) downloads() bool { return true }

func (m *appImageMechanism) present(_ context.Context, app *domain.App) bool {
	return m.deps.Files.FileExists(m.deps.AppImage.ExecPath(app.ID))
}

func (m *appImageMechanism) setup(ctx context.Context, app *domain.App, _ domain.Resolution, artifact string) (*Outcome, error) {
	res, err := m.deps.AppImage.Install(ctx, app, artifact)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Location: m.deps.AppImage.AppDir(app.ID),
		Files:    res.Files,
	}
	out.record(app.ID, out.Location, domain.FileDirectory)

	return out, nil
}

func (m *appImageMechanism) verify(_ context.Context, app *domain.App, _ *Outcome) error {
	if !m.deps.Files.FileExists(m.deps.AppImage.ExecPath(app.ID)) {
		return &domain.VerificationError{AppID: app.ID, Probe: "AppImage at " + m.deps.AppImage.ExecPath(app.ID)}
	}

	return nil
}

func (m *appImageMechanism) teardown(ctx context.Context, app *domain.App, loc Location) error {
	removal, err := m.deps.AppImage.Remove(ctx, app.ID)
	if errors.Is(err, appimage.ErrNoManifest) {
		m.deps.Logger.Warn("install manifest missing, removing recorded files", "app", app.ID)

		paths := make([]string, 0, len(loc.Files))
		for _, f := range loc.Files {
			paths = append(paths, f.Path)
		}

		removal, err = m.deps.AppImage.RemoveRecorded(ctx, app.ID, paths)
	}

	if err != nil {
		return fmt.Errorf("appimage removal failed: %w", err)
	}

	if len(removal.Skipped) > 0 {
		m.deps.Logger.Warn("some recorded paths were left in place", "app", app.ID, "skipped", len(removal.Skipped))
	}

	return nil
}
