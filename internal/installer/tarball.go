// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package installer

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bradsec/debapps/internal/archive"
	"github.com/bradsec/debapps/internal/desktop"
	"github.com/bradsec/debapps/internal/domain"
	"github.com/google/uuid"
)

// tarballMechanism unpacks a single archive into the install location. A
// downloaded Java archive is installed as is, behind a launcher script.
type tarballMechanism struct {
	deps *Deps
}

func (m *tarballMechanism) method() domain.InstallMethod { return domain.MethodTarball }

func (m *tarballMechanism) downloads() bool { return true }

// safeLocation accepts clean absolute paths strictly inside an install root.
func (m *tarballMechanism) safeLocation(path string) bool {
	if !filepath.IsAbs(path) || strings.Contains(path, "..") {
		return false
	}

	clean := filepath.Clean(path)

	for _, root := range m.deps.InstallRoots {
		root = filepath.Clean(root)
		if clean != root && strings.HasPrefix(clean, root+string(filepath.Separator)) {
			return true
		}
	}

	return false
}

func (m *tarballMechanism) execPath(app *domain.App, location string, jar bool) string {
	switch {
	case jar:
		return filepath.Join(location, app.ID)
	case app.Executable != "":
		return filepath.Join(location, app.Executable)
	}

	return ""
}

func (m *tarballMechanism) linkPath(app *domain.App, exec string) string {
	if exec == "" {
		return ""
	}

	name := filepath.Base(exec)
	if app.Executable == "" {
		name = app.ID
	}

	return filepath.Join(m.deps.BinDir, name)
}

func (m *tarballMechanism) desktopPath(app *domain.App) string {
	return filepath.Join(m.deps.ApplicationsDir, app.ID+".desktop")
}

func (m *tarballMechanism) present(_ context.Context, app *domain.App) bool {
	if app.InstallLocation == "" {
		return false
	}

	if exec := m.execPath(app, app.InstallLocation, false); exec != "" {
		return m.deps.Files.FileExists(exec)
	}

	return m.deps.Files.FileExists(app.InstallLocation)
}

func (m *tarballMechanism) setup(ctx context.Context, app *domain.App, _ domain.Resolution, artifact string) (*Outcome, error) {
	location := app.InstallLocation
	if !m.safeLocation(location) {
		return nil, &domain.ConfigError{AppID: app.ID, Field: "install_location",
			Err: fmt.Errorf("%q is not inside %s", location, strings.Join(m.deps.InstallRoots, ", "))}
	}

	kind, err := archive.Classify(artifact)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Location: location}
	out.record(app.ID, location, domain.FileDirectory)

	var exec string

	switch kind {
	case archive.KindJar:
		exec, err = m.installJar(app, artifact, location, out)
	case archive.KindArchive:
		exec, err = m.unpack(ctx, app, artifact, location)
	default:
		err = fmt.Errorf("%w: %s downloaded a %s file, expected an archive", ErrUnexpectedArtifact, app.ID, kind)
	}

	if err != nil {
		return nil, err
	}

	if link := m.linkPath(app, exec); link != "" {
		if err := m.deps.Files.EnsureDir(m.deps.BinDir); err != nil {
			return out, fmt.Errorf("failed to create %s: %w", m.deps.BinDir, err)
		}

		if err := m.deps.Files.Symlink(exec, link); err != nil {
			return out, fmt.Errorf("failed to link %s: %w", link, err)
		}

		out.record(app.ID, link, domain.FileSymlink)
	}

	if app.GUI && exec != "" {
		if err := m.writeLauncher(ctx, app, exec, location, out); err != nil {
			return out, err
		}
	}

	return out, nil
}

func (m *tarballMechanism) installJar(app *domain.App, artifact, location string, out *Outcome) (string, error) {
	if err := m.deps.Files.EnsureDir(location); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", location, err)
	}

	jar := filepath.Join(location, app.ID+".jar")
	if err := m.deps.Files.CopyFile(artifact, jar); err != nil {
		return "", fmt.Errorf("failed to place %s: %w", jar, err)
	}

	wrapper := m.execPath(app, location, true)
	script := fmt.Sprintf("#!/bin/sh\nexec java -jar %q \"$@\"\n", jar)

	if err := m.deps.Files.WriteFile(wrapper, []byte(script)); err != nil {
		return "", fmt.Errorf("failed to write launcher script: %w", err)
	}

	if err := m.deps.Files.Chmod(wrapper, 0o755); err != nil {
		return "", fmt.Errorf("failed to make launcher executable: %w", err)
	}

	out.record(app.ID, jar, domain.FileBinary)
	out.record(app.ID, wrapper, domain.FileBinary)

	return wrapper, nil
}

// unpack extracts next to location so the final move is a rename on the
// same filesystem.
func (m *tarballMechanism) unpack(ctx context.Context, app *domain.App, artifact, location string) (string, error) {
	staging := location + ".new-" + uuid.NewString()[:8]

	defer func() {
		if err := m.deps.Files.RemoveAll(staging); err != nil {
			m.deps.Logger.Warn("failed to delete staging directory", "path", staging, "err", err)
		}
	}()

	if err := archive.Extract(ctx, artifact, staging); err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", app.ID, err)
	}

	root, err := archive.SingleRoot(staging)
	if err != nil {
		return "", err
	}

	if m.deps.Files.FileExists(location) {
		if err := m.deps.Files.RemoveAll(location); err != nil {
			return "", fmt.Errorf("failed to clear %s: %w", location, err)
		}
	}

	if err := m.deps.Files.MoveFile(root, location); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", app.ID, err)
	}

	return m.execPath(app, location, false), nil
}

func (m *tarballMechanism) writeLauncher(ctx context.Context, app *domain.App, exec, location string, out *Outcome) error {
	entry := desktop.DesktopApp{
		Name:          app.Name,
		Comment:       app.Description,
		Exec:          exec,
		Icon:          findIcon(location),
		StartupNotify: true,
	}

	path := m.desktopPath(app)
	if err := m.deps.Files.EnsureDir(m.deps.ApplicationsDir); err != nil {
		return fmt.Errorf("failed to create %s: %w", m.deps.ApplicationsDir, err)
	}

	if err := m.deps.Files.WriteFile(path, entry.Render()); err != nil {
		return fmt.Errorf("failed to write launcher: %w", err)
	}

	out.record(app.ID, path, domain.FileDesktop)
	m.refreshDesktopDatabase(ctx)

	return nil
}

func (m *tarballMechanism) refreshDesktopDatabase(ctx context.Context) {
	if m.deps.Runner == nil || !m.deps.Runner.CommandExists("update-desktop-database") {
		return
	}

	if err := m.deps.Runner.Execute(ctx, "update-desktop-database", m.deps.ApplicationsDir); err != nil {
		m.deps.Logger.Debug("desktop database refresh failed", "err", err)
	}
}

// findIcon picks the largest png or svg whose name suggests an icon.
func findIcon(root string) string {
	var (
		best     string
		bestSize int64
	)

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil //nolint:nilerr
		}

		name := strings.ToLower(d.Name())
		ext := filepath.Ext(name)

		if (ext != ".png" && ext != ".svg") || !(strings.Contains(name, "icon") || strings.HasPrefix(name, "default")) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr
		}

		if info.Size() > bestSize {
			best, bestSize = path, info.Size()
		}

		return nil
	})

	return best
}

func (m *tarballMechanism) verify(_ context.Context, app *domain.App, out *Outcome) error {
	probe := m.execPath(app, out.Location, false)
	if probe == "" {
		probe = out.Location

		for _, f := range out.Files {
			if f.Type == domain.FileBinary {
				probe = f.Path
			}
		}
	}

	if !m.deps.Files.FileExists(probe) {
		return &domain.VerificationError{AppID: app.ID, Probe: "file " + probe}
	}

	return nil
}

func (m *tarballMechanism) teardown(ctx context.Context, app *domain.App, loc Location) error {
	if !m.safeLocation(loc.Path) {
		return &domain.RemovalSafetyError{Path: loc.Path, Reason: "install location is outside " + strings.Join(m.deps.InstallRoots, ", ")}
	}

	extras := []string{m.desktopPath(app)}
	if loc.Record == nil {
		jar := m.deps.Files.FileExists(filepath.Join(loc.Path, app.ID+".jar"))
		if link := m.linkPath(app, m.execPath(app, loc.Path, jar)); link != "" {
			extras = append(extras, link)
		}
	}

	for _, f := range loc.Files {
		if f.Type == domain.FileSymlink || f.Type == domain.FileDesktop {
			extras = append(extras, f.Path)
		}
	}

	for _, p := range extras {
		if !isInside(m.deps.BinDir, p) && !isInside(m.deps.ApplicationsDir, p) {
			m.deps.Logger.Warn("skipping recorded path outside allowed locations", "app", app.ID, "path", p)
			continue
		}

		if err := m.deps.Files.RemoveFile(p); err != nil {
			m.deps.Logger.Warn("failed to remove", "path", p, "err", err)
		}
	}

	if err := m.deps.Files.RemoveAll(loc.Path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", loc.Path, err)
	}

	if app.GUI {
		m.refreshDesktopDatabase(ctx)
	}

	return nil
}

func isInside(root, path string) bool {
	if strings.Contains(path, "..") {
		return false
	}

	return strings.HasPrefix(filepath.Clean(path), filepath.Clean(root)+string(filepath.Separator))
}
