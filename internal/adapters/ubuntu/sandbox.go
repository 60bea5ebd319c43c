// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package ubuntu

import (
	"context"
	"fmt"
	"strings"

	"github.com/bradsec/debapps/internal/domain"
)

const (
	flathubRemote = "flathub"
	flathubRepo   = "https://dl.flathub.org/repo/flathub.flatpakrepo"
)

// Flatpak implements domain.SandboxRuntime with system-wide installs from
// Flathub.
type Flatpak struct {
	runner domain.CommandRunner
}

var _ domain.SandboxRuntime = (*Flatpak)(nil)

// NewFlatpak creates the flatpak runtime.
func NewFlatpak(runner domain.CommandRunner) *Flatpak {
	return &Flatpak{runner: runner}
}

// Name returns "flatpak".
func (f *Flatpak) Name() string { return "flatpak" }

// Available reports whether the flatpak binary is installed.
func (f *Flatpak) Available() bool { return f.runner.CommandExists("flatpak") }

// Install adds the Flathub remote when missing and installs ref.
func (f *Flatpak) Install(ctx context.Context, ref string) error {
	if err := f.runner.ExecuteSudo(ctx, "flatpak", "remote-add", "--system", "--if-not-exists", flathubRemote, flathubRepo); err != nil {
		return fmt.Errorf("failed to add Flathub remote: %w", err)
	}

	return f.runner.ExecuteSudo(ctx, "flatpak", "install", "--system", "-y", "--noninteractive", flathubRemote, ref)
}

// Remove uninstalls ref.
func (f *Flatpak) Remove(ctx context.Context, ref string) error {
	return f.runner.ExecuteSudo(ctx, "flatpak", "uninstall", "--system", "-y", "--noninteractive", ref)
}

// Upgrade updates ref through flatpak's own channel.
func (f *Flatpak) Upgrade(ctx context.Context, ref string) error {
	return f.runner.ExecuteSudo(ctx, "flatpak", "update", "--system", "-y", "--noninteractive", ref)
}

// list maps installed application ids to versions.
func (f *Flatpak) list(ctx context.Context) (map[string]string, error) {
	if !f.Available() {
		return map[string]string{}, nil
	}

	output, err := f.runner.ExecuteWithOutput(ctx, "flatpak", "list", "--app", "--columns=application,version")
	if err != nil {
		return nil, fmt.Errorf("failed to list flatpaks: %w", err)
	}

	apps := make(map[string]string)

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		version := ""
		if len(fields) > 1 {
			version = fields[1]
		}

		apps[fields[0]] = version
	}

	return apps, nil
}

// IsInstalled reports whether ref is in the installed application list.
func (f *Flatpak) IsInstalled(ctx context.Context, ref string) (bool, error) {
	apps, err := f.list(ctx)
	if err != nil {
		return false, err
	}

	_, ok := apps[ref]

	return ok, nil
}

// Version returns the installed version of ref, or "unknown" when the
// application does not publish one.
func (f *Flatpak) Version(ctx context.Context, ref string) (string, error) {
	apps, err := f.list(ctx)
	if err != nil {
		return "", err
	}

	v, ok := apps[ref]
	if !ok {
		return "", fmt.Errorf("%s: %w", ref, domain.ErrNotInstalled)
	}

	if v == "" {
		return domain.VersionUnknown, nil
	}

	return v, nil
}

// Snap implements domain.SandboxRuntime with snapd.
type Snap struct {
	runner domain.CommandRunner
}

var _ domain.SandboxRuntime = (*Snap)(nil)

// NewSnap creates the snap runtime.
func NewSnap(runner domain.CommandRunner) *Snap {
	return &Snap{runner: runner}
}

// Name returns "snap".
func (s *Snap) Name() string { return "snap" }

// Available reports whether the snap binary is installed.
func (s *Snap) Available() bool { return s.runner.CommandExists("snap") }

// Install installs ref. Extra words after the name are passed as options,
// so "code --classic" installs with classic confinement.
func (s *Snap) Install(ctx context.Context, ref string) error {
	parts := strings.Fields(ref)
	if len(parts) == 0 {
		return fmt.Errorf("%w: empty snap name", domain.ErrInvalidApp)
	}

	args := append([]string{"install"}, parts[1:]...)
	args = append(args, parts[0])

	return s.runner.ExecuteSudo(ctx, "snap", args...)
}

// Remove removes ref.
func (s *Snap) Remove(ctx context.Context, ref string) error {
	return s.runner.ExecuteSudo(ctx, "snap", "remove", snapName(ref))
}

// Upgrade refreshes ref.
func (s *Snap) Upgrade(ctx context.Context, ref string) error {
	return s.runner.ExecuteSudo(ctx, "snap", "refresh", snapName(ref))
}

// IsInstalled asks snapd about ref.
func (s *Snap) IsInstalled(ctx context.Context, ref string) (bool, error) {
	if !s.Available() {
		return false, nil
	}

	_, err := s.runner.ExecuteWithOutput(ctx, "snap", "list", snapName(ref))
	if err != nil && ctx.Err() != nil {
		return false, ctx.Err()
	}

	return err == nil, nil
}

// Version returns the installed revision's version string.
func (s *Snap) Version(ctx context.Context, ref string) (string, error) {
	name := snapName(ref)

	output, err := s.runner.ExecuteWithOutput(ctx, "snap", "list", name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, domain.ErrNotInstalled)
	}

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 1 && fields[0] == name {
			return fields[1], nil
		}
	}

	return domain.VersionUnknown, nil
}

func snapName(ref string) string {
	if fields := strings.Fields(ref); len(fields) > 0 {
		return fields[0]
	}

	return ref
}
