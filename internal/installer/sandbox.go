// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package installer

import (
	"context"
	"fmt"
	"strings"

	"github.com/bradsec/debapps/internal/domain"
)

// sandboxMechanism installs through flatpak or snap.
type sandboxMechanism struct {
	deps    *Deps
	kind    domain.InstallMethod
	runtime domain.SandboxRuntime
	scheme  string
}

func (m *sandboxMechanism) method() domain.InstallMethod { return m.kind }

func (m *sandboxMechanism) downloads() bool { return false }

// ref prefers the ledger, then the resolved sentinel URL, then the catalog.
func (m *sandboxMechanism) ref(app *domain.App, res *domain.Resolution, loc *Location) string {
	if loc != nil {
		if r := loc.meta(metaRef); r != "" {
			return r
		}
	}

	if res != nil && strings.HasPrefix(res.DownloadURL, m.scheme) {
		return strings.TrimPrefix(res.DownloadURL, m.scheme)
	}

	return domain.PackageName(app.Source)
}

func (m *sandboxMechanism) available() error {
	if m.runtime == nil || !m.runtime.Available() {
		return fmt.Errorf("%w: %s is not installed", domain.ErrDependencyMissing, m.kind)
	}

	return nil
}

func (m *sandboxMechanism) present(ctx context.Context, app *domain.App) bool {
	ref := m.ref(app, nil, nil)
	if ref == "" || m.available() != nil {
		return false
	}

	ok, err := m.runtime.IsInstalled(ctx, ref)

	return err == nil && ok
}

func (m *sandboxMechanism) setup(ctx context.Context, app *domain.App, res domain.Resolution, _ string) (*Outcome, error) {
	if err := m.available(); err != nil {
		return nil, err
	}

	ref := m.ref(app, &res, nil)
	if ref == "" {
		return nil, &domain.ConfigError{AppID: app.ID, Field: "source.package_name", Err: domain.ErrInvalidApp}
	}

	if err := m.runtime.Install(ctx, ref); err != nil {
		return nil, err
	}

	out := &Outcome{Location: ref, Metadata: map[string]string{metaRef: ref}}

	if v, err := m.runtime.Version(ctx, ref); err == nil {
		out.Version = v
	}

	return out, nil
}

func (m *sandboxMechanism) verify(ctx context.Context, app *domain.App, out *Outcome) error {
	ref := out.Metadata[metaRef]

	ok, err := m.runtime.IsInstalled(ctx, ref)
	if err != nil || !ok {
		return &domain.VerificationError{AppID: app.ID, Probe: m.runtime.Name() + " (" + ref + ")"}
	}

	return nil
}

func (m *sandboxMechanism) teardown(ctx context.Context, app *domain.App, loc Location) error {
	if err := m.available(); err != nil {
		return err
	}

	ref := m.ref(app, nil, &loc)

	installed, err := m.runtime.IsInstalled(ctx, ref)
	if err == nil && !installed {
		m.deps.Logger.Info("nothing to remove", "app", app.ID, "ref", ref)
		return nil
	}

	return m.runtime.Remove(ctx, ref)
}

func (m *sandboxMechanism) upgrade(ctx context.Context, app *domain.App, loc Location) (string, error) {
	if err := m.available(); err != nil {
		return "", err
	}

	ref := m.ref(app, nil, &loc)

	if err := m.runtime.Upgrade(ctx, ref); err != nil {
		return "", err
	}

	v, err := m.runtime.Version(ctx, ref)
	if err != nil {
		return domain.VersionUnknown, nil //nolint:nilerr
	}

	return v, nil
}
