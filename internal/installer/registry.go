// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package installer

import (
	"fmt"

	"github.com/bradsec/debapps/internal/domain"
)

// Registry maps every installation method to its installer. It is built
// once and never changes.
type Registry struct {
	installers map[domain.InstallMethod]domain.Installer
}

// NewRegistry builds an installer for every method. A method left without
// one is an error.
func NewRegistry(deps Deps) (*Registry, error) {
	deps.defaults()
	d := &deps

	mechanisms := []mechanism{
		&appImageMechanism{deps: d},
		&aptRepoMechanism{deps: d},
		&debMechanism{deps: d},
		&tarballMechanism{deps: d},
		&debTarballMechanism{deps: d},
		&sandboxMechanism{deps: d, kind: domain.MethodFlatpak, runtime: d.Flatpak, scheme: domain.FlatpakURLScheme},
		&sandboxMechanism{deps: d, kind: domain.MethodSnap, runtime: d.Snap, scheme: domain.SnapURLScheme},
	}

	r := &Registry{installers: make(map[domain.InstallMethod]domain.Installer, len(mechanisms))}
	for _, m := range mechanisms {
		r.installers[m.method()] = newLifecycle(d, m)
	}

	for _, method := range domain.AllMethods() {
		if _, ok := r.installers[method]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoInstaller, method)
		}
	}

	if d.AppImage == nil {
		return nil, fmt.Errorf("%w: %s needs an integration engine", ErrNoInstaller, domain.MethodAppImage)
	}

	return r, nil
}

// For returns the installer of method.
func (r *Registry) For(method domain.InstallMethod) (domain.Installer, error) {
	inst, ok := r.installers[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoInstaller, method)
	}

	return inst, nil
}

// ForApp returns the installer of app's method.
func (r *Registry) ForApp(app *domain.App) (domain.Installer, error) {
	return r.For(app.Method)
}

// NewStaticRegistry wraps ready-made installers keyed by their Method.
func NewStaticRegistry(installers ...domain.Installer) *Registry {
	r := &Registry{installers: make(map[domain.InstallMethod]domain.Installer, len(installers))}
	for _, inst := range installers {
		r.installers[inst.Method()] = inst
	}

	return r
}
