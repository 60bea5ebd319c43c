// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package resolver

import (
	"context"
	"strings"

	"github.com/bradsec/debapps/internal/domain"
)

// PackageIndexStrategy resolves apt_repository and apt_package sources from
// the local package index. Sandboxed installs carry no version and resolve
// to a runtime sentinel.
type PackageIndexStrategy struct {
	PackageManager domain.PackageManager
}

// Resolve implements Strategy.
func (p *PackageIndexStrategy) Resolve(ctx context.Context, app *domain.App) (domain.Resolution, error) {
	name := domain.PackageName(app.Source)
	if name == "" {
		return domain.Resolution{}, sourceMismatch(app, domain.SourceAPTPackage)
	}

	switch app.Method {
	case domain.MethodFlatpak:
		return domain.Resolution{Version: domain.VersionLatest, DownloadURL: domain.FlatpakURLScheme + name}, nil
	case domain.MethodSnap:
		return domain.Resolution{Version: domain.VersionLatest, DownloadURL: domain.SnapURLScheme + name}, nil
	}

	if p.PackageManager == nil {
		return domain.Resolution{}, &domain.ResolutionError{
			AppID: app.ID, Source: app.Source.Type(), Reason: "no package manager available",
		}
	}

	candidate, err := p.PackageManager.CandidateVersion(ctx, name)
	if err != nil {
		return domain.Resolution{}, &domain.ResolutionError{
			AppID: app.ID, Source: app.Source.Type(), Reason: "apt-cache policy failed", Err: err,
		}
	}

	candidate = strings.TrimSpace(candidate)
	if candidate == "" || candidate == "(none)" {
		// the repository has not been added yet
		return domain.Resolution{Version: domain.VersionLatest, DownloadURL: domain.APTURLScheme + name}, nil
	}

	return domain.Resolution{Version: candidate, DownloadURL: domain.APTURLScheme + name}, nil
}
