// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package application

import (
	"context"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/logging"
)

// InstallService installs and reinstalls catalog applications.
type InstallService struct {
	batch batch
}

// NewInstallService creates a service dispatching to the registry's installers.
func NewInstallService(catalog *domain.Catalog, registry InstallerRegistry, output domain.OutputPort, logger logging.Logger) *InstallService {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &InstallService{batch: batch{catalog: catalog, registry: registry, output: output, logger: logger}}
}

// SetVerbose adds technical detail to reported failures.
func (s *InstallService) SetVerbose(verbose bool) {
	s.batch.verbose = verbose
}

// Install installs every application in ids, in order.
func (s *InstallService) Install(ctx context.Context, ids []string) (*domain.BatchResult, error) {
	return s.batch.run(ctx, "install", "Installing", ids,
		func(ctx context.Context, inst domain.Installer, app *domain.App) (*domain.InstallationResult, error) {
			return inst.Install(ctx, app)
		})
}

// Reinstall removes and installs every application in ids again.
func (s *InstallService) Reinstall(ctx context.Context, ids []string) (*domain.BatchResult, error) {
	return s.batch.run(ctx, "reinstall", "Reinstalling", ids,
		func(ctx context.Context, inst domain.Installer, app *domain.App) (*domain.InstallationResult, error) {
			return inst.Reinstall(ctx, app)
		})
}
