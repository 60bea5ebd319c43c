// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package application

import (
	"context"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/logging"
)

// UninstallService removes applications and forgets them in the ledger.
type UninstallService struct {
	batch batch
}

// NewUninstallService creates a service for removing applications.
func NewUninstallService(catalog *domain.Catalog, registry InstallerRegistry, output domain.OutputPort, logger logging.Logger) *UninstallService {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &UninstallService{batch: batch{catalog: catalog, registry: registry, output: output, logger: logger}}
}

// SetVerbose adds technical detail to reported failures.
func (s *UninstallService) SetVerbose(verbose bool) {
	s.batch.verbose = verbose
}

// Remove removes every application in ids. Removal is attempted even when
// nothing reports the application as installed, so stray files and ledger
// rows are cleaned up too.
func (s *UninstallService) Remove(ctx context.Context, ids []string) (*domain.BatchResult, error) {
	return s.batch.run(ctx, "remove", "Removing", ids,
		func(ctx context.Context, inst domain.Installer, app *domain.App) (*domain.InstallationResult, error) {
			return inst.Remove(ctx, app)
		})
}
