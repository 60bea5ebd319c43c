// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/logging"
)

// ErrPinned is returned when upgrading an application held at a version.
var ErrPinned = errors.New("application is pinned")

// Pins reports applications held at a version.
type Pins interface {
	Pinned(appID string) (string, bool)
}

// UpgradeService brings installed applications to their latest version.
type UpgradeService struct {
	batch    batch
	detector Detector
	pins     Pins
}

// NewUpgradeService creates an upgrade service. pins may be nil.
func NewUpgradeService(catalog *domain.Catalog, registry InstallerRegistry, detector Detector, pins Pins, output domain.OutputPort, logger logging.Logger) *UpgradeService {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &UpgradeService{
		batch:    batch{catalog: catalog, registry: registry, output: output, logger: logger},
		detector: detector,
		pins:     pins,
	}
}

// SetVerbose adds technical detail to reported failures.
func (s *UpgradeService) SetVerbose(verbose bool) {
	s.batch.verbose = verbose
}

// Upgrade upgrades the named applications. Each must be installed and not
// pinned; the installer decides between its native channel and a reinstall.
func (s *UpgradeService) Upgrade(ctx context.Context, ids []string) (*domain.BatchResult, error) {
	return s.batch.run(ctx, "upgrade", "Upgrading", ids,
		func(ctx context.Context, inst domain.Installer, app *domain.App) (*domain.InstallationResult, error) {
			if version, ok := s.pinned(app.ID); ok {
				return nil, fmt.Errorf("%w at %s: %s", ErrPinned, version, app.ID)
			}

			if det := s.detector.Detect(ctx, app); !det.Installed {
				return nil, fmt.Errorf("%w: %s", domain.ErrNotInstalled, app.ID)
			}

			return inst.Upgrade(ctx, app)
		})
}

// Candidates returns the installed, unpinned applications with a newer
// version available, plus the pinned ones that were passed over.
func (s *UpgradeService) Candidates(ctx context.Context) (upgradeable, pinned []string) {
	for _, det := range s.detector.DetectAll(ctx, s.batch.catalog.Apps()) {
		if !det.Installed || !det.Upgradeable {
			continue
		}

		if _, ok := s.pinned(det.AppID); ok {
			pinned = append(pinned, det.AppID)
			continue
		}

		upgradeable = append(upgradeable, det.AppID)
	}

	return upgradeable, pinned
}

// UpgradeAll upgrades every application with a newer version available.
// Pinned applications are reported as skipped.
func (s *UpgradeService) UpgradeAll(ctx context.Context) (*domain.BatchResult, error) {
	ids, pinned := s.Candidates(ctx)

	for _, id := range pinned {
		_ = s.batch.output.Info(fmt.Sprintf("Skipping pinned %s", id))
	}

	if len(ids) == 0 {
		_ = s.batch.output.Info("Everything is up to date")
		return &domain.BatchResult{Operation: "upgrade", Skipped: pinned}, nil
	}

	result, err := s.Upgrade(ctx, ids)
	if result != nil {
		result.Skipped = append(result.Skipped, pinned...)
	}

	return result, err
}

func (s *UpgradeService) pinned(appID string) (string, bool) {
	if s.pins == nil {
		return "", false
	}

	return s.pins.Pinned(appID)
}
