// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package application

import (
	"context"
	"time"

	"github.com/bradsec/debapps/internal/domain"
)

// StatusService reports the installation state of the catalog.
type StatusService struct {
	catalog  *domain.Catalog
	detector Detector
}

// NewStatusService creates a new status service.
func NewStatusService(catalog *domain.Catalog, detector Detector) *StatusService {
	return &StatusService{catalog: catalog, detector: detector}
}

// Status detects every catalog application. Unless all is set only
// installed applications are listed; the counters always cover the catalog.
func (s *StatusService) Status(ctx context.Context, all bool) *domain.StatusResult {
	result := &domain.StatusResult{Timestamp: time.Now()}

	for _, det := range s.detector.DetectAll(ctx, s.catalog.Apps()) {
		if det.Installed {
			result.Installed++
		}

		if det.Upgradeable {
			result.Upgrades++
		}

		if all || det.Installed {
			result.Apps = append(result.Apps, det)
		}
	}

	return result
}

// App detects a single application.
func (s *StatusService) App(ctx context.Context, id string) (*domain.App, domain.DetectionResult, error) {
	app, err := s.catalog.Get(id)
	if err != nil {
		return nil, domain.DetectionResult{}, err
	}

	return app, s.detector.Detect(ctx, app), nil
}
