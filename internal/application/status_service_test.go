// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package application_test

import (
	"context"
	"testing"

	"github.com/bradsec/debapps/internal/application"
	"github.com/bradsec/debapps/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusService_Status(t *testing.T) {
	t.Parallel()

	detector := &fakeDetector{results: map[string]domain.DetectionResult{
		"obsidian": {AppID: "obsidian", Installed: true, Version: "1.8.9", LatestVersion: "1.8.10", Upgradeable: true},
		"vscode":   {AppID: "vscode", Installed: true, Version: "1.95.0"},
	}}

	svc := application.NewStatusService(testCatalog(), detector)

	tests := []struct {
		name string
		all  bool
		want []string
	}{
		{name: "installed only", want: []string{"obsidian", "vscode"}},
		{name: "whole catalog", all: true, want: []string{"obsidian", "signal", "vscode"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := svc.Status(context.Background(), tt.all)

			ids := make([]string, 0, len(res.Apps))
			for _, det := range res.Apps {
				ids = append(ids, det.AppID)
			}

			assert.Equal(t, tt.want, ids)
			assert.Equal(t, 2, res.Installed)
			assert.Equal(t, 1, res.Upgrades)
		})
	}
}

func TestStatusService_App(t *testing.T) {
	t.Parallel()

	svc := application.NewStatusService(testCatalog(), &fakeDetector{})

	app, det, err := svc.App(context.Background(), "signal")
	require.NoError(t, err)
	assert.Equal(t, "signal", app.ID)
	assert.False(t, det.Installed)

	_, _, err = svc.App(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrAppNotFound)
}
