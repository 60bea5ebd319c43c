// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package application_test

import (
	"bytes"
	"context"

	"github.com/bradsec/debapps/internal/adapters/cli"
	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/testutil"
)

func testCatalog() *domain.Catalog {
	return domain.NewCatalog(1, []domain.Category{
		{Name: "productivity", Apps: []*domain.App{
			testutil.GitHubApp("obsidian", "v"),
			testutil.APTRepoApp("signal", "signal-desktop"),
		}},
		{Name: "development", Apps: []*domain.App{
			testutil.DirectApp("vscode", "https://example.com/code.deb"),
		}},
	})
}

func textOutput() (*bytes.Buffer, domain.OutputPort) {
	var buf bytes.Buffer

	return &buf, cli.NewOutputAdapterWithWriter(&buf, cli.TextFormat, false)
}

// fakeDetector answers from a fixed table.
type fakeDetector struct {
	results map[string]domain.DetectionResult
}

func (f *fakeDetector) Detect(_ context.Context, app *domain.App) domain.DetectionResult {
	if det, ok := f.results[app.ID]; ok {
		return det
	}

	return domain.DetectionResult{AppID: app.ID}
}

func (f *fakeDetector) DetectAll(ctx context.Context, apps []*domain.App) []domain.DetectionResult {
	out := make([]domain.DetectionResult, 0, len(apps))
	for _, app := range apps {
		out = append(out, f.Detect(ctx, app))
	}

	return out
}

type fakePins map[string]string

func (p fakePins) Pinned(appID string) (string, bool) {
	v, ok := p[appID]
	return v, ok
}
