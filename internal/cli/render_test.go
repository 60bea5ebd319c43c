// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/resolver"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"development", "Development"},
		{"security_tools", "Security Tools"},
		{"office-suites", "Office Suites"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, categoryTitle(tt.input))
		})
	}
}

func TestGroupByCategoryKeepsOrder(t *testing.T) {
	t.Parallel()

	groups := groupByCategory([]listEntry{
		{ID: "vscode", Category: "development"},
		{ID: "cursor", Category: "development"},
		{ID: "signal", Category: "communication"},
	})

	require.Len(t, groups, 2)
	assert.Equal(t, "development", groups[0].name)
	assert.Len(t, groups[0].entries, 2)
	assert.Equal(t, "communication", groups[1].name)
}

func TestListRows(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a very long description ", 10)

	rows := listRows([]listEntry{
		{ID: "obsidian", Name: "Obsidian", Method: domain.MethodAppImage, Description: long, Installed: true},
		{ID: "signal", Name: "Signal", Method: domain.MethodAPTRepo, Description: "Messenger"},
	})

	require.Len(t, rows, 2)
	assert.Equal(t, glyphInstalled, rows[0][0])
	assert.Equal(t, "appimage", rows[0][3])
	assert.LessOrEqual(t, runewidth.StringWidth(rows[0][4]), descriptionWidth)
	assert.True(t, strings.HasSuffix(rows[0][4], "…"))
	assert.Empty(t, rows[1][0])
	assert.Equal(t, "Messenger", rows[1][4])
}

func TestStatusRows(t *testing.T) {
	t.Parallel()

	catalog := domain.NewCatalog(1, []domain.Category{{
		Name: "productivity",
		Apps: []*domain.App{{ID: "obsidian", Name: "Obsidian"}},
	}})

	rows := statusRows(catalog, []domain.DetectionResult{
		{AppID: "obsidian", Installed: true, Version: "1.5.0", LatestVersion: "1.6.0", Upgradeable: true, Method: "appimage", DetectedBy: domain.DetectedByLedger},
		{AppID: "ghost", Installed: true, Method: "dpkg", DetectedBy: domain.DetectedByDpkg},
		{AppID: "absent"},
	})

	assert.Equal(t, []string{glyphUpgradeable, "Obsidian", "1.5.0", "1.6.0", "appimage", "ledger"}, rows[0])
	assert.Equal(t, []string{glyphInstalled, "ghost", noValue, noValue, "dpkg", "dpkg"}, rows[1])
	assert.Equal(t, []string{"", "absent", noValue, noValue, noValue, noValue}, rows[2])
}

func TestStateLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "not-installed", stateLabel(domain.DetectionResult{}))
	assert.Equal(t, "installed", stateLabel(domain.DetectionResult{Installed: true}))
	assert.Equal(t, "upgradeable", stateLabel(domain.DetectionResult{Installed: true, Upgradeable: true}))
}

func TestBatchSummary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		result   domain.BatchResult
		expected string
	}{
		{
			name:     "all succeeded",
			result:   domain.BatchResult{Succeeded: []string{"a", "b"}, Duration: 1500 * time.Millisecond},
			expected: "Installed 2/2 (1.50s)",
		},
		{
			name: "mixed",
			result: domain.BatchResult{
				Succeeded: []string{"a"},
				Failed:    []string{"b", "c"},
				Skipped:   []string{"d"},
			},
			expected: "Installed 1/4, 2 failed (b, c), 1 skipped (0.00s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, batchSummary(&tt.result, "installed"))
		})
	}
}

func TestCacheRows(t *testing.T) {
	t.Parallel()

	rows := cacheRows([]resolver.CacheEntry{
		{AppID: "obsidian", Resolution: domain.Resolution{Version: "1.6.0"}, Age: 5 * time.Minute, Fresh: true},
		{AppID: "signal", Age: 2 * time.Hour},
	})

	assert.Equal(t, "obsidian", rows[0][0])
	assert.Equal(t, "1.6.0", rows[0][1])
	assert.Equal(t, "5 minutes ago", rows[0][2])
	assert.Equal(t, "fresh", rows[0][3])
	assert.Equal(t, noValue, rows[1][1])
	assert.Equal(t, "expired", rows[1][3])
}

func TestInfoMarkdown(t *testing.T) {
	t.Parallel()

	app := &domain.App{
		ID:           "burpsuite",
		Name:         "Burp Suite",
		Description:  "Web security testing",
		Category:     "security_tools",
		Method:       domain.MethodTarball,
		Source:       domain.BurpInstaller{Edition: "community"},
		Dependencies: []string{"default-jre"},
		Warnings:     []string{"Requires Java."},
		Notes:        "Launch with `burpsuite`.",
	}

	det := domain.DetectionResult{
		AppID:      "burpsuite",
		Installed:  true,
		Version:    "2025.1",
		Location:   "/opt/burpsuite",
		DetectedBy: domain.DetectedByLedger,
	}

	rec := &domain.Record{AppID: "burpsuite", InstallDate: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	files := []domain.InstalledFile{{AppID: "burpsuite", Path: "/usr/local/bin/burpsuite", Type: domain.FileSymlink}}

	doc := infoMarkdown(app, det, rec, files)

	for _, want := range []string{
		"# Burp Suite",
		"| Category | Security Tools |",
		"| Installed | 2025.1 (found by ledger) |",
		"| Location | `/opt/burpsuite` |",
		"| Installed on | 2025-03-01 |",
		"| Requires | default-jre |",
		"## Warnings\n\n- Requires Java.",
		"## Notes\n\nLaunch with `burpsuite`.",
		"- `/usr/local/bin/burpsuite` (symlink)",
	} {
		assert.Contains(t, doc, want)
	}

	view := newInfoView(app, det, rec, files)
	assert.Equal(t, domain.SourceBurpInstaller, view.Source)
	require.NotNil(t, view.InstalledAt)
	assert.Equal(t, []string{"/usr/local/bin/burpsuite"}, view.Files)
}

func TestMenuOptions(t *testing.T) {
	t.Parallel()

	catalog := domain.NewCatalog(1, []domain.Category{
		{Name: "development", Apps: []*domain.App{{ID: "vscode", Name: "Visual Studio Code"}}},
		{Name: "communication", Apps: []*domain.App{{ID: "signal", Name: "Signal"}}},
	})

	installed := map[string]bool{"signal": true}

	install := menuOptions(catalog, installed, false)
	require.Len(t, install, 1)
	assert.Equal(t, "vscode", install[0].id)
	assert.Equal(t, "Visual Studio Code  (Development)", install[0].label)

	remove := menuOptions(catalog, installed, true)
	require.Len(t, remove, 1)
	assert.Equal(t, "signal", remove[0].id)
}
