// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/resolver"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	descriptionWidth = 56
	markdownWidth    = 80

	glyphInstalled   = "✓"
	glyphUpgradeable = "↑"
	noValue          = "-"
)

func headerStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))
}

func summaryStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
}

// listEntry is one catalog row of the list command.
type listEntry struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Category    string               `json:"category"`
	Method      domain.InstallMethod `json:"method"`
	Description string               `json:"description"`
	Installed   bool                 `json:"installed"`
	Version     string               `json:"version,omitempty"`
}

type categoryGroup struct {
	name    string
	entries []listEntry
}

// groupByCategory keeps the catalog order of categories and entries.
func groupByCategory(entries []listEntry) []categoryGroup {
	var groups []categoryGroup

	for _, e := range entries {
		if n := len(groups); n == 0 || groups[n-1].name != e.Category {
			groups = append(groups, categoryGroup{name: e.Category})
		}

		last := &groups[len(groups)-1]
		last.entries = append(last.entries, e)
	}

	return groups
}

// categoryTitle turns a catalog key such as "security_tools" into a heading.
func categoryTitle(name string) string {
	words := strings.NewReplacer("_", " ", "-", " ").Replace(name)

	return cases.Title(language.English).String(words)
}

func listRows(entries []listEntry) [][]string {
	rows := make([][]string, 0, len(entries))

	for _, e := range entries {
		glyph := ""
		if e.Installed {
			glyph = glyphInstalled
		}

		rows = append(rows, []string{
			glyph,
			e.ID,
			e.Name,
			string(e.Method),
			runewidth.Truncate(e.Description, descriptionWidth, "…"),
		})
	}

	return rows
}

func countInstalled(entries []listEntry) int {
	n := 0

	for _, e := range entries {
		if e.Installed {
			n++
		}
	}

	return n
}

// stateLabel is the machine-readable state used by --plain.
func stateLabel(det domain.DetectionResult) string {
	switch {
	case det.Upgradeable:
		return "upgradeable"
	case det.Installed:
		return "installed"
	default:
		return "not-installed"
	}
}

func orNone(s string) string {
	if s == "" {
		return noValue
	}

	return s
}

func statusRows(catalog *domain.Catalog, results []domain.DetectionResult) [][]string {
	rows := make([][]string, 0, len(results))

	for _, det := range results {
		name := det.AppID
		if a, err := catalog.Get(det.AppID); err == nil {
			name = a.Name
		}

		glyph := ""

		switch {
		case det.Upgradeable:
			glyph = glyphUpgradeable
		case det.Installed:
			glyph = glyphInstalled
		}

		version := noValue
		if det.Installed {
			version = orNone(det.Version)
		}

		rows = append(rows, []string{
			glyph,
			name,
			version,
			orNone(det.LatestVersion),
			orNone(det.Method),
			orNone(string(det.DetectedBy)),
		})
	}

	return rows
}

func statusSummary(result *domain.StatusResult) string {
	msg := fmt.Sprintf("%d installed", result.Installed)

	switch result.Upgrades {
	case 0:
		msg += ", everything up to date"
	case 1:
		msg += ", 1 upgrade available (debapps upgrade --all)"
	default:
		msg += fmt.Sprintf(", %d upgrades available (debapps upgrade --all)", result.Upgrades)
	}

	return summaryStyle().Render(msg)
}

// batchSummary creates a summary string for lifecycle results.
func batchSummary(result *domain.BatchResult, successLabel string) string {
	total := len(result.Succeeded) + len(result.Failed) + len(result.Skipped)

	var summary strings.Builder

	summary.WriteString(fmt.Sprintf("%s %d/%d", successLabel, len(result.Succeeded), total))

	if n := len(result.Failed); n > 0 {
		summary.WriteString(fmt.Sprintf(", %d failed (%s)", n, strings.Join(result.Failed, ", ")))
	}

	if n := len(result.Skipped); n > 0 {
		summary.WriteString(fmt.Sprintf(", %d skipped", n))
	}

	summary.WriteString(fmt.Sprintf(" (%.2fs)", result.Duration.Seconds()))

	out := summary.String()

	return strings.ToUpper(out[:1]) + out[1:]
}

func cacheRows(entries []resolver.CacheEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	now := time.Now()

	for _, e := range entries {
		state := "fresh"
		if !e.Fresh {
			state = "expired"
		}

		rows = append(rows, []string{
			e.AppID,
			orNone(e.Resolution.Version),
			humanize.RelTime(now.Add(-e.Age), now, "ago", "from now"),
			state,
		})
	}

	return rows
}

// infoView is the JSON shape of the info command.
type infoView struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	Category     string                 `json:"category"`
	Method       domain.InstallMethod   `json:"method"`
	Source       domain.SourceType      `json:"source"`
	Dependencies []string               `json:"dependencies,omitempty"`
	Warnings     []string               `json:"warnings,omitempty"`
	Notes        string                 `json:"notes,omitempty"`
	Detection    domain.DetectionResult `json:"detection"`
	InstalledAt  *time.Time             `json:"installed_at,omitempty"`
	Files        []string               `json:"files,omitempty"`
}

func newInfoView(a *domain.App, det domain.DetectionResult, rec *domain.Record, files []domain.InstalledFile) infoView {
	v := infoView{
		ID:           a.ID,
		Name:         a.Name,
		Description:  a.Description,
		Category:     a.Category,
		Method:       a.Method,
		Source:       a.Source.Type(),
		Dependencies: a.Dependencies,
		Warnings:     a.Warnings,
		Notes:        a.Notes,
		Detection:    det,
	}

	if rec != nil {
		installed := rec.InstallDate
		v.InstalledAt = &installed
	}

	for _, f := range files {
		v.Files = append(v.Files, f.Path)
	}

	return v
}

func infoMarkdown(a *domain.App, det domain.DetectionResult, rec *domain.Record, files []domain.InstalledFile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n%s\n\n", a.Name, a.Description)

	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| ID | `%s` |\n", a.ID)
	fmt.Fprintf(&b, "| Category | %s |\n", categoryTitle(a.Category))
	fmt.Fprintf(&b, "| Method | %s |\n", a.Method)
	fmt.Fprintf(&b, "| Source | %s |\n", a.Source.Type())

	if det.Installed {
		fmt.Fprintf(&b, "| Installed | %s (found by %s) |\n", orNone(det.Version), det.DetectedBy)
	} else {
		b.WriteString("| Installed | no |\n")
	}

	if det.LatestVersion != "" {
		fmt.Fprintf(&b, "| Latest | %s |\n", det.LatestVersion)
	}

	if det.Location != "" {
		fmt.Fprintf(&b, "| Location | `%s` |\n", det.Location)
	}

	if rec != nil && !rec.InstallDate.IsZero() {
		fmt.Fprintf(&b, "| Installed on | %s |\n", rec.InstallDate.Format(time.DateOnly))
	}

	if len(a.Dependencies) > 0 {
		fmt.Fprintf(&b, "| Requires | %s |\n", strings.Join(a.Dependencies, ", "))
	}

	if len(a.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")

		for _, w := range a.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	if notes := strings.TrimSpace(a.Notes); notes != "" {
		fmt.Fprintf(&b, "\n## Notes\n\n%s\n", notes)
	}

	if len(files) > 0 {
		b.WriteString("\n## Installed files\n\n")

		for _, f := range files {
			fmt.Fprintf(&b, "- `%s` (%s)\n", f.Path, f.Type)
		}
	}

	return b.String()
}

func renderMarkdown(doc string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(markdownWidth),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	out, err := renderer.Render(doc)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}

	return out, nil
}
