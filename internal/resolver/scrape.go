// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package resolver

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/hashicorp/go-version"
)

// Scraper extracts a version from a vendor web page. Patterns run in order,
// each broader than the last; the first capture group is the version.
// Vendor pages change without notice, so every scraper lives behind the
// Strategy interface and can be replaced on its own.
type Scraper struct {
	Network  domain.NetworkClient
	Source   domain.SourceType
	PageURL  func(src domain.Source) string
	Patterns []*regexp.Regexp
	// Highest selects the greatest of all matches of a pattern instead of
	// the first, for directory listings.
	Highest bool
	// Normalize rewrites the captured version, when set.
	Normalize func(string) string
	BuildURL  func(src domain.Source, version string) string
}

// Resolve fetches the page and applies the pattern chain.
func (s *Scraper) Resolve(ctx context.Context, app *domain.App) (domain.Resolution, error) {
	if app.Source.Type() != s.Source {
		return domain.Resolution{}, sourceMismatch(app, s.Source)
	}

	page := s.PageURL(app.Source)

	body, err := s.Network.Fetch(ctx, page, nil)
	if err != nil {
		return domain.Resolution{}, &domain.ResolutionError{
			AppID: app.ID, Source: s.Source, Reason: "failed to fetch " + page, Err: err,
		}
	}

	v, ok := s.extract(string(body))
	if !ok {
		return domain.Resolution{}, &domain.ResolutionError{
			AppID: app.ID, Source: s.Source, Reason: "no version pattern matched " + page,
		}
	}

	if s.Normalize != nil {
		v = s.Normalize(v)
	}

	return domain.Resolution{Version: v, DownloadURL: s.BuildURL(app.Source, v)}, nil
}

func (s *Scraper) extract(body string) (string, bool) {
	for _, re := range s.Patterns {
		if !s.Highest {
			if m := re.FindStringSubmatch(body); len(m) > 1 {
				return m[1], true
			}

			continue
		}

		if v, ok := highestMatch(re, body); ok {
			return v, true
		}
	}

	return "", false
}

func highestMatch(re *regexp.Regexp, body string) (string, bool) {
	var (
		best    *version.Version
		bestRaw string
	)

	for _, m := range re.FindAllStringSubmatch(body, -1) {
		if len(m) < 2 {
			continue
		}

		v, err := version.NewVersion(m[1])
		if err != nil {
			continue
		}

		if best == nil || v.GreaterThan(best) {
			best, bestRaw = v, m[1]
		}
	}

	return bestRaw, best != nil
}

// BurpScraper reads the PortSwigger release list.
func BurpScraper(network domain.NetworkClient) *Scraper {
	return &Scraper{
		Network: network,
		Source:  domain.SourceBurpInstaller,
		PageURL: func(domain.Source) string { return "https://portswigger.net/burp/releases" },
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`Professional\s*/\s*Community\s+(\d{4}\.\d+(?:\.\d+)*)`),
			regexp.MustCompile(`burpsuite_community_linux_v(\d{4}(?:_\d+)+)`),
			regexp.MustCompile(`/burp/releases/professional-community-(\d{4}(?:-\d+)+)`),
		},
		Normalize: normalizeSeparators,
		BuildURL: func(src domain.Source, v string) string {
			edition := "community"
			if b, ok := src.(domain.BurpInstaller); ok && b.Edition != "" {
				edition = b.Edition
			}

			return "https://portswigger.net/burp/releases/download?product=" + edition +
				"&version=" + v + "&type=Jar"
		},
	}
}

// normalizeSeparators turns "2025_1_3" or "2025-1-3" into "2025.1.3".
func normalizeSeparators(v string) string {
	return strings.NewReplacer("_", ".", "-", ".").Replace(v)
}

// TorScraper reads the Tor Project download page.
func TorScraper(network domain.NetworkClient) *Scraper {
	return &Scraper{
		Network: network,
		Source:  domain.SourceTorBrowserLatest,
		PageURL: func(domain.Source) string { return "https://www.torproject.org/download/" },
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`/dist/torbrowser/(\d+\.\d+(?:\.\d+)*)/tor-browser-linux-x86_64-`),
			regexp.MustCompile(`tor-browser-linux-x86_64-(\d+\.\d+(?:\.\d+)*)\.tar\.xz`),
			regexp.MustCompile(`torbrowser/(\d+\.\d+(?:\.\d+)*)/`),
		},
		BuildURL: func(_ domain.Source, v string) string {
			return "https://www.torproject.org/dist/torbrowser/" + v + "/tor-browser-linux-x86_64-" + v + ".tar.xz"
		},
	}
}

// LibreOfficeScraper reads a mirror directory listing and takes the
// highest release directory.
func LibreOfficeScraper(network domain.NetworkClient) *Scraper {
	return &Scraper{
		Network: network,
		Source:  domain.SourceLibreOfficeDebTarball,
		PageURL: func(src domain.Source) string { return libreOfficeBase(src) },
		Highest: true,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`href="(\d+\.\d+\.\d+)/"`),
			regexp.MustCompile(`(\d+\.\d+\.\d+)/`),
		},
		BuildURL: func(src domain.Source, v string) string {
			return libreOfficeBase(src) + v + "/deb/x86_64/LibreOffice_" + v + "_Linux_x86-64_deb.tar.gz"
		},
	}
}

func libreOfficeBase(src domain.Source) string {
	base := "https://download.documentfoundation.org/libreoffice/stable/"
	if lo, ok := src.(domain.LibreOfficeDebTarball); ok && lo.BaseURL != "" {
		base = lo.BaseURL
	}

	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	return base
}

// SlackScraper reads the Slack Linux release notes.
func SlackScraper(network domain.NetworkClient) *Scraper {
	return &Scraper{
		Network: network,
		Source:  domain.SourceSlackLatest,
		PageURL: func(domain.Source) string { return "https://slack.com/release-notes/linux" },
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`<h2[^>]*>\s*Slack\s+(\d+\.\d+\.\d+)`),
			regexp.MustCompile(`Slack\s+(\d+\.\d+\.\d+)`),
			regexp.MustCompile(`slack-desktop-(\d+\.\d+\.\d+)-amd64\.deb`),
		},
		BuildURL: func(_ domain.Source, v string) string {
			return "https://downloads.slack-edge.com/desktop-releases/linux/x64/" + v + "/slack-desktop-" + v + "-amd64.deb"
		},
	}
}

const defaultCursorURL = "https://www.cursor.com/api/download?platform=linux-x64&releaseTrack=stable"

var cursorVersionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Cursor-(\d+\.\d+\.\d+)`),
	regexp.MustCompile(`/(\d+\.\d+\.\d+)/`),
	regexp.MustCompile(`(\d+\.\d+\.\d+)`),
}

// CursorStrategy asks the Cursor download API, falling back to the final
// redirect target when the API answers with something other than JSON.
type CursorStrategy struct {
	Network domain.NetworkClient
}

type cursorPayload struct {
	Version     string `json:"version"`
	DownloadURL string `json:"downloadUrl"`
}

// Resolve implements Strategy.
func (c *CursorStrategy) Resolve(ctx context.Context, app *domain.App) (domain.Resolution, error) {
	src, ok := app.Source.(domain.CursorLatest)
	if !ok {
		return domain.Resolution{}, sourceMismatch(app, domain.SourceCursorLatest)
	}

	endpoint := src.URL
	if endpoint == "" {
		endpoint = defaultCursorURL
	}

	fail := func(reason string, err error) error {
		return &domain.ResolutionError{AppID: app.ID, Source: domain.SourceCursorLatest, Reason: reason, Err: err}
	}

	if body, err := c.Network.Fetch(ctx, endpoint, map[string]string{"Accept": "application/json"}); err == nil {
		var payload cursorPayload
		if json.Unmarshal(body, &payload) == nil && payload.DownloadURL != "" {
			v := payload.Version
			if v == "" {
				v = firstMatch(cursorVersionPatterns, payload.DownloadURL)
			}

			if v != "" {
				return domain.Resolution{Version: v, DownloadURL: payload.DownloadURL}, nil
			}
		}
	}

	final, err := c.Network.FinalURL(ctx, endpoint)
	if err != nil {
		return domain.Resolution{}, fail("download redirect failed", err)
	}

	v := firstMatch(cursorVersionPatterns, final)
	if v == "" {
		return domain.Resolution{}, fail("no version in "+final, nil)
	}

	return domain.Resolution{Version: v, DownloadURL: final}, nil
}

func firstMatch(patterns []*regexp.Regexp, s string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(s); len(m) > 1 {
			return m[1]
		}
	}

	return ""
}
