// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bradsec/debapps/internal/domain"
)

const (
	defaultGitHubAPI = "https://api.github.com"
	githubWeb        = "https://github.com"
	versionToken     = "{version}"
	releasesPerPage  = 50
	maxReleasePages  = 5
)

// GitHubStrategy resolves github_release sources through the releases API.
type GitHubStrategy struct {
	Network domain.NetworkClient
	Token   string
	APIBase string
}

var errUnexpectedPayload = errors.New("unexpected release payload")

type githubRelease struct {
	TagName    string        `json:"tag_name"`
	Draft      bool          `json:"draft"`
	Prerelease bool          `json:"prerelease"`
	Assets     []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

type githubErrorPayload struct {
	Message string `json:"message"`
}

// Resolve picks the newest stable release, or with a version prefix the
// newest stable release whose tag carries that prefix.
func (g *GitHubStrategy) Resolve(ctx context.Context, app *domain.App) (domain.Resolution, error) {
	src, ok := app.Source.(domain.GitHubRelease)
	if !ok {
		return domain.Resolution{}, sourceMismatch(app, domain.SourceGitHubRelease)
	}

	fail := func(reason string, err error) error {
		return &domain.ResolutionError{AppID: app.ID, Source: domain.SourceGitHubRelease, Reason: reason, Err: err}
	}

	var (
		release *githubRelease
		err     error
	)

	if src.VersionPrefix != "" {
		release, err = g.scanReleases(ctx, src)
	} else {
		release, err = g.latestRelease(ctx, src)
	}

	if err != nil {
		return domain.Resolution{}, fail("release lookup failed", err)
	}

	if release == nil {
		return domain.Resolution{}, fail(fmt.Sprintf("no stable release tagged %q*", src.VersionPrefix), nil)
	}

	version := tagVersion(release.TagName, src.VersionPrefix)

	return domain.Resolution{
		Version:     version,
		DownloadURL: assetURL(src, release, version),
	}, nil
}

func (g *GitHubStrategy) apiBase() string {
	if g.APIBase != "" {
		return strings.TrimRight(g.APIBase, "/")
	}

	return defaultGitHubAPI
}

func (g *GitHubStrategy) headers() map[string]string {
	h := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}

	if g.Token != "" {
		h["Authorization"] = "Bearer " + g.Token
	}

	return h
}

// scanReleases walks the release list newest first, one page at a time,
// until a stable release with the prefix turns up or the list ends.
func (g *GitHubStrategy) scanReleases(ctx context.Context, src domain.GitHubRelease) (*githubRelease, error) {
	for page := 1; page <= maxReleasePages; page++ {
		url := fmt.Sprintf("%s/repos/%s/releases?per_page=%d", g.apiBase(), src.Repo, releasesPerPage)
		if page > 1 {
			url += fmt.Sprintf("&page=%d", page)
		}

		body, err := g.Network.Fetch(ctx, url, g.headers())
		if err != nil {
			return nil, fetchError(body, err)
		}

		var releases []githubRelease
		if err := json.Unmarshal(body, &releases); err != nil {
			return nil, apiError(body, err)
		}

		for i := range releases {
			r := &releases[i]
			if r.Draft || r.Prerelease {
				continue
			}

			if strings.HasPrefix(r.TagName, src.VersionPrefix) {
				return r, nil
			}
		}

		if len(releases) < releasesPerPage {
			break
		}
	}

	return nil, nil
}

func (g *GitHubStrategy) latestRelease(ctx context.Context, src domain.GitHubRelease) (*githubRelease, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", g.apiBase(), src.Repo)

	body, err := g.Network.Fetch(ctx, url, g.headers())
	if err != nil {
		return nil, fetchError(body, err)
	}

	var release githubRelease
	if err := json.Unmarshal(body, &release); err != nil || release.TagName == "" {
		return nil, apiError(body, err)
	}

	return &release, nil
}

// fetchError keeps the API message of a failed request, such as a rate
// limit notice, next to the transport error.
func fetchError(body []byte, err error) error {
	var payload githubErrorPayload
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return fmt.Errorf("github: %s: %w", payload.Message, err)
	}

	return err
}

// apiError turns an API error payload into an error carrying its message.
func apiError(body []byte, decodeErr error) error {
	var payload githubErrorPayload
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return fmt.Errorf("github: %s", payload.Message)
	}

	if decodeErr != nil {
		return fmt.Errorf("%w: %w", errUnexpectedPayload, decodeErr)
	}

	return errUnexpectedPayload
}

// tagVersion strips the configured prefix, or a bare "v" before a digit.
func tagVersion(tag, prefix string) string {
	if prefix != "" {
		return strings.TrimPrefix(tag, prefix)
	}

	if len(tag) > 1 && (tag[0] == 'v' || tag[0] == 'V') && tag[1] >= '0' && tag[1] <= '9' {
		return tag[1:]
	}

	return tag
}

// assetURL fills {version} into the asset pattern. A relative pattern is
// promoted to the release download URL of the tag.
func assetURL(src domain.GitHubRelease, release *githubRelease, version string) string {
	name := strings.ReplaceAll(src.AssetPattern, versionToken, version)

	if strings.Contains(name, "://") {
		return name
	}

	for _, a := range release.Assets {
		if a.Name == name && a.BrowserDownloadURL != "" {
			return a.BrowserDownloadURL
		}
	}

	return fmt.Sprintf("%s/%s/releases/download/%s/%s", githubWeb, src.Repo, release.TagName, strings.TrimLeft(name, "/"))
}
