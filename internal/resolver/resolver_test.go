// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const releasesJSON = `[
  {"tag_name": "v2.1.0", "prerelease": true, "draft": false, "assets": []},
  {"tag_name": "v2.0.0", "prerelease": false, "draft": false, "assets": []},
  {"tag_name": "v1.0.0", "prerelease": false, "draft": false, "assets": []}
]`

func newTestResolver(t *testing.T, network domain.NetworkClient, pm domain.PackageManager) (*Resolver, *FileCache) {
	t.Helper()

	cache := NewFileCache(filepath.Join(t.TempDir(), "versions"), DefaultTTL)

	return New(Options{Cache: cache, Network: network, PackageManager: pm}), cache
}

func TestResolveSkipsPrereleaseWithPrefix(t *testing.T) {
	t.Parallel()

	network := &testutil.MockNetworkClient{}
	network.On("Fetch", mock.Anything, "https://api.github.com/repos/example/tool/releases?per_page=50", mock.Anything).
		Return(releasesJSON, nil).Once()

	r, _ := newTestResolver(t, network, nil)

	res, err := r.Resolve(context.Background(), testutil.GitHubApp("tool", "v"))
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", res.Version)
	assert.Equal(t, "https://github.com/example/tool/releases/download/v2.0.0/tool-2.0.0.AppImage", res.DownloadURL)
	network.AssertExpectations(t)
}

func TestResolveCacheFreshness(t *testing.T) {
	t.Parallel()

	network := &testutil.MockNetworkClient{}
	network.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(releasesJSON, nil)

	r, cache := newTestResolver(t, network, nil)
	app := testutil.GitHubApp("tool", "v")
	ctx := context.Background()

	first, err := r.Resolve(ctx, app)
	require.NoError(t, err)

	second, err := r.Resolve(ctx, app)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	network.AssertNumberOfCalls(t, "Fetch", 1)

	stale := time.Now().Add(-DefaultTTL - time.Minute)
	require.NoError(t, os.Chtimes(cache.path(app.ID), stale, stale))

	_, err = r.Resolve(ctx, app)
	require.NoError(t, err)
	network.AssertNumberOfCalls(t, "Fetch", 2)
}

func TestResolveFailureDoesNotServeStale(t *testing.T) {
	t.Parallel()

	network := &testutil.MockNetworkClient{}
	network.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	r, cache := newTestResolver(t, network, nil)
	app := testutil.GitHubApp("tool", "v")

	require.NoError(t, cache.Put(app.ID, domain.Resolution{Version: "1.0.0", DownloadURL: "https://old"}))

	stale := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(cache.path(app.ID), stale, stale))

	_, err := r.Resolve(context.Background(), app)
	require.ErrorIs(t, err, domain.ErrResolution)

	// the stale entry is left in place
	_, statErr := os.Stat(cache.path(app.ID))
	require.NoError(t, statErr)
}

func TestResolveDirectDownloadIsVerbatim(t *testing.T) {
	t.Parallel()

	network := &testutil.MockNetworkClient{}
	r, cache := newTestResolver(t, network, nil)
	app := testutil.DirectApp("veracrypt", "https://example.com/files/veracrypt.deb?x=1")

	require.NoError(t, cache.Put(app.ID, domain.Resolution{Version: "9.9", DownloadURL: "https://elsewhere"}))

	for range 2 {
		res, err := r.Resolve(context.Background(), app)
		require.NoError(t, err)
		assert.Equal(t, domain.VersionLatest, res.Version)
		assert.Equal(t, "https://example.com/files/veracrypt.deb?x=1", res.DownloadURL)
	}

	network.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveGitHubLatestRelease(t *testing.T) {
	t.Parallel()

	network := &testutil.MockNetworkClient{}
	network.On("Fetch", mock.Anything, "https://api.github.com/repos/example/keepassxc/releases/latest",
		mock.MatchedBy(func(h map[string]string) bool { return h["Authorization"] == "Bearer secret" })).
		Return(`{"tag_name": "2.7.9", "assets": [
			{"name": "keepassxc-2.7.9.AppImage", "browser_download_url": "https://cdn.example.com/k.AppImage"}]}`, nil)

	r := New(Options{Network: network, GitHubToken: "secret"})

	res, err := r.Resolve(context.Background(), testutil.GitHubApp("keepassxc", ""))
	require.NoError(t, err)
	assert.Equal(t, "2.7.9", res.Version)
	assert.Equal(t, "https://cdn.example.com/k.AppImage", res.DownloadURL)
}

func TestResolveGitHubErrorPayload(t *testing.T) {
	t.Parallel()

	network := &testutil.MockNetworkClient{}
	network.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"message": "API rate limit exceeded"}`, nil)

	r := New(Options{Network: network})

	_, err := r.Resolve(context.Background(), testutil.GitHubApp("tool", "v"))
	require.ErrorIs(t, err, domain.ErrResolution)
	assert.Contains(t, err.Error(), "API rate limit exceeded")
}

// releasePage builds a full page of stable releases tagged with prefix.
func releasePage(prefix string, start int) string {
	tags := make([]string, 0, releasesPerPage)
	for i := range releasesPerPage {
		tags = append(tags, fmt.Sprintf(`{"tag_name": "%s%d.0.0", "assets": []}`, prefix, start-i))
	}

	return "[" + strings.Join(tags, ",") + "]"
}

func TestResolveScansLaterReleasePages(t *testing.T) {
	t.Parallel()

	base := "https://api.github.com/repos/example/tool/releases?per_page=50"

	network := &testutil.MockNetworkClient{}
	network.On("Fetch", mock.Anything, base, mock.Anything).Return(releasePage("server-v", 200), nil).Once()
	network.On("Fetch", mock.Anything, base+"&page=2", mock.Anything).Return(releasePage("server-v", 150), nil).Once()
	network.On("Fetch", mock.Anything, base+"&page=3", mock.Anything).Return(releasesJSON, nil).Once()

	r := New(Options{Network: network})

	res, err := r.Resolve(context.Background(), testutil.GitHubApp("tool", "v"))
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", res.Version)
	network.AssertExpectations(t)
}

func TestResolveStopsPagingAtCap(t *testing.T) {
	t.Parallel()

	network := &testutil.MockNetworkClient{}
	network.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(releasePage("server-v", 500), nil)

	r := New(Options{Network: network})

	_, err := r.Resolve(context.Background(), testutil.GitHubApp("tool", "desktop-v"))
	require.ErrorIs(t, err, domain.ErrResolution)
	network.AssertNumberOfCalls(t, "Fetch", maxReleasePages)
}

func TestResolveNoMatchingTag(t *testing.T) {
	t.Parallel()

	network := &testutil.MockNetworkClient{}
	network.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(releasesJSON, nil)

	r := New(Options{Network: network})

	_, err := r.Resolve(context.Background(), testutil.GitHubApp("tool", "desktop-v"))

	var resErr *domain.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, domain.SourceGitHubRelease, resErr.Source)
}

func TestResolvePackageIndex(t *testing.T) {
	t.Parallel()

	pm := &testutil.MockPackageManager{}
	pm.On("CandidateVersion", mock.Anything, "code").Return("1.95.3-1744033548", nil)

	r := New(Options{PackageManager: pm})

	res, err := r.Resolve(context.Background(), testutil.APTRepoApp("vscode", "code"))
	require.NoError(t, err)
	assert.Equal(t, "1.95.3-1744033548", res.Version)
	assert.Equal(t, "apt://code", res.DownloadURL)
	assert.True(t, res.IsPackageManagerURL())

	sandboxed := &domain.App{
		ID:     "discord",
		Name:   "Discord",
		Method: domain.MethodSnap,
		Source: domain.APTPackage{PackageName: "discord"},
	}

	res, err = r.Resolve(context.Background(), sandboxed)
	require.NoError(t, err)
	assert.Equal(t, "snap://discord", res.DownloadURL)
	pm.AssertNumberOfCalls(t, "CandidateVersion", 1)
}

func TestFileCacheCleanAndEntries(t *testing.T) {
	t.Parallel()

	cache := NewFileCache(t.TempDir(), time.Minute)

	require.NoError(t, cache.Put("obsidian", domain.Resolution{Version: "1.5.3", DownloadURL: "https://a"}))
	require.NoError(t, cache.Put("keepassxc", domain.Resolution{Version: "2.7.9", DownloadURL: "https://b"}))
	require.Error(t, cache.Put("../escape", domain.Resolution{Version: "1", DownloadURL: "x"}))

	entries, err := cache.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "keepassxc", entries[0].AppID)
	assert.True(t, entries[0].Fresh)

	removed, err := cache.Clean()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, hit := cache.Get("obsidian")
	assert.False(t, hit)
}
