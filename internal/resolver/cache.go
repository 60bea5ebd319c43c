// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bradsec/debapps/internal/domain"
)

// DefaultTTL is how long a resolution is served without re-fetching.
const DefaultTTL = 15 * time.Minute

const cacheExt = ".json"

// FileCache stores one JSON file per application id. Freshness comes from
// the file's modification time.
type FileCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// CacheEntry describes a cache file for display.
type CacheEntry struct {
	AppID      string
	Resolution domain.Resolution
	Age        time.Duration
	Fresh      bool
}

// NewFileCache creates a cache rooted at dir.
func NewFileCache(dir string, ttl time.Duration) *FileCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &FileCache{dir: dir, ttl: ttl, now: time.Now}
}

func (c *FileCache) path(appID string) string {
	return filepath.Join(c.dir, appID+cacheExt)
}

// Get returns the cached resolution when it is younger than the TTL.
func (c *FileCache) Get(appID string) (domain.Resolution, bool) {
	if !domain.ValidAppID(appID) {
		return domain.Resolution{}, false
	}

	path := c.path(appID)

	info, err := os.Stat(path)
	if err != nil || c.now().Sub(info.ModTime()) >= c.ttl {
		return domain.Resolution{}, false
	}

	res, err := readEntry(path)
	if err != nil {
		return domain.Resolution{}, false
	}

	return res, true
}

func readEntry(path string) (domain.Resolution, error) {
	var res domain.Resolution

	// #nosec G304 - path is built from a validated app id
	data, err := os.ReadFile(path)
	if err != nil {
		return res, err
	}

	if err := json.Unmarshal(data, &res); err != nil {
		return res, err
	}

	if res.Version == "" || res.DownloadURL == "" {
		return res, errors.New("incomplete cache entry")
	}

	return res, nil
}

// Put overwrites the entry for appID.
func (c *FileCache) Put(appID string, res domain.Resolution) error {
	if !domain.ValidAppID(appID) {
		return fmt.Errorf("refusing cache key %q", appID)
	}

	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	tmp := c.path(appID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	return os.Rename(tmp, c.path(appID))
}

// Invalidate drops the entry for appID.
func (c *FileCache) Invalidate(appID string) error {
	if !domain.ValidAppID(appID) {
		return nil
	}

	if err := os.Remove(c.path(appID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to invalidate cache for %s: %w", appID, err)
	}

	return nil
}

// Clean removes every entry and returns how many were deleted.
func (c *FileCache) Clean() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	removed := 0

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), cacheExt) {
			continue
		}

		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}

		removed++
	}

	return removed, nil
}

// Entries lists readable cache entries sorted by app id.
func (c *FileCache) Entries() ([]CacheEntry, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var out []CacheEntry

	for _, e := range dirEntries {
		appID, ok := strings.CutSuffix(e.Name(), cacheExt)
		if e.IsDir() || !ok {
			continue
		}

		path := filepath.Join(c.dir, e.Name())

		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		res, err := readEntry(path)
		if err != nil {
			continue
		}

		age := c.now().Sub(info.ModTime())
		out = append(out, CacheEntry{AppID: appID, Resolution: res, Age: age, Fresh: age < c.ttl})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].AppID < out[j].AppID })

	return out, nil
}
