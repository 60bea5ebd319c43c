// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package appimage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bradsec/debapps/internal/domain"
)

// Removal reports what a manifest-driven removal did.
type Removal struct {
	Removed []string
	Skipped []string
}

// Remove tears down the installation of appID using its manifest.
func (e *Engine) Remove(ctx context.Context, appID string) (*Removal, error) {
	if !domain.ValidAppID(appID) {
		return nil, &domain.RemovalSafetyError{Path: appID, Reason: "invalid application id"}
	}

	return e.RemoveManifest(ctx, e.ManifestPath(appID))
}

// RemoveManifest removes every path listed in the manifest at manifestPath.
// The manifest must be a .log file under the opt directory and its first
// line must be an AppImage under the opt directory, otherwise nothing is
// touched. Later lines outside the allowed roots are skipped.
func (e *Engine) RemoveManifest(ctx context.Context, manifestPath string) (*Removal, error) {
	clean := filepath.Clean(manifestPath)

	if strings.Contains(manifestPath, "..") || !isUnder(e.optDir, clean) {
		return nil, &domain.RemovalSafetyError{Path: manifestPath, Reason: "manifest is not under " + e.optDir}
	}

	if filepath.Ext(clean) != ".log" {
		return nil, &domain.RemovalSafetyError{Path: manifestPath, Reason: "manifest is not a .log file"}
	}

	data, err := e.files.ReadFile(clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || !e.files.FileExists(clean) {
			return nil, fmt.Errorf("%w: %s", ErrNoManifest, clean)
		}

		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	entries := ParseManifest(data)
	if len(entries) == 0 {
		return nil, &domain.RemovalSafetyError{Path: manifestPath, Reason: "manifest is empty"}
	}

	execPath := entries[0]
	if strings.Contains(execPath, "..") || filepath.Ext(execPath) != ".AppImage" || !isUnder(e.optDir, execPath) {
		return nil, &domain.RemovalSafetyError{Path: execPath, Reason: "first manifest line is not an AppImage under " + e.optDir}
	}

	appDir := filepath.Dir(filepath.Clean(execPath))
	if filepath.Dir(appDir) != e.optDir {
		return nil, &domain.RemovalSafetyError{Path: execPath, Reason: "AppImage is not in an application directory"}
	}

	removal := &Removal{}
	seen := make(map[string]bool, len(entries))
	roots := []string{appDir, e.appsDir, e.iconDir}

	for _, entry := range entries {
		if seen[entry] {
			continue
		}

		seen[entry] = true

		if !allowed(entry, roots) {
			e.logger.Warn("skipping manifest entry outside allowed locations", "path", entry)
			removal.Skipped = append(removal.Skipped, entry)

			continue
		}

		if err := e.files.RemoveFile(entry); err != nil {
			e.logger.Warn("failed to remove", "path", entry, "err", err)
			continue
		}

		removal.Removed = append(removal.Removed, entry)
	}

	if err := e.files.RemoveAll(appDir); err != nil {
		return removal, fmt.Errorf("failed to remove %s: %w", appDir, err)
	}

	removal.Removed = append(removal.Removed, appDir)
	e.refreshCaches(ctx)

	return removal, nil
}

// allowed accepts absolute, traversal free paths strictly inside one of roots.
func allowed(path string, roots []string) bool {
	if !filepath.IsAbs(path) || strings.Contains(path, "..") {
		return false
	}

	for _, root := range roots {
		if isUnder(root, path) {
			return true
		}
	}

	return false
}

// RemoveRecorded removes an installation whose manifest is gone, using
// paths recorded elsewhere. The same allow-list applies to every path and
// the application directory is removed last.
func (e *Engine) RemoveRecorded(ctx context.Context, appID string, paths []string) (*Removal, error) {
	if !domain.ValidAppID(appID) {
		return nil, &domain.RemovalSafetyError{Path: appID, Reason: "invalid application id"}
	}

	appDir := e.AppDir(appID)
	roots := []string{appDir, e.appsDir, e.iconDir}
	removal := &Removal{}
	seen := make(map[string]bool, len(paths))

	for _, p := range paths {
		if seen[p] || p == appDir {
			continue
		}

		seen[p] = true

		if !allowed(p, roots) {
			e.logger.Warn("skipping recorded path outside allowed locations", "app", appID, "path", p)
			removal.Skipped = append(removal.Skipped, p)

			continue
		}

		if err := e.files.RemoveFile(p); err != nil {
			e.logger.Warn("failed to remove", "path", p, "err", err)
			continue
		}

		removal.Removed = append(removal.Removed, p)
	}

	if err := e.files.RemoveAll(appDir); err != nil {
		return removal, fmt.Errorf("failed to remove %s: %w", appDir, err)
	}

	removal.Removed = append(removal.Removed, appDir)
	e.refreshCaches(ctx)

	return removal, nil
}
