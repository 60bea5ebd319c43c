// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package versions compares installed and published versions and manages
// user version pins.
package versions

import (
	"regexp"
	"strings"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/hashicorp/go-version"
)

var (
	// debianRevision matches a packaging suffix such as "-1" or "-0ubuntu2".
	debianRevision = regexp.MustCompile(`-[0-9][0-9A-Za-z.~+]*$`)
	leadingDigits  = regexp.MustCompile(`^[0-9]`)
)

// Normalize strips the decorations package managers and tags add around a
// version: a leading "v", a Debian epoch, a Debian revision and build
// metadata.
func Normalize(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(strings.TrimPrefix(v, "v"), "V")

	if idx := strings.Index(v, ":"); idx > 0 && leadingDigits.MatchString(v) {
		v = v[idx+1:]
	}

	if idx := strings.Index(v, "+"); idx > 0 {
		v = v[:idx]
	}

	return debianRevision.ReplaceAllString(v, "")
}

// Compare returns -1, 0 or 1 as a is older than, equal to or newer than b.
// ok is false when either side is a sentinel or cannot be parsed.
func Compare(a, b string) (result int, ok bool) {
	if domain.IsSentinelVersion(a) || domain.IsSentinelVersion(b) {
		return 0, false
	}

	if Normalize(a) == Normalize(b) {
		return 0, true
	}

	va, err := version.NewVersion(Normalize(a))
	if err != nil {
		return 0, false
	}

	vb, err := version.NewVersion(Normalize(b))
	if err != nil {
		return 0, false
	}

	return va.Compare(vb), true
}

// IsUpgradeable reports whether installed is strictly older than latest.
// Unknown or sentinel versions never count as upgradeable.
func IsUpgradeable(installed, latest string) bool {
	result, ok := Compare(installed, latest)

	return ok && result < 0
}
