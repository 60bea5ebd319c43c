// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrAppNotFound indicates the id is not in the catalog.
	ErrAppNotFound = errors.New("application not found in catalog")
	// ErrInvalidApp indicates a catalog entry is malformed.
	ErrInvalidApp = errors.New("invalid catalog entry")
)

var appIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

// ValidAppID reports whether id is safe to use as a key, a path segment and
// a database value.
func ValidAppID(id string) bool {
	return appIDPattern.MatchString(id) && !strings.Contains(id, "..")
}

// Detection lists the signals that reveal an existing installation.
type Detection struct {
	Binaries        []string
	APTPackages     []string
	SnapPackages    []string
	FlatpakPackages []string
	DesktopFiles    []string
}

// App is one installable application from the catalog. It is immutable after load.
type App struct {
	ID              string
	Name            string
	Description     string
	Category        string
	Method          InstallMethod
	Source          Source
	Detection       Detection
	Dependencies    []string
	InstallLocation string
	// Executable is the launcher path inside an extracted tarball, relative to
	// InstallLocation.
	Executable string
	// GUI marks applications that must not be launched to probe a version.
	GUI      bool
	Warnings []string
	Notes    string
}

// IsValid validates the entry has the fields every mechanism needs.
func (a *App) IsValid() bool {
	return ValidAppID(a.ID) &&
		strings.TrimSpace(a.Name) != "" &&
		a.Method.Valid() &&
		a.Source != nil
}

// Category groups applications for display.
type Category struct {
	Name string
	Apps []*App
}

// Catalog is the loaded set of applications.
type Catalog struct {
	SchemaVersion int
	Categories    []Category

	byID map[string]*App
}

// NewCatalog indexes the categories by application id.
func NewCatalog(schemaVersion int, categories []Category) *Catalog {
	c := &Catalog{
		SchemaVersion: schemaVersion,
		Categories:    categories,
		byID:          make(map[string]*App),
	}

	for _, cat := range categories {
		for _, app := range cat.Apps {
			c.byID[app.ID] = app
		}
	}

	return c
}

// Get returns the entry for id.
func (c *Catalog) Get(id string) (*App, error) {
	app, ok := c.byID[id]
	if !ok {
		return nil, &ConfigError{AppID: id, Err: ErrAppNotFound}
	}

	return app, nil
}

// Apps returns all entries in catalog order.
func (c *Catalog) Apps() []*App {
	var apps []*App
	for _, cat := range c.Categories {
		apps = append(apps, cat.Apps...)
	}

	return apps
}
