// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package catalog loads the YAML application catalog into domain types.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/logging"
	"gopkg.in/yaml.v3"
)

// SchemaVersion is the catalog layout this build understands.
const SchemaVersion = 1

//go:embed catalog.yaml
var defaultCatalog []byte

var (
	// ErrDuplicateID is returned when two entries share an id.
	ErrDuplicateID = errors.New("duplicate application id")
	// ErrMissingField is returned when a required field is empty.
	ErrMissingField = errors.New("missing required field")
)

type fileCatalog struct {
	SchemaVersion int            `yaml:"schema_version"`
	Categories    []fileCategory `yaml:"categories"`
}

type fileCategory struct {
	Name string    `yaml:"name"`
	Apps []fileApp `yaml:"apps"`
}

type fileApp struct {
	ID              string        `yaml:"id"`
	Name            string        `yaml:"name"`
	Description     string        `yaml:"description"`
	InstallMethod   string        `yaml:"install_method"`
	Source          fileSource    `yaml:"source"`
	Detection       fileDetection `yaml:"detection"`
	Dependencies    []string      `yaml:"dependencies"`
	InstallLocation string        `yaml:"install_location"`
	Executable      string        `yaml:"executable"`
	GUI             bool          `yaml:"gui"`
	Warnings        []string      `yaml:"warnings"`
	Notes           string        `yaml:"notes"`
}

// fileSource is the flattened union of every source variant.
type fileSource struct {
	Type          string `yaml:"type"`
	Repo          string `yaml:"repo"`
	AssetPattern  string `yaml:"asset_pattern"`
	VersionPrefix string `yaml:"version_prefix"`
	URL           string `yaml:"url"`
	KeyURL        string `yaml:"key_url"`
	KeyName       string `yaml:"key_name"`
	RepoLine      string `yaml:"repo_line"`
	RepoFile      string `yaml:"repo_file"`
	PackageName   string `yaml:"package_name"`
	Edition       string `yaml:"edition"`
	BaseURL       string `yaml:"base_url"`
}

type fileDetection struct {
	Binaries        []string `yaml:"binaries"`
	APTPackages     []string `yaml:"apt_packages"`
	SnapPackages    []string `yaml:"snap_packages"`
	FlatpakPackages []string `yaml:"flatpak_packages"`
	DesktopFiles    []string `yaml:"desktop_files"`
}

// Default parses the catalog compiled into the binary.
func Default(logger logging.Logger) (*domain.Catalog, error) {
	return Parse(defaultCatalog, logger)
}

// Load reads a catalog file. An empty path selects the built-in catalog.
func Load(path string, logger logging.Logger) (*domain.Catalog, error) {
	if path == "" {
		return Default(logger)
	}

	// #nosec G304 - catalog path comes from the user's configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	return Parse(data, logger)
}

// Parse decodes and validates catalog YAML. A schema_version mismatch is
// logged, not fatal.
func Parse(data []byte, logger logging.Logger) (*domain.Catalog, error) {
	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	if fc.SchemaVersion != SchemaVersion {
		logger.Warn("catalog schema version mismatch", "found", fc.SchemaVersion, "expected", SchemaVersion)
	}

	seen := make(map[string]bool)
	categories := make([]domain.Category, 0, len(fc.Categories))

	for _, fcat := range fc.Categories {
		cat := domain.Category{Name: fcat.Name}

		for _, fa := range fcat.Apps {
			app, err := fa.toDomain(fcat.Name)
			if err != nil {
				return nil, err
			}

			if seen[app.ID] {
				return nil, &domain.ConfigError{AppID: app.ID, Field: "id", Err: ErrDuplicateID}
			}

			seen[app.ID] = true
			cat.Apps = append(cat.Apps, app)
		}

		categories = append(categories, cat)
	}

	return domain.NewCatalog(fc.SchemaVersion, categories), nil
}

func (fa fileApp) toDomain(category string) (*domain.App, error) {
	if !domain.ValidAppID(fa.ID) {
		return nil, &domain.ConfigError{AppID: fa.ID, Field: "id", Err: domain.ErrInvalidApp}
	}

	if strings.TrimSpace(fa.Name) == "" {
		return nil, &domain.ConfigError{AppID: fa.ID, Field: "name", Err: ErrMissingField}
	}

	method, err := domain.ParseInstallMethod(fa.InstallMethod)
	if err != nil {
		return nil, &domain.ConfigError{AppID: fa.ID, Field: "install_method", Err: err}
	}

	src, err := fa.Source.toDomain()
	if err != nil {
		return nil, &domain.ConfigError{AppID: fa.ID, Field: "source", Err: err}
	}

	if method == domain.MethodAppImage && fa.InstallLocation == "" {
		fa.InstallLocation = "/opt/" + fa.ID
	}

	return &domain.App{
		ID:          fa.ID,
		Name:        fa.Name,
		Description: fa.Description,
		Category:    category,
		Method:      method,
		Source:      src,
		Detection: domain.Detection{
			Binaries:        fa.Detection.Binaries,
			APTPackages:     fa.Detection.APTPackages,
			SnapPackages:    fa.Detection.SnapPackages,
			FlatpakPackages: fa.Detection.FlatpakPackages,
			DesktopFiles:    fa.Detection.DesktopFiles,
		},
		Dependencies:    fa.Dependencies,
		InstallLocation: fa.InstallLocation,
		Executable:      fa.Executable,
		GUI:             fa.GUI,
		Warnings:        fa.Warnings,
		Notes:           fa.Notes,
	}, nil
}

func (fs fileSource) toDomain() (domain.Source, error) {
	require := func(field, value string) error {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s.%s", ErrMissingField, fs.Type, field)
		}

		return nil
	}

	switch domain.SourceType(fs.Type) {
	case domain.SourceGitHubRelease:
		if err := errors.Join(require("repo", fs.Repo), require("asset_pattern", fs.AssetPattern)); err != nil {
			return nil, err
		}

		return domain.GitHubRelease{Repo: fs.Repo, AssetPattern: fs.AssetPattern, VersionPrefix: fs.VersionPrefix}, nil
	case domain.SourceDirectDownload:
		if err := require("url", fs.URL); err != nil {
			return nil, err
		}

		return domain.DirectDownload{URL: fs.URL}, nil
	case domain.SourceAPTRepository:
		if err := errors.Join(
			require("key_url", fs.KeyURL),
			require("key_name", fs.KeyName),
			require("repo_line", fs.RepoLine),
			require("repo_file", fs.RepoFile),
			require("package_name", fs.PackageName),
		); err != nil {
			return nil, err
		}

		return domain.APTRepository{
			KeyURL:      fs.KeyURL,
			KeyName:     fs.KeyName,
			RepoLine:    fs.RepoLine,
			RepoFile:    fs.RepoFile,
			PackageName: fs.PackageName,
		}, nil
	case domain.SourceAPTPackage:
		if err := require("package_name", fs.PackageName); err != nil {
			return nil, err
		}

		return domain.APTPackage{PackageName: fs.PackageName}, nil
	case domain.SourceBurpInstaller:
		edition := fs.Edition
		if edition == "" {
			edition = "community"
		}

		return domain.BurpInstaller{Edition: edition}, nil
	case domain.SourceTorBrowserLatest:
		return domain.TorBrowserLatest{}, nil
	case domain.SourceLibreOfficeDebTarball:
		if err := require("base_url", fs.BaseURL); err != nil {
			return nil, err
		}

		return domain.LibreOfficeDebTarball{BaseURL: fs.BaseURL}, nil
	case domain.SourceCursorLatest:
		return domain.CursorLatest{URL: fs.URL}, nil
	case domain.SourceSlackLatest:
		return domain.SlackLatest{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedSource, fs.Type)
	}
}
