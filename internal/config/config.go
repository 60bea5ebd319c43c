// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package config loads the debapps settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bradsec/debapps/internal/platform"
	"github.com/pelletier/go-toml/v2"
)

// DefaultUserAgent is sent on every HTTP request.
const DefaultUserAgent = "debapps/1.0 (+https://github.com/bradsec/debapps)"

var (
	// ErrInvalidDuration is returned for unparsable duration values.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrNonPositiveTTL is returned when cache_ttl is zero or negative.
	ErrNonPositiveTTL = errors.New("cache_ttl must be positive")
)

// Config holds every runtime setting. Zero values are replaced by defaults.
type Config struct {
	Catalog         string        `toml:"catalog"`
	CacheDir        string        `toml:"cache_dir"`
	StateDir        string        `toml:"state_dir"`
	OptDir          string        `toml:"opt_dir"`
	ApplicationsDir string        `toml:"applications_dir"`
	IconsDir        string        `toml:"icons_dir"`
	BinDir          string        `toml:"bin_dir"`
	CacheTTL        time.Duration `toml:"-"`
	APITimeout      time.Duration `toml:"-"`
	DownloadTimeout time.Duration `toml:"-"`
	UserAgent       string        `toml:"user_agent"`
	LogLevel        string        `toml:"log_level"`
	GitHubToken     string        `toml:"github_token"`
}

// fileConfig mirrors Config with durations as strings ("15m", "20s").
type fileConfig struct {
	Catalog         string `toml:"catalog"`
	CacheDir        string `toml:"cache_dir"`
	StateDir        string `toml:"state_dir"`
	OptDir          string `toml:"opt_dir"`
	ApplicationsDir string `toml:"applications_dir"`
	IconsDir        string `toml:"icons_dir"`
	BinDir          string `toml:"bin_dir"`
	CacheTTL        string `toml:"cache_ttl"`
	APITimeout      string `toml:"api_timeout"`
	DownloadTimeout string `toml:"download_timeout"`
	UserAgent       string `toml:"user_agent"`
	LogLevel        string `toml:"log_level"`
	GitHubToken     string `toml:"github_token"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		CacheDir:        platform.CacheDir(),
		StateDir:        platform.StateDir(),
		OptDir:          "/opt",
		ApplicationsDir: "/usr/share/applications",
		IconsDir:        "/usr/share/icons/hicolor",
		BinDir:          "/usr/local/bin",
		CacheTTL:        15 * time.Minute,
		APITimeout:      20 * time.Second,
		DownloadTimeout: 30 * time.Minute,
		UserAgent:       DefaultUserAgent,
		LogLevel:        "info",
	}
}

// DefaultPath returns the settings file location, honoring DEBAPPS_CONFIG.
func DefaultPath() string {
	if p := os.Getenv("DEBAPPS_CONFIG"); p != "" {
		return p
	}

	return filepath.Join(platform.ConfigDir(), "config.toml")
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path is the user's own config file
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg.applyEnv()
		return cfg, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := cfg.merge(data); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) merge(data []byte) error {
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return err
	}

	setString := func(dst *string, v string) {
		if v != "" {
			*dst = platform.ExpandPath(v)
		}
	}

	setString(&c.Catalog, fc.Catalog)
	setString(&c.CacheDir, fc.CacheDir)
	setString(&c.StateDir, fc.StateDir)
	setString(&c.OptDir, fc.OptDir)
	setString(&c.ApplicationsDir, fc.ApplicationsDir)
	setString(&c.IconsDir, fc.IconsDir)
	setString(&c.BinDir, fc.BinDir)

	if fc.UserAgent != "" {
		c.UserAgent = fc.UserAgent
	}

	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}

	if fc.GitHubToken != "" {
		c.GitHubToken = fc.GitHubToken
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"cache_ttl", fc.CacheTTL, &c.CacheTTL},
		{"api_timeout", fc.APITimeout, &c.APITimeout},
		{"download_timeout", fc.DownloadTimeout, &c.DownloadTimeout},
	}

	for _, d := range durations {
		if d.raw == "" {
			continue
		}

		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidDuration, d.name, d.raw)
		}

		*d.dst = parsed
	}

	if c.CacheTTL <= 0 {
		return ErrNonPositiveTTL
	}

	return nil
}

func (c *Config) applyEnv() {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" && c.GitHubToken == "" {
		c.GitHubToken = token
	}
}

// LedgerPath returns the sqlite database file.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.StateDir, "ledger.db")
}

// VersionCacheDir returns the directory holding one JSON file per app id.
func (c *Config) VersionCacheDir() string {
	return filepath.Join(c.CacheDir, "versions")
}

// DownloadDir returns the staging directory for artifacts.
func (c *Config) DownloadDir() string {
	return filepath.Join(c.CacheDir, "downloads")
}

// PinsPath returns the file holding version pins.
func (c *Config) PinsPath() string {
	return filepath.Join(c.StateDir, "pins.toml")
}

// LockPath returns the process lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.CacheDir, "debapps.lock")
}
