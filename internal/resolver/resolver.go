// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package resolver finds the latest version and download URL of catalog
// applications, one strategy per source type, behind a TTL file cache.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/logging"
)

// Strategy resolves one source type.
type Strategy interface {
	Resolve(ctx context.Context, app *domain.App) (domain.Resolution, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, app *domain.App) (domain.Resolution, error)

// Resolve calls f.
func (f StrategyFunc) Resolve(ctx context.Context, app *domain.App) (domain.Resolution, error) {
	return f(ctx, app)
}

// Options wires a Resolver.
type Options struct {
	Cache          *FileCache
	Network        domain.NetworkClient
	PackageManager domain.PackageManager
	Logger         logging.Logger
	GitHubToken    string
	// GitHubAPI overrides https://api.github.com.
	GitHubAPI string
	// APITimeout bounds every lookup.
	APITimeout time.Duration
}

// Resolver implements domain.VersionResolver.
type Resolver struct {
	cache      *FileCache
	logger     logging.Logger
	timeout    time.Duration
	strategies map[domain.SourceType]Strategy
}

var _ domain.VersionResolver = (*Resolver)(nil)

// New builds a resolver with a strategy for every source type.
func New(opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	gh := &GitHubStrategy{Network: opts.Network, Token: opts.GitHubToken, APIBase: opts.GitHubAPI}
	apt := &PackageIndexStrategy{PackageManager: opts.PackageManager}

	r := &Resolver{
		cache:   opts.Cache,
		logger:  logger,
		timeout: opts.APITimeout,
		strategies: map[domain.SourceType]Strategy{
			domain.SourceGitHubRelease:         gh,
			domain.SourceDirectDownload:        StrategyFunc(resolveDirect),
			domain.SourceAPTRepository:         apt,
			domain.SourceAPTPackage:            apt,
			domain.SourceBurpInstaller:         BurpScraper(opts.Network),
			domain.SourceTorBrowserLatest:      TorScraper(opts.Network),
			domain.SourceLibreOfficeDebTarball: LibreOfficeScraper(opts.Network),
			domain.SourceCursorLatest:          &CursorStrategy{Network: opts.Network},
			domain.SourceSlackLatest:           SlackScraper(opts.Network),
		},
	}

	return r
}

// Register replaces the strategy for a source type.
func (r *Resolver) Register(t domain.SourceType, s Strategy) {
	r.strategies[t] = s
}

// Cache returns the underlying cache, which may be nil.
func (r *Resolver) Cache() *FileCache {
	return r.cache
}

// Resolve returns the latest version and download URL of app. A fresh
// cache entry is returned unchanged; a failed lookup never falls back to
// a stale one.
func (r *Resolver) Resolve(ctx context.Context, app *domain.App) (domain.Resolution, error) {
	if app == nil || app.Source == nil {
		return domain.Resolution{}, &domain.ConfigError{Field: "source", Err: domain.ErrInvalidApp}
	}

	srcType := app.Source.Type()

	strategy, ok := r.strategies[srcType]
	if !ok {
		return domain.Resolution{}, &domain.ConfigError{AppID: app.ID, Field: "source", Err: domain.ErrUnsupportedSource}
	}

	cacheable := r.cache != nil && srcType != domain.SourceDirectDownload

	if cacheable {
		if res, hit := r.cache.Get(app.ID); hit {
			r.logger.Debug("version cache hit", "app", app.ID, "version", res.Version)
			return res, nil
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res, err := strategy.Resolve(ctx, app)
	if err != nil {
		if !errors.Is(err, domain.ErrResolution) && !errors.Is(err, domain.ErrConfig) {
			err = &domain.ResolutionError{AppID: app.ID, Source: srcType, Reason: "lookup failed", Err: err}
		}

		r.logger.Debug("resolution failed", "app", app.ID, "source", srcType, "err", err)

		return domain.Resolution{}, err
	}

	if res.Version == "" || res.DownloadURL == "" {
		return domain.Resolution{}, &domain.ResolutionError{AppID: app.ID, Source: srcType, Reason: "empty version or URL"}
	}

	if res.FetchedAt.IsZero() {
		res.FetchedAt = time.Now().UTC()
	}

	if cacheable {
		if err := r.cache.Put(app.ID, res); err != nil {
			r.logger.Warn("failed to write version cache", "app", app.ID, "err", err)
		}
	}

	r.logger.Debug("resolved", "app", app.ID, "version", res.Version, "url", res.DownloadURL)

	return res, nil
}

// Refresh drops the cached entry for app and resolves again.
func (r *Resolver) Refresh(ctx context.Context, app *domain.App) (domain.Resolution, error) {
	if r.cache != nil {
		if err := r.cache.Invalidate(app.ID); err != nil {
			return domain.Resolution{}, err
		}
	}

	return r.Resolve(ctx, app)
}

func resolveDirect(_ context.Context, app *domain.App) (domain.Resolution, error) {
	src, ok := app.Source.(domain.DirectDownload)
	if !ok {
		return domain.Resolution{}, sourceMismatch(app, domain.SourceDirectDownload)
	}

	return domain.Resolution{Version: domain.VersionLatest, DownloadURL: src.URL}, nil
}

func sourceMismatch(app *domain.App, want domain.SourceType) error {
	return &domain.ConfigError{
		AppID: app.ID,
		Field: "source",
		Err:   fmt.Errorf("%w: expected %s, got %s", domain.ErrUnsupportedSource, want, app.Source.Type()),
	}
}
