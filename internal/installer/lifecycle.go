// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package installer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/logging"
	"github.com/google/uuid"
)

// Lifecycle runs the shared install, remove, reinstall and upgrade steps
// around one mechanism.
type Lifecycle struct {
	deps   *Deps
	mech   mechanism
	logger logging.Logger
}

var _ domain.Installer = (*Lifecycle)(nil)

func newLifecycle(deps *Deps, mech mechanism) *Lifecycle {
	return &Lifecycle{
		deps:   deps,
		mech:   mech,
		logger: deps.Logger.With("method", mech.method()),
	}
}

// Method returns the installation method handled.
func (l *Lifecycle) Method() domain.InstallMethod { return l.mech.method() }

func (l *Lifecycle) newResult(app *domain.App, start time.Time) *domain.InstallationResult {
	return &domain.InstallationResult{
		AppID:    app.ID,
		Method:   l.mech.method(),
		Warnings: app.Warnings,
		Duration: time.Since(start).Milliseconds(),
	}
}

func (l *Lifecycle) confirm(app *domain.App, action string) error {
	if l.deps.Prompter == nil {
		return nil
	}

	title := fmt.Sprintf("%s %s?", action, app.Name)

	var desc strings.Builder

	if app.Description != "" {
		desc.WriteString(app.Description)
	}

	for _, w := range app.Warnings {
		if desc.Len() > 0 {
			desc.WriteString("\n")
		}

		desc.WriteString("Warning: " + w)
	}

	ok, err := l.deps.Prompter.Confirm(title, desc.String())
	if err != nil {
		return fmt.Errorf("confirmation failed: %w", err)
	}

	if !ok {
		return domain.ErrCancelled
	}

	return nil
}

// Install installs app, removing any existing installation first.
func (l *Lifecycle) Install(ctx context.Context, app *domain.App) (*domain.InstallationResult, error) {
	if err := l.confirm(app, "Install"); err != nil {
		return l.fail(app, time.Now(), err)
	}

	return l.install(ctx, app)
}

// Remove removes app and forgets it in the ledger.
func (l *Lifecycle) Remove(ctx context.Context, app *domain.App) (*domain.InstallationResult, error) {
	if err := l.confirm(app, "Remove"); err != nil {
		return l.fail(app, time.Now(), err)
	}

	return l.remove(ctx, app)
}

// Reinstall removes app, logging any failure, then installs it again.
func (l *Lifecycle) Reinstall(ctx context.Context, app *domain.App) (*domain.InstallationResult, error) {
	if err := l.confirm(app, "Reinstall"); err != nil {
		return l.fail(app, time.Now(), err)
	}

	return l.reinstall(ctx, app)
}

func (l *Lifecycle) reinstall(ctx context.Context, app *domain.App) (*domain.InstallationResult, error) {
	if _, err := l.remove(ctx, app); err != nil {
		l.logger.Warn("removal before reinstall failed", "app", app.ID, "err", err)
	}

	return l.install(ctx, app)
}

// Upgrade uses the native update channel when the method has one and
// reinstalls otherwise.
func (l *Lifecycle) Upgrade(ctx context.Context, app *domain.App) (*domain.InstallationResult, error) {
	if err := l.confirm(app, "Upgrade"); err != nil {
		return l.fail(app, time.Now(), err)
	}

	up, ok := l.mech.(nativeUpgrader)
	if !ok || !app.Method.HasNativeUpgrade() {
		return l.reinstall(ctx, app)
	}

	start := time.Now()

	if l.deps.DryRun {
		l.logger.Info("dry run: would upgrade", "app", app.ID)

		result := l.newResult(app, start)
		result.Success = true

		return result, nil
	}

	loc, err := l.locate(ctx, app)
	if err != nil {
		return l.fail(app, start, err)
	}

	version, err := up.upgrade(ctx, app, loc)
	if err != nil {
		return l.fail(app, start, fmt.Errorf("upgrade of %s failed: %w", app.ID, err))
	}

	if loc.Record == nil {
		rec := l.newRecord(app, &Outcome{Version: version, Location: loc.Path})
		if err := l.deps.Ledger.Upsert(ctx, rec); err != nil {
			return l.fail(app, start, err)
		}
	} else if err := l.deps.Ledger.UpdateVersion(ctx, app.ID, version); err != nil {
		return l.fail(app, start, err)
	}

	l.logger.Info("upgraded", "app", app.ID, "version", version)

	result := l.newResult(app, start)
	result.Success = true
	result.Version = version
	result.Location = loc.Path

	return result, nil
}

func (l *Lifecycle) fail(app *domain.App, start time.Time, err error) (*domain.InstallationResult, error) {
	result := l.newResult(app, start)
	result.Error = err

	return result, err
}

func (l *Lifecycle) installed(ctx context.Context, app *domain.App) bool {
	if ok, err := l.deps.Ledger.IsInstalled(ctx, app.ID); err == nil && ok {
		return true
	}

	return l.mech.present(ctx, app)
}

func (l *Lifecycle) install(ctx context.Context, app *domain.App) (*domain.InstallationResult, error) {
	start := time.Now()
	logger := l.logger.With("app", app.ID)

	for _, w := range app.Warnings {
		logger.Warn(w)
	}

	if l.deps.DryRun {
		return l.dryRunInstall(ctx, app, start)
	}

	if l.installed(ctx, app) {
		logger.Info("already installed, removing first")

		if _, err := l.remove(ctx, app); err != nil {
			logger.Warn("removal of existing installation failed", "err", err)
		}
	}

	l.ensureDependencies(ctx, app)

	res, err := l.deps.Resolver.Resolve(ctx, app)
	if err != nil {
		return l.fail(app, start, err)
	}

	logger.Info("installing", "version", res.Version, "url", res.DownloadURL)

	var artifact string

	if l.mech.downloads() {
		artifact, err = l.download(ctx, app, res)
		if err != nil {
			return l.fail(app, start, err)
		}

		defer func() {
			if rmErr := l.deps.Files.RemoveFile(artifact); rmErr != nil {
				logger.Warn("failed to delete download", "path", artifact, "err", rmErr)
			}
		}()
	}

	out, err := l.mech.setup(ctx, app, res, artifact)
	if err != nil {
		return l.fail(app, start, err)
	}

	if out.Version == "" {
		out.Version = res.Version
	}

	if err := l.mech.verify(ctx, app, out); err != nil {
		logger.Error("installation could not be verified", "err", err)
		return l.fail(app, start, err)
	}

	rec := l.newRecord(app, out)
	if res.DownloadURL != "" && !res.IsPackageManagerURL() {
		rec.Metadata[metaURL] = res.DownloadURL
	}

	if err := l.deps.Ledger.Commit(ctx, rec, out.Files); err != nil {
		return l.fail(app, start, fmt.Errorf("installed but not recorded: %w", err))
	}

	logger.Info("installed", "version", out.Version, "location", out.Location, "files", len(out.Files))

	result := l.newResult(app, start)
	result.Success = true
	result.Version = out.Version
	result.Location = out.Location

	return result, nil
}

func (l *Lifecycle) dryRunInstall(ctx context.Context, app *domain.App, start time.Time) (*domain.InstallationResult, error) {
	res, err := l.deps.Resolver.Resolve(ctx, app)
	if err != nil {
		return l.fail(app, start, err)
	}

	l.logger.Info("dry run: would install", "app", app.ID, "version", res.Version, "url", res.DownloadURL,
		"dependencies", strings.Join(app.Dependencies, ","))

	result := l.newResult(app, start)
	result.Success = true
	result.Version = res.Version
	result.Location = app.InstallLocation

	return result, nil
}

func (l *Lifecycle) newRecord(app *domain.App, out *Outcome) *domain.Record {
	meta := make(map[string]string, len(out.Metadata)+1)
	for k, v := range out.Metadata {
		meta[k] = v
	}

	return &domain.Record{
		AppID:           app.ID,
		AppName:         app.Name,
		Method:          app.Method,
		Version:         out.Version,
		InstallDate:     l.deps.Now().UTC(),
		InstallLocation: out.Location,
		Metadata:        meta,
	}
}

// ensureDependencies installs missing dependency packages. Failures are
// logged and the install goes on.
func (l *Lifecycle) ensureDependencies(ctx context.Context, app *domain.App) {
	if len(app.Dependencies) == 0 || l.deps.Packages == nil {
		return
	}

	var missing []string

	for _, dep := range app.Dependencies {
		ok, err := l.deps.Packages.IsPackageInstalled(ctx, dep)
		if err != nil || !ok {
			missing = append(missing, dep)
		}
	}

	if len(missing) == 0 {
		return
	}

	l.logger.Info("installing dependencies", "app", app.ID, "packages", strings.Join(missing, ","))

	if err := l.deps.Packages.InstallPackages(ctx, missing...); err != nil {
		l.logger.Warn("dependency installation failed", "app", app.ID, "err", err)
	}
}

// download fetches the artifact to a unique path in the download directory.
func (l *Lifecycle) download(ctx context.Context, app *domain.App, res domain.Resolution) (string, error) {
	if res.IsPackageManagerURL() {
		return "", &domain.ConfigError{AppID: app.ID, Field: "source",
			Err: fmt.Errorf("%w: %s needs a downloadable URL, got %s", ErrUnexpectedArtifact, app.Method, res.DownloadURL)}
	}

	if err := l.deps.Files.EnsureDir(l.deps.DownloadDir); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	dest := filepath.Join(l.deps.DownloadDir, app.ID+"-"+uuid.NewString()+artifactExt(res.DownloadURL))

	if err := l.deps.Network.DownloadFile(ctx, res.DownloadURL, dest); err != nil {
		return "", err
	}

	if !l.deps.Files.FileExists(dest) {
		return "", &domain.DownloadError{URL: res.DownloadURL, Attempts: []error{errors.New("no file written")}}
	}

	return dest, nil
}

// artifactExt keeps the extension of the URL's file name so tools that look
// at names see the right type.
func artifactExt(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}

	base := path.Base(p)
	lower := strings.ToLower(base)

	for _, ext := range []string{".tar.gz", ".tar.xz", ".tar.bz2", ".tar.zst", ".tgz", ".appimage", ".deb", ".jar", ".zip"} {
		if strings.HasSuffix(lower, ext) {
			return base[len(base)-len(ext):]
		}
	}

	return ""
}

// locate finds an installation in the ledger, falling back to the catalog.
func (l *Lifecycle) locate(ctx context.Context, app *domain.App) (Location, error) {
	loc := Location{Path: app.InstallLocation}

	rec, err := l.deps.Ledger.Get(ctx, app.ID)
	if err != nil {
		return loc, fmt.Errorf("failed to read ledger: %w", err)
	}

	if rec == nil {
		return loc, nil
	}

	loc.Record = rec
	if rec.InstallLocation != "" {
		loc.Path = rec.InstallLocation
	}

	files, err := l.deps.Ledger.ListFiles(ctx, app.ID)
	if err != nil {
		return loc, fmt.Errorf("failed to read ledger files: %w", err)
	}

	loc.Files = files

	return loc, nil
}

// remove tears the installation down and always forgets it in the ledger.
func (l *Lifecycle) remove(ctx context.Context, app *domain.App) (*domain.InstallationResult, error) {
	start := time.Now()
	logger := l.logger.With("app", app.ID)

	if l.deps.DryRun {
		logger.Info("dry run: would remove")

		result := l.newResult(app, start)
		result.Success = true

		return result, nil
	}

	loc, locErr := l.locate(ctx, app)
	if locErr != nil {
		logger.Warn("ledger unavailable, using catalog location", "err", locErr)
	}

	teardownErr := l.mech.teardown(ctx, app, loc)
	if teardownErr != nil {
		logger.Warn("teardown incomplete", "err", teardownErr)
	}

	ledgerErr := l.deps.Ledger.Remove(ctx, app.ID)

	if err := errors.Join(teardownErr, ledgerErr); err != nil {
		return l.fail(app, start, fmt.Errorf("removal of %s incomplete: %w", app.ID, err))
	}

	logger.Info("removed", "location", loc.Path)

	result := l.newResult(app, start)
	result.Success = true
	result.Location = loc.Path

	return result, nil
}
