// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package appimage integrates AppImages with the desktop: the image is
// placed under /opt, its launcher and icons are extracted and registered,
// and every created path is written to an ordered install manifest that
// drives a safe removal later.
package appimage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bradsec/debapps/internal/desktop"
	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/logging"
)

// Stage is a step of the integration state machine.
type Stage string

// Stages in the order they run.
const (
	StageNone               Stage = ""
	StageDownloaded         Stage = "downloaded"
	StageExtracted          Stage = "extracted"
	StageDesktopFileLocated Stage = "desktop_file_located"
	StageDesktopFilePatched Stage = "desktop_file_patched"
	StageIconsInstalled     Stage = "icons_installed"
	StageCacheRefreshed     Stage = "cache_refreshed"
	StageCleanedUp          Stage = "cleaned_up"
)

const extractDir = "squashfs-root"

// IconSizes are the hicolor sizes an icon is installed at.
var IconSizes = []int{16, 22, 24, 32, 36, 48, 64, 72, 96, 128, 192, 256, 512}

var (
	// ErrInvalidArtifact is returned when the downloaded file is missing or empty.
	ErrInvalidArtifact = errors.New("invalid AppImage artifact")
	// ErrNoManifest is returned by removal when no manifest exists.
	ErrNoManifest = errors.New("install manifest not found")
)

// Options configures an Engine. Empty directories take the system defaults.
type Options struct {
	OptDir          string
	ApplicationsDir string
	IconsDir        string
	Runner          domain.CommandRunner
	Files           domain.FileManager
	Logger          logging.Logger
}

// Engine runs AppImage integration and removal.
type Engine struct {
	optDir  string
	appsDir string
	iconDir string
	runner  domain.CommandRunner
	files   domain.FileManager
	logger  logging.Logger
}

// New creates an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		optDir:  cleanOr(opts.OptDir, "/opt"),
		appsDir: cleanOr(opts.ApplicationsDir, "/usr/share/applications"),
		iconDir: cleanOr(opts.IconsDir, "/usr/share/icons/hicolor"),
		runner:  opts.Runner,
		files:   opts.Files,
		logger:  opts.Logger,
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}

	return e
}

func cleanOr(dir, fallback string) string {
	if dir == "" {
		return fallback
	}

	return filepath.Clean(dir)
}

// AppDir returns /opt/<id>.
func (e *Engine) AppDir(appID string) string { return filepath.Join(e.optDir, appID) }

// ExecPath returns /opt/<id>/<id>.AppImage.
func (e *Engine) ExecPath(appID string) string {
	return filepath.Join(e.AppDir(appID), appID+".AppImage")
}

// ManifestPath returns /opt/<id>/install.log.
func (e *Engine) ManifestPath(appID string) string {
	return filepath.Join(e.AppDir(appID), ManifestName)
}

// DesktopPath returns the launcher location for appID.
func (e *Engine) DesktopPath(appID string) string {
	return filepath.Join(e.appsDir, appID+".desktop")
}

// Result describes a finished or failed integration.
type Result struct {
	ExecPath     string
	ManifestPath string
	DesktopPath  string
	Files        []domain.InstalledFile
	Stage        Stage
}

type run struct {
	e        *Engine
	app      *domain.App
	manifest *Manifest
	result   *Result
	root     string
	iconName string
	hasIcon  bool
	entry    *desktop.Entry
}

// Install integrates artifact as app. On failure everything recorded so far
// is removed again and the returned Result names the last stage reached.
func (e *Engine) Install(ctx context.Context, app *domain.App, artifact string) (*Result, error) {
	if !domain.ValidAppID(app.ID) {
		return nil, &domain.ConfigError{AppID: app.ID, Field: "id", Err: domain.ErrInvalidApp}
	}

	info, err := os.Stat(artifact)
	if err != nil || info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArtifact, artifact)
	}

	r := &run{
		e:   e,
		app: app,
		result: &Result{
			ExecPath:     e.ExecPath(app.ID),
			ManifestPath: e.ManifestPath(app.ID),
		},
	}

	err = r.install(ctx, artifact)
	if err == nil {
		return r.result, nil
	}

	e.logger.Error("appimage integration failed", "app", app.ID, "stage", r.result.Stage, "err", err)

	if r.manifest != nil {
		if _, rbErr := e.RemoveManifest(ctx, r.manifest.Path()); rbErr != nil {
			e.logger.Warn("rollback incomplete", "app", app.ID, "err", rbErr)
		}
	}

	return r.result, fmt.Errorf("appimage %s failed after stage %q: %w", app.ID, r.result.Stage, err)
}

func (r *run) advance(stage Stage) {
	r.result.Stage = stage
	r.e.logger.Debug("appimage stage", "app", r.app.ID, "stage", stage)
}

func (r *run) record(path string, t domain.FileType) error {
	r.result.Files = append(r.result.Files, domain.InstalledFile{AppID: r.app.ID, Path: path, Type: t})

	if path == r.result.ExecPath {
		return nil
	}

	return r.manifest.Append(path)
}

func (r *run) install(ctx context.Context, artifact string) error {
	e := r.e
	appDir := e.AppDir(r.app.ID)

	if err := e.files.EnsureDir(appDir); err != nil {
		return fmt.Errorf("failed to create %s: %w", appDir, err)
	}

	if err := e.files.MoveFile(artifact, r.result.ExecPath); err != nil {
		return fmt.Errorf("failed to place AppImage: %w", err)
	}

	if err := e.files.Chmod(r.result.ExecPath, 0o755); err != nil {
		return fmt.Errorf("failed to make AppImage executable: %w", err)
	}

	m, err := newManifest(r.result.ManifestPath, r.result.ExecPath, e.files)
	if err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	r.manifest = m
	r.result.Files = append(r.result.Files,
		domain.InstalledFile{AppID: r.app.ID, Path: r.result.ExecPath, Type: domain.FileBinary},
		domain.InstalledFile{AppID: r.app.ID, Path: r.result.ManifestPath, Type: domain.FileInstallLog},
	)
	r.advance(StageDownloaded)

	r.root = filepath.Join(appDir, extractDir)
	defer r.cleanup()

	if err := e.runner.ExecuteInDir(ctx, appDir, r.result.ExecPath, "--appimage-extract"); err != nil {
		// some images refuse extraction; they still get a generated launcher
		e.logger.Warn("appimage extraction failed, generating launcher", "app", r.app.ID, "err", err)

		return r.fallbackLauncher(ctx)
	}

	r.advance(StageExtracted)

	if err := r.locateDesktopFile(); err != nil {
		e.logger.Warn("no desktop file in image, generating launcher", "app", r.app.ID, "err", err)

		return r.fallbackLauncher(ctx)
	}

	r.advance(StageDesktopFileLocated)

	fallbackIcon := r.iconSource()
	r.hasIcon = fallbackIcon != ""

	if !r.hasIcon {
		e.logger.Warn("no icon found in image", "app", r.app.ID)
	}

	if err := r.writeDesktopFile(ctx); err != nil {
		return err
	}

	r.advance(StageDesktopFilePatched)

	if err := r.installIcons(ctx, fallbackIcon); err != nil {
		return err
	}

	r.advance(StageIconsInstalled)

	e.refreshCaches(ctx)
	r.advance(StageCacheRefreshed)

	return nil
}

func (r *run) cleanup() {
	if r.root == "" {
		return
	}

	if err := r.e.files.RemoveAll(r.root); err != nil {
		r.e.logger.Warn("failed to remove extraction directory", "path", r.root, "err", err)
		return
	}

	if r.result.Stage == StageCacheRefreshed {
		r.advance(StageCleanedUp)
	}
}

func (r *run) fallbackLauncher(ctx context.Context) error {
	launcher := desktop.DesktopApp{
		Name:          r.app.Name,
		Comment:       r.app.Description,
		Exec:          r.result.ExecPath,
		Icon:          r.app.ID,
		StartupNotify: true,
	}

	r.result.DesktopPath = r.e.DesktopPath(r.app.ID)
	if err := r.e.files.WriteFile(r.result.DesktopPath, launcher.Render()); err != nil {
		return fmt.Errorf("failed to write launcher: %w", err)
	}

	if err := r.record(r.result.DesktopPath, domain.FileDesktop); err != nil {
		return err
	}

	r.advance(StageDesktopFilePatched)
	r.e.refreshCaches(ctx)
	r.advance(StageCacheRefreshed)

	return nil
}

func (r *run) locateDesktopFile() error {
	candidates, err := filepath.Glob(filepath.Join(r.root, "*.desktop"))
	if err != nil {
		return err
	}

	if len(candidates) == 0 {
		candidates, _ = filepath.Glob(filepath.Join(r.root, "usr", "share", "applications", "*.desktop"))
	}

	if len(candidates) == 0 {
		return fmt.Errorf("%w in %s", desktop.ErrNoDesktopEntry, r.root)
	}

	data, err := r.e.files.ReadFile(candidates[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", candidates[0], err)
	}

	entry, err := desktop.Parse(data)
	if err != nil {
		return err
	}

	r.entry = entry
	r.iconName, _ = entry.Get("Icon")

	return nil
}

func (r *run) writeDesktopFile(ctx context.Context) error {
	icon := ""
	if r.hasIcon {
		icon = r.app.ID
	}

	changed := r.entry.Patch(r.result.ExecPath, icon)
	r.e.logger.Debug("patched desktop entry", "app", r.app.ID, "keys", strings.Join(changed, ","))

	r.result.DesktopPath = r.e.DesktopPath(r.app.ID)
	if err := r.e.files.WriteFile(r.result.DesktopPath, r.entry.Render()); err != nil {
		return fmt.Errorf("failed to write desktop file: %w", err)
	}

	if err := r.record(r.result.DesktopPath, domain.FileDesktop); err != nil {
		return err
	}

	if r.e.runner.CommandExists("desktop-file-validate") {
		if out, err := r.e.runner.ExecuteWithOutput(ctx, "desktop-file-validate", r.result.DesktopPath); err != nil {
			r.e.logger.Warn("desktop file has problems", "app", r.app.ID, "output", strings.TrimSpace(out), "err", err)
		}
	}

	return nil
}

// iconSource finds the image used for sizes the AppImage does not ship.
func (r *run) iconSource() string {
	name := r.iconName
	if name != "" && !filepath.IsAbs(name) {
		for _, ext := range []string{".png", ".svg", ".xpm"} {
			if p := filepath.Join(r.root, name+ext); r.insideRoot(p) {
				return p
			}
		}

		for i := len(IconSizes) - 1; i >= 0; i-- {
			if p := r.hicolorIcon(IconSizes[i]); p != "" {
				return p
			}
		}
	}

	if p := filepath.Join(r.root, ".DirIcon"); r.insideRoot(p) {
		return p
	}

	return ""
}

func (r *run) hicolorIcon(size int) string {
	if r.iconName == "" {
		return ""
	}

	dim := strconv.Itoa(size) + "x" + strconv.Itoa(size)
	p := filepath.Join(r.root, "usr", "share", "icons", "hicolor", dim, "apps", r.iconName+".png")

	if r.insideRoot(p) {
		return p
	}

	return ""
}

// insideRoot reports whether p exists and, after resolving links, stays
// inside the extracted tree.
func (r *run) insideRoot(p string) bool {
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return false
	}

	root, err := filepath.EvalSymlinks(r.root)
	if err != nil {
		return false
	}

	info, err := os.Stat(resolved)

	return err == nil && info.Mode().IsRegular() && isUnder(root, resolved)
}

// installIcons places the icon at every hicolor size, preferring the sizes
// shipped in the image and scaling fallback for the rest.
func (r *run) installIcons(ctx context.Context, fallback string) error {
	if fallback == "" {
		return nil
	}

	if strings.HasSuffix(fallback, ".svg") {
		dest := filepath.Join(r.e.iconDir, "scalable", "apps", r.app.ID+".svg")
		if err := r.e.files.CopyFile(fallback, dest); err != nil {
			return fmt.Errorf("failed to install icon: %w", err)
		}

		if err := r.record(dest, domain.FileIcon); err != nil {
			return err
		}
	}

	converter := r.e.converter()

	for _, size := range IconSizes {
		dim := strconv.Itoa(size) + "x" + strconv.Itoa(size)
		dest := filepath.Join(r.e.iconDir, dim, "apps", r.app.ID+".png")

		ok, err := r.installIcon(ctx, size, fallback, dest, converter)
		if err != nil {
			return err
		}

		if ok {
			if err := r.record(dest, domain.FileIcon); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *run) installIcon(ctx context.Context, size int, fallback, dest, converter string) (bool, error) {
	if src := r.hicolorIcon(size); src != "" {
		if err := r.e.files.CopyFile(src, dest); err != nil {
			return false, fmt.Errorf("failed to install icon: %w", err)
		}

		return true, nil
	}

	if fallback == "" {
		return false, nil
	}

	if converter != "" {
		if err := r.e.files.EnsureDir(filepath.Dir(dest)); err != nil {
			return false, err
		}

		dim := strconv.Itoa(size) + "x" + strconv.Itoa(size)
		if err := r.e.runner.Execute(ctx, converter, fallback, "-resize", dim, dest); err == nil &&
			r.e.files.FileExists(dest) {
			return true, nil
		}
	}

	// without a converter only a PNG can stand in for another size
	if !strings.HasSuffix(fallback, ".png") && filepath.Base(fallback) != ".DirIcon" {
		return false, nil
	}

	if err := r.e.files.CopyFile(fallback, dest); err != nil {
		return false, fmt.Errorf("failed to install icon: %w", err)
	}

	return true, nil
}

func (e *Engine) converter() string {
	for _, tool := range []string{"magick", "convert"} {
		if e.runner.CommandExists(tool) {
			return tool
		}
	}

	return ""
}

func (e *Engine) refreshCaches(ctx context.Context) {
	if e.runner.CommandExists("gtk-update-icon-cache") {
		if err := e.runner.Execute(ctx, "gtk-update-icon-cache", "-f", "-t", e.iconDir); err != nil {
			e.logger.Warn("icon cache refresh failed", "err", err)
		}
	}

	if e.runner.CommandExists("update-desktop-database") {
		if err := e.runner.Execute(ctx, "update-desktop-database", e.appsDir); err != nil {
			e.logger.Warn("desktop database refresh failed", "err", err)
		}
	}
}

func isUnder(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
