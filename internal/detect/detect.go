// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package detect decides whether a catalog application is installed, and by
// which mechanism, by probing the ledger and the live system.
package detect

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/logging"
	"github.com/bradsec/debapps/internal/versions"
)

// DefaultProbeTimeout bounds a single --version probe.
const DefaultProbeTimeout = 3 * time.Second

// Method labels for installations the ledger does not know about.
const (
	MethodBinary  = "binary"
	MethodAPT     = "apt"
	MethodDesktop = "desktop"
)

var versionPattern = regexp.MustCompile(`\d+(?:\.\d+)+(?:[-+~][0-9A-Za-z.]+)?`)

// DefaultDesktopDirs lists where launchers are looked for.
func DefaultDesktopDirs() []string {
	dirs := []string{
		"/usr/share/applications",
		"/usr/local/share/applications",
		"/var/lib/flatpak/exports/share/applications",
		"/var/lib/snapd/desktop/applications",
	}

	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", "share", "applications"))
	}

	return dirs
}

// Options wires an Engine. Nil collaborators disable their probe.
type Options struct {
	Ledger   domain.Ledger
	Runner   domain.CommandRunner
	Packages domain.PackageManager
	Flatpak  domain.SandboxRuntime
	Snap     domain.SandboxRuntime
	Resolver domain.VersionResolver
	Files    domain.FileManager

	DesktopDirs  []string
	ProbeTimeout time.Duration
	// LookPath finds binaries on PATH. Defaults to exec.LookPath.
	LookPath func(string) (string, error)
	Logger   logging.Logger
}

// Engine runs the probes in a fixed order.
type Engine struct {
	opts   Options
	logger logging.Logger
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}

	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}

	if opts.DesktopDirs == nil {
		opts.DesktopDirs = DefaultDesktopDirs()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Engine{opts: opts, logger: logger}
}

type probe func(ctx context.Context, app *domain.App) (domain.DetectionResult, bool)

// Probe reports the installation state of app without looking up the latest
// version. The first positive probe wins: ledger, PATH binary, dpkg,
// flatpak, snap, then desktop file.
func (e *Engine) Probe(ctx context.Context, app *domain.App) domain.DetectionResult {
	probes := []probe{
		e.probeLedger,
		e.probeBinary,
		e.probeDpkg,
		e.probeFlatpak,
		e.probeSnap,
		e.probeDesktop,
	}

	for _, p := range probes {
		if res, ok := p(ctx, app); ok {
			res.AppID = app.ID
			res.Installed = true

			return res
		}
	}

	return domain.DetectionResult{AppID: app.ID}
}

// Detect probes app and, when installed, resolves the latest version to
// decide whether an upgrade is available. Resolution failures are ignored.
func (e *Engine) Detect(ctx context.Context, app *domain.App) domain.DetectionResult {
	res := e.Probe(ctx, app)
	if !res.Installed || e.opts.Resolver == nil {
		return res
	}

	latest, err := e.opts.Resolver.Resolve(ctx, app)
	if err != nil {
		e.logger.Debug("latest version unavailable", "app", app.ID, "err", err)
		return res
	}

	res.LatestVersion = latest.Version
	res.Upgradeable = versions.IsUpgradeable(res.Version, latest.Version)

	return res
}

// DetectAll runs Detect for each app in order.
func (e *Engine) DetectAll(ctx context.Context, apps []*domain.App) []domain.DetectionResult {
	results := make([]domain.DetectionResult, 0, len(apps))

	for _, app := range apps {
		if ctx.Err() != nil {
			break
		}

		results = append(results, e.Detect(ctx, app))
	}

	return results
}

func (e *Engine) probeLedger(ctx context.Context, app *domain.App) (domain.DetectionResult, bool) {
	if e.opts.Ledger == nil {
		return domain.DetectionResult{}, false
	}

	rec, err := e.opts.Ledger.Get(ctx, app.ID)
	if err != nil {
		e.logger.Warn("ledger lookup failed", "app", app.ID, "err", err)
		return domain.DetectionResult{}, false
	}

	if rec == nil {
		return domain.DetectionResult{}, false
	}

	return domain.DetectionResult{
		Method:     string(rec.Method),
		Version:    rec.Version,
		Location:   rec.InstallLocation,
		DetectedBy: domain.DetectedByLedger,
	}, true
}

// probeBinary finds a binary on PATH. GUI applications are never run, since
// asking them for a version may open a window; their version stays unknown.
func (e *Engine) probeBinary(ctx context.Context, app *domain.App) (domain.DetectionResult, bool) {
	for _, bin := range app.Detection.Binaries {
		path, err := e.opts.LookPath(bin)
		if err != nil {
			continue
		}

		version := domain.VersionUnknown
		if !app.GUI && e.opts.Runner != nil {
			version = e.binaryVersion(ctx, path)
		}

		return domain.DetectionResult{
			Method:     MethodBinary,
			Version:    version,
			Location:   path,
			DetectedBy: domain.DetectedByBinary,
		}, true
	}

	return domain.DetectionResult{}, false
}

func (e *Engine) binaryVersion(ctx context.Context, path string) string {
	for _, flag := range []string{"--version", "-v"} {
		probeCtx, cancel := context.WithTimeout(ctx, e.opts.ProbeTimeout)
		out, err := e.opts.Runner.ExecuteWithOutput(probeCtx, path, flag)

		cancel()

		if err != nil {
			continue
		}

		if v := ParseVersion(out); v != "" {
			return v
		}
	}

	return domain.VersionUnknown
}

// ParseVersion returns the first dotted version number in out.
func ParseVersion(out string) string {
	return versionPattern.FindString(out)
}

func (e *Engine) probeDpkg(ctx context.Context, app *domain.App) (domain.DetectionResult, bool) {
	if e.opts.Packages == nil {
		return domain.DetectionResult{}, false
	}

	names := app.Detection.APTPackages
	if pkg := domain.PackageName(app.Source); pkg != "" && app.Method.UsesPackageManager() && !slices.Contains(names, pkg) {
		names = append([]string{pkg}, names...)
	}

	for _, name := range names {
		installed, err := e.opts.Packages.IsPackageInstalled(ctx, name)
		if err != nil || !installed {
			continue
		}

		ver, err := e.opts.Packages.InstalledVersion(ctx, name)
		if err != nil {
			ver = domain.VersionUnknown
		}

		method := MethodAPT
		if app.Method.UsesPackageManager() {
			method = string(app.Method)
		}

		return domain.DetectionResult{
			Method:     method,
			Version:    ver,
			Location:   name,
			DetectedBy: domain.DetectedByDpkg,
		}, true
	}

	return domain.DetectionResult{}, false
}

func (e *Engine) probeFlatpak(ctx context.Context, app *domain.App) (domain.DetectionResult, bool) {
	return e.probeSandbox(ctx, e.opts.Flatpak, app.Detection.FlatpakPackages, domain.MethodFlatpak, domain.DetectedByFlatpak)
}

func (e *Engine) probeSnap(ctx context.Context, app *domain.App) (domain.DetectionResult, bool) {
	return e.probeSandbox(ctx, e.opts.Snap, app.Detection.SnapPackages, domain.MethodSnap, domain.DetectedBySnap)
}

func (e *Engine) probeSandbox(ctx context.Context, rt domain.SandboxRuntime, refs []string,
	method domain.InstallMethod, by domain.DetectedBy,
) (domain.DetectionResult, bool) {
	if rt == nil || len(refs) == 0 || !rt.Available() {
		return domain.DetectionResult{}, false
	}

	for _, ref := range refs {
		installed, err := rt.IsInstalled(ctx, ref)
		if err != nil {
			e.logger.Debug("runtime listing failed", "runtime", rt.Name(), "ref", ref, "err", err)
			continue
		}

		if !installed {
			continue
		}

		ver, err := rt.Version(ctx, ref)
		if err != nil {
			ver = domain.VersionUnknown
		}

		return domain.DetectionResult{
			Method:     string(method),
			Version:    ver,
			Location:   ref,
			DetectedBy: by,
		}, true
	}

	return domain.DetectionResult{}, false
}

func (e *Engine) probeDesktop(_ context.Context, app *domain.App) (domain.DetectionResult, bool) {
	if e.opts.Files == nil {
		return domain.DetectionResult{}, false
	}

	for _, name := range app.Detection.DesktopFiles {
		if strings.Contains(name, "/") {
			continue
		}

		for _, dir := range e.opts.DesktopDirs {
			path := filepath.Join(dir, name)
			if e.opts.Files.FileExists(path) {
				return domain.DetectionResult{
					Method:     MethodDesktop,
					Version:    domain.VersionUnknown,
					Location:   path,
					DetectedBy: domain.DetectedByDesktop,
				}, true
			}
		}
	}

	return domain.DetectionResult{}, false
}
