// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package app builds the Env every command runs against.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/bradsec/debapps/internal/adapters/network"
	adapterplatform "github.com/bradsec/debapps/internal/adapters/platform"
	"github.com/bradsec/debapps/internal/adapters/ubuntu"
	"github.com/bradsec/debapps/internal/appimage"
	"github.com/bradsec/debapps/internal/application"
	"github.com/bradsec/debapps/internal/catalog"
	"github.com/bradsec/debapps/internal/config"
	"github.com/bradsec/debapps/internal/detect"
	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/installer"
	"github.com/bradsec/debapps/internal/ledger"
	"github.com/bradsec/debapps/internal/logging"
	"github.com/bradsec/debapps/internal/platform"
	"github.com/bradsec/debapps/internal/resolver"
	"github.com/bradsec/debapps/internal/versions"
	"golang.org/x/term"
)

// Options are the command line overrides applied on top of the config file.
type Options struct {
	ConfigPath string
	Catalog    string
	LogLevel   string
	Verbose    bool
	DryRun     bool
	Yes        bool
	JSON       bool
	Quiet      bool

	// Output receives user-facing messages. Required.
	Output domain.OutputPort
	// Stderr receives logs and download progress. Defaults to os.Stderr.
	Stderr io.Writer
	// Prompter overrides the console prompter.
	Prompter domain.Prompter
}

// Env is the explicit context object shared by every service.
type Env struct {
	Config   *config.Config
	Logger   logging.Logger
	Output   domain.OutputPort
	Catalog  *domain.Catalog
	Ledger   *ledger.Store
	Resolver *resolver.Resolver
	Detector *detect.Engine
	Registry *installer.Registry
	Pins     *versions.PinManager
	System   domain.SystemDetector

	dryRun  bool
	verbose bool
	euid    func() int
}

// New loads the configuration and catalog, opens the ledger and wires the
// adapters. Close releases the ledger.
func New(ctx context.Context, opts Options) (*Env, error) {
	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, &domain.ConfigError{Field: "config", Err: err}
	}

	if opts.Catalog != "" {
		cfg.Catalog = platform.ExpandPath(opts.Catalog)
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}

	if opts.Verbose {
		level = "debug"
	}

	logger := logging.New(stderr, level)

	cat, err := loadCatalog(cfg, logger)
	if err != nil {
		return nil, err
	}

	var runner domain.CommandRunner
	if opts.JSON || opts.Quiet {
		runner = adapterplatform.NewQuietCommandRunner(opts.Verbose, opts.DryRun, logger)
	} else {
		runner = adapterplatform.NewCommandRunner(opts.Verbose, opts.DryRun, logger)
	}

	files := adapterplatform.NewFileManager(logger)

	netOpts := network.Options{
		UserAgent:       cfg.UserAgent,
		APITimeout:      cfg.APITimeout,
		DownloadTimeout: cfg.DownloadTimeout,
		Runner:          runner,
		Logger:          logger,
	}

	if !opts.JSON && !opts.Quiet && isTerminal(stderr) {
		netOpts.Progress = stderr
	}

	client := network.NewClient(netOpts)

	apt := ubuntu.NewAPT(ubuntu.APTOptions{
		Runner:  runner,
		Network: client,
		Files:   files,
		TempDir: cfg.DownloadDir(),
		Logger:  logger,
	})

	res := resolver.New(resolver.Options{
		Cache:          resolver.NewFileCache(cfg.VersionCacheDir(), cfg.CacheTTL),
		Network:        client,
		PackageManager: apt,
		Logger:         logger,
		GitHubToken:    cfg.GitHubToken,
		APITimeout:     cfg.APITimeout,
	})

	store, err := ledger.Open(ctx, cfg.LedgerPath())
	if err != nil {
		return nil, err
	}

	system := adapterplatform.NewSystemDetector(runner, files)
	flatpak := ubuntu.NewFlatpak(runner)
	snap := ubuntu.NewSnap(runner)

	prompter := opts.Prompter
	if prompter == nil {
		prompter = platform.NewConsolePrompter(opts.Yes)
	}

	registry, err := installer.NewRegistry(installer.Deps{
		Resolver: res,
		Ledger:   store,
		Network:  client,
		Packages: apt,
		Runner:   runner,
		Files:    files,
		Prompter: prompter,
		System:   system,
		AppImage: appimage.New(appimage.Options{
			OptDir:          cfg.OptDir,
			ApplicationsDir: cfg.ApplicationsDir,
			IconsDir:        cfg.IconsDir,
			Runner:          runner,
			Files:           files,
			Logger:          logger,
		}),
		Flatpak:         flatpak,
		Snap:            snap,
		Logger:          logger,
		DownloadDir:     cfg.DownloadDir(),
		BinDir:          cfg.BinDir,
		ApplicationsDir: cfg.ApplicationsDir,
		InstallRoots:    []string{cfg.OptDir, "/usr/local"},
		DryRun:          opts.DryRun,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	detector := detect.New(detect.Options{
		Ledger:   store,
		Runner:   runner,
		Packages: apt,
		Flatpak:  flatpak,
		Snap:     snap,
		Resolver: res,
		Files:    files,
		Logger:   logger,
	})

	return &Env{
		Config:   cfg,
		Logger:   logger,
		Output:   opts.Output,
		Catalog:  cat,
		Ledger:   store,
		Resolver: res,
		Detector: detector,
		Registry: registry,
		Pins:     versions.NewPinManager(cfg.PinsPath()),
		System:   system,
		dryRun:   opts.DryRun,
		verbose:  opts.Verbose,
		euid:     os.Geteuid,
	}, nil
}

func loadCatalog(cfg *config.Config, logger logging.Logger) (*domain.Catalog, error) {
	if cfg.Catalog == "" {
		return catalog.Default(logger)
	}

	cat, err := catalog.Load(cfg.Catalog, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", cfg.Catalog, err)
	}

	return cat, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)

	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec
}

// Close releases the ledger.
func (e *Env) Close() error {
	if e.Ledger == nil {
		return nil
	}

	return e.Ledger.Close()
}

// DryRun reports whether commands only log what they would do.
func (e *Env) DryRun() bool { return e.dryRun }

// RequireRoot fails unless the process runs as root or in dry-run mode.
func (e *Env) RequireRoot() error {
	if e.dryRun || e.euid() == 0 {
		return nil
	}

	return fmt.Errorf("%w: run with sudo or use --dry-run", domain.ErrPermissionDenied)
}

// InstallService returns the install use case.
func (e *Env) InstallService() *application.InstallService {
	svc := application.NewInstallService(e.Catalog, e.Registry, e.Output, e.Logger)
	svc.SetVerbose(e.verbose)

	return svc
}

// UninstallService returns the removal use case.
func (e *Env) UninstallService() *application.UninstallService {
	svc := application.NewUninstallService(e.Catalog, e.Registry, e.Output, e.Logger)
	svc.SetVerbose(e.verbose)

	return svc
}

// UpgradeService returns the upgrade use case.
func (e *Env) UpgradeService() *application.UpgradeService {
	svc := application.NewUpgradeService(e.Catalog, e.Registry, e.Detector, e.Pins, e.Output, e.Logger)
	svc.SetVerbose(e.verbose)

	return svc
}

// StatusService returns the detection use case.
func (e *Env) StatusService() *application.StatusService {
	return application.NewStatusService(e.Catalog, e.Detector)
}
