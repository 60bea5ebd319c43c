// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	appenv "github.com/bradsec/debapps/internal/app"
	"github.com/bradsec/debapps/internal/domain"
	"github.com/urfave/cli/v3"
)

func (app *CLI) createListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "Show the application catalog",
		ArgsUsage: "[category]",
		Action:    app.withEnv(app.runList),
	}
}

func (app *CLI) runList(ctx context.Context, cmd *cli.Command, env *appenv.Env) error {
	records, err := env.Ledger.List(ctx)
	if err != nil {
		return err
	}

	installed := make(map[string]string, len(records))
	for _, rec := range records {
		installed[rec.AppID] = rec.Version
	}

	filter := cmd.Args().First()

	var (
		entries []listEntry
		found   bool
	)

	for _, cat := range env.Catalog.Categories {
		if filter != "" && cat.Name != filter {
			continue
		}

		found = true

		for _, a := range cat.Apps {
			version, ok := installed[a.ID]
			entries = append(entries, listEntry{
				ID:          a.ID,
				Name:        a.Name,
				Category:    cat.Name,
				Method:      a.Method,
				Description: a.Description,
				Installed:   ok,
				Version:     version,
			})
		}
	}

	if !found && filter != "" {
		return &domain.ConfigError{AppID: filter, Field: "category", Err: domain.ErrAppNotFound}
	}

	if app.json {
		return app.output.Success("", entries)
	}

	if app.plain {
		for _, e := range entries {
			line := e.ID
			if e.Installed {
				line += ":installed"
			}

			_, _ = fmt.Fprintln(app.stdout, line)
		}

		return nil
	}

	for _, group := range groupByCategory(entries) {
		_ = app.output.Info(headerStyle().Render(categoryTitle(group.name)))
		_ = app.output.Table([]string{"", "ID", "NAME", "METHOD", "DESCRIPTION"}, listRows(group.entries))
		_ = app.output.Info("")
	}

	_ = app.output.Info(fmt.Sprintf("%d applications, %d installed", len(entries), countInstalled(entries)))

	return nil
}

func (app *CLI) createStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show installed applications and available upgrades",
		ArgsUsage: "[app-id...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "all",
				Aliases: []string{"a"},
				Usage:   "include applications that are not installed",
			},
		},
		Action: app.withEnv(app.runStatus),
	}
}

func (app *CLI) runStatus(ctx context.Context, cmd *cli.Command, env *appenv.Env) error {
	svc := env.StatusService()

	var result *domain.StatusResult

	if ids := cmd.Args().Slice(); len(ids) > 0 {
		result = &domain.StatusResult{Timestamp: time.Now()}

		for _, id := range ids {
			_, det, err := svc.App(ctx, id)
			if err != nil {
				return err
			}

			if det.Installed {
				result.Installed++
			}

			if det.Upgradeable {
				result.Upgrades++
			}

			result.Apps = append(result.Apps, det)
		}
	} else {
		result = svc.Status(ctx, cmd.Bool("all"))
	}

	if app.json {
		return app.output.Success("", result)
	}

	if app.plain {
		for _, det := range result.Apps {
			_, _ = fmt.Fprintf(app.stdout, "%s:%s\n", det.AppID, stateLabel(det))
		}

		return nil
	}

	if len(result.Apps) == 0 {
		_ = app.output.Info("No applications installed. Run 'debapps list' to see the catalog.")
		return nil
	}

	_ = app.output.Table([]string{"", "APP", "VERSION", "LATEST", "METHOD", "FOUND BY"}, statusRows(env.Catalog, result.Apps))
	_ = app.output.Info("")
	_ = app.output.Info(statusSummary(result))

	return nil
}

func (app *CLI) createInstallCommand() *cli.Command {
	return &cli.Command{
		Name:      "install",
		Usage:     "Install applications",
		ArgsUsage: "<app-id>...",
		Action: app.withEnv(func(ctx context.Context, cmd *cli.Command, env *appenv.Env) error {
			return app.runBatch(ctx, cmd, env, "installed", env.InstallService().Install)
		}),
	}
}

func (app *CLI) createRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Aliases:   []string{"uninstall"},
		Usage:     "Remove applications and everything they installed",
		ArgsUsage: "<app-id>...",
		Action: app.withEnv(func(ctx context.Context, cmd *cli.Command, env *appenv.Env) error {
			return app.runBatch(ctx, cmd, env, "removed", env.UninstallService().Remove)
		}),
	}
}

func (app *CLI) createReinstallCommand() *cli.Command {
	return &cli.Command{
		Name:      "reinstall",
		Usage:     "Remove and install applications again",
		ArgsUsage: "<app-id>...",
		Action: app.withEnv(func(ctx context.Context, cmd *cli.Command, env *appenv.Env) error {
			return app.runBatch(ctx, cmd, env, "reinstalled", env.InstallService().Reinstall)
		}),
	}
}

func (app *CLI) createUpgradeCommand() *cli.Command {
	return &cli.Command{
		Name:      "upgrade",
		Aliases:   []string{"update"},
		Usage:     "Upgrade installed applications to the latest version",
		ArgsUsage: "[app-id...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "all",
				Aliases: []string{"a"},
				Usage:   "upgrade every installed application with a newer version",
			},
		},
		Action: app.withEnv(app.runUpgrade),
	}
}

func (app *CLI) runUpgrade(ctx context.Context, cmd *cli.Command, env *appenv.Env) error {
	svc := env.UpgradeService()

	if !cmd.Bool("all") {
		return app.runBatch(ctx, cmd, env, "upgraded", svc.Upgrade)
	}

	if cmd.Args().Present() {
		return fmt.Errorf("%w: --all takes no application ids", ErrTooManyArgs)
	}

	if err := env.RequireRoot(); err != nil {
		return err
	}

	result, err := svc.UpgradeAll(ctx)
	app.printBatch(result, "upgraded")

	return err
}

type batchFunc func(ctx context.Context, ids []string) (*domain.BatchResult, error)

func (app *CLI) runBatch(ctx context.Context, cmd *cli.Command, env *appenv.Env, label string, run batchFunc) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: usage: debapps %s %s", ErrNoAppsSpecified, cmd.Name, cmd.ArgsUsage)
	}

	if err := env.RequireRoot(); err != nil {
		return err
	}

	result, err := run(ctx, ids)
	app.printBatch(result, label)

	return err
}

func (app *CLI) printBatch(result *domain.BatchResult, label string) {
	if result == nil {
		return
	}

	if app.json {
		_ = app.output.Success("", result)
		return
	}

	if len(result.Succeeded)+len(result.Failed)+len(result.Skipped) > 0 {
		_ = app.output.Info(batchSummary(result, label))
	}
}

func (app *CLI) createResolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Show the latest version and download URL of applications",
		ArgsUsage: "<app-id>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "bypass the version cache",
			},
		},
		Action: app.withEnv(app.runResolve),
	}
}

type resolveEntry struct {
	AppID string `json:"app_id"`
	domain.Resolution
	Error string `json:"error,omitempty"`
}

func (app *CLI) runResolve(ctx context.Context, cmd *cli.Command, env *appenv.Env) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: usage: debapps resolve <app-id>...", ErrNoAppsSpecified)
	}

	var (
		entries []resolveEntry
		errs    []error
	)

	for _, id := range ids {
		entry := resolveEntry{AppID: id}

		a, err := env.Catalog.Get(id)
		if err == nil {
			if cmd.Bool("refresh") {
				entry.Resolution, err = env.Resolver.Refresh(ctx, a)
			} else {
				entry.Resolution, err = env.Resolver.Resolve(ctx, a)
			}
		}

		if err != nil {
			entry.Error = err.Error()
			errs = append(errs, err)
			_ = app.output.Error(domain.FormatErrorMessage(err, "resolve", id, app.verbose))
		}

		entries = append(entries, entry)
	}

	if app.json {
		_ = app.output.Success("", entries)
		return errors.Join(errs...)
	}

	rows := make([][]string, 0, len(entries))

	for _, e := range entries {
		if e.Error != "" {
			continue
		}

		rows = append(rows, []string{e.AppID, e.Version, e.DownloadURL})
	}

	if len(rows) > 0 {
		_ = app.output.Table([]string{"APP", "VERSION", "SOURCE"}, rows)
	}

	return errors.Join(errs...)
}

func (app *CLI) createInfoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Aliases:   []string{"show"},
		Usage:     "Describe an application and its installation state",
		ArgsUsage: "<app-id>",
		Action:    app.withEnv(app.runInfo),
	}
}

func (app *CLI) runInfo(ctx context.Context, cmd *cli.Command, env *appenv.Env) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("%w: usage: debapps info <app-id>", ErrNoAppsSpecified)
	}

	a, det, err := env.StatusService().App(ctx, cmd.Args().First())
	if err != nil {
		return err
	}

	rec, err := env.Ledger.Get(ctx, a.ID)
	if err != nil {
		return err
	}

	var files []domain.InstalledFile
	if rec != nil {
		if files, err = env.Ledger.ListFiles(ctx, a.ID); err != nil {
			return err
		}
	}

	if app.json {
		return app.output.Success("", newInfoView(a, det, rec, files))
	}

	doc := infoMarkdown(a, det, rec, files)

	if app.plain || app.quiet {
		_, _ = fmt.Fprint(app.stdout, doc)
		return nil
	}

	rendered, err := renderMarkdown(doc)
	if err != nil {
		env.Logger.Debug("markdown rendering failed", "err", err)

		rendered = doc
	}

	_, _ = fmt.Fprint(app.stdout, rendered)

	return nil
}

func (app *CLI) createCacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the version cache",
		Commands: []*cli.Command{
			{
				Name:   "info",
				Usage:  "List cached versions and their age",
				Action: app.withEnv(app.runCacheInfo),
			},
			{
				Name:   "clean",
				Usage:  "Remove every cached version",
				Action: app.withEnv(app.runCacheClean),
			},
		},
	}
}

func (app *CLI) runCacheInfo(_ context.Context, _ *cli.Command, env *appenv.Env) error {
	entries, err := env.Resolver.Cache().Entries()
	if err != nil {
		return err
	}

	if app.json {
		return app.output.Success("", entries)
	}

	if len(entries) == 0 {
		_ = app.output.Info("The version cache is empty")
		return nil
	}

	_ = app.output.Table([]string{"APP", "VERSION", "AGE", "STATE"}, cacheRows(entries))

	return nil
}

func (app *CLI) runCacheClean(_ context.Context, _ *cli.Command, env *appenv.Env) error {
	removed, err := env.Resolver.Cache().Clean()
	if err != nil {
		return err
	}

	return app.output.Success(fmt.Sprintf("Removed %d cached versions", removed), map[string]int{"removed": removed})
}

func (app *CLI) createPinCommand() *cli.Command {
	return &cli.Command{
		Name:      "pin",
		Usage:     "Hold an application at a version during upgrade --all",
		ArgsUsage: "<app-id> [version]",
		Action:    app.withEnv(app.runPin),
	}
}

func (app *CLI) runPin(ctx context.Context, cmd *cli.Command, env *appenv.Env) error {
	args := cmd.Args()

	switch {
	case args.Len() == 0:
		return fmt.Errorf("%w: usage: debapps pin <app-id> [version]", ErrNoAppsSpecified)
	case args.Len() > 2:
		return fmt.Errorf("%w: usage: debapps pin <app-id> [version]", ErrTooManyArgs)
	}

	a, err := env.Catalog.Get(args.Get(0))
	if err != nil {
		return err
	}

	version := args.Get(1)
	if version == "" {
		det := env.Detector.Detect(ctx, a)
		if !det.Installed {
			return fmt.Errorf("%w: %s; give a version to pin", domain.ErrNotInstalled, a.ID)
		}

		version = det.Version
	}

	if err := env.Pins.Pin(a.ID, version); err != nil {
		return err
	}

	return app.output.Success(fmt.Sprintf("Pinned %s at %s", a.Name, version), map[string]string{"app_id": a.ID, "version": version})
}

func (app *CLI) createUnpinCommand() *cli.Command {
	return &cli.Command{
		Name:      "unpin",
		Usage:     "Let upgrade --all move an application again",
		ArgsUsage: "<app-id>",
		Action: app.withEnv(func(_ context.Context, cmd *cli.Command, env *appenv.Env) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("%w: usage: debapps unpin <app-id>", ErrNoAppsSpecified)
			}

			if err := env.Pins.Unpin(id); err != nil {
				return err
			}

			return app.output.Success("Unpinned "+id, map[string]string{"app_id": id})
		}),
	}
}

func (app *CLI) createPinsCommand() *cli.Command {
	return &cli.Command{
		Name:  "pins",
		Usage: "List pinned applications",
		Action: app.withEnv(func(_ context.Context, _ *cli.Command, env *appenv.Env) error {
			ids, pins, err := env.Pins.All()
			if err != nil {
				return err
			}

			if app.json {
				return app.output.Success("", pins)
			}

			if len(ids) == 0 {
				_ = app.output.Info("No applications are pinned")
				return nil
			}

			rows := make([][]string, 0, len(ids))
			for _, id := range ids {
				rows = append(rows, []string{id, pins[id]})
			}

			return app.output.Table([]string{"APP", "PINNED AT"}, rows)
		}),
	}
}

func (app *CLI) createMenuCommand() *cli.Command {
	return &cli.Command{
		Name:   "menu",
		Usage:  "Choose applications to install or remove interactively",
		Action: app.withEnv(app.runMenu),
	}
}

func (app *CLI) createVersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(_ context.Context, _ *cli.Command) error {
			if app.json {
				return app.output.Success("", map[string]string{"version": Version})
			}

			_, _ = fmt.Fprintln(app.stdout, Version)

			return nil
		},
	}
}
