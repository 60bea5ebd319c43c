// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package cli

import (
	"context"
	"errors"
	"fmt"

	appenv "github.com/bradsec/debapps/internal/app"
	"github.com/bradsec/debapps/internal/domain"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"
)

// Menu actions.
const (
	menuInstall = "install"
	menuRemove  = "remove"
	menuUpgrade = "upgrade"
	menuStatus  = "status"
	menuQuit    = "quit"
)

const menuHeight = 15

func getTitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)
}

// menuOption is one selectable application.
type menuOption struct {
	label string
	id    string
}

// menuOptions lists catalog applications whose installed state matches want,
// labelled with their category.
func menuOptions(catalog *domain.Catalog, installed map[string]bool, want bool) []menuOption {
	var opts []menuOption

	for _, cat := range catalog.Categories {
		for _, a := range cat.Apps {
			if installed[a.ID] != want {
				continue
			}

			opts = append(opts, menuOption{
				label: fmt.Sprintf("%s  (%s)", a.Name, categoryTitle(cat.Name)),
				id:    a.ID,
			})
		}
	}

	return opts
}

func (app *CLI) runMenu(ctx context.Context, cmd *cli.Command, env *appenv.Env) error {
	if !app.isTTY() {
		return ErrNotInteractive
	}

	_, _ = fmt.Fprintln(app.stdout, getTitleStyle().Render(fmt.Sprintf("◈ debapps %s ◈", Version)))

	for {
		var choice string

		err := huh.NewSelect[string]().
			Title("What would you like to do?").
			Options(
				huh.NewOption("Install applications", menuInstall),
				huh.NewOption("Remove applications", menuRemove),
				huh.NewOption("Upgrade everything", menuUpgrade),
				huh.NewOption("Show status", menuStatus),
				huh.NewOption("Quit", menuQuit),
			).
			Value(&choice).
			Run()
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("menu failed: %w", err)
		}

		if choice == menuQuit {
			return nil
		}

		if err := app.handleMenuChoice(ctx, cmd, env, choice); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}

			// failures were already reported per application
			env.Logger.Debug("menu action failed", "action", choice, "err", err)
		}
	}
}

func (app *CLI) handleMenuChoice(ctx context.Context, cmd *cli.Command, env *appenv.Env, choice string) error {
	switch choice {
	case menuInstall, menuRemove:
		ids, err := app.selectApps(ctx, env, choice)
		if err != nil || len(ids) == 0 {
			return err
		}

		if err := env.RequireRoot(); err != nil {
			_ = app.output.Error(domain.FormatErrorMessage(err, choice, "applications", app.verbose))
			return err
		}

		var result *domain.BatchResult

		if choice == menuInstall {
			result, err = env.InstallService().Install(ctx, ids)
			app.printBatch(result, "installed")
		} else {
			result, err = env.UninstallService().Remove(ctx, ids)
			app.printBatch(result, "removed")
		}

		return err
	case menuUpgrade:
		if err := env.RequireRoot(); err != nil {
			_ = app.output.Error(domain.FormatErrorMessage(err, "upgrade", "applications", app.verbose))
			return err
		}

		result, err := env.UpgradeService().UpgradeAll(ctx)
		app.printBatch(result, "upgraded")

		return err
	case menuStatus:
		return app.runStatus(ctx, cmd, env)
	default:
		return nil
	}
}

func (app *CLI) selectApps(ctx context.Context, env *appenv.Env, action string) ([]string, error) {
	records, err := env.Ledger.List(ctx)
	if err != nil {
		return nil, err
	}

	installed := make(map[string]bool, len(records))
	for _, rec := range records {
		installed[rec.AppID] = true
	}

	opts := menuOptions(env.Catalog, installed, action == menuRemove)
	if len(opts) == 0 {
		if action == menuRemove {
			_ = app.output.Info("Nothing installed by debapps yet")
		} else {
			_ = app.output.Info("Everything in the catalog is already installed")
		}

		return nil, nil
	}

	choices := make([]huh.Option[string], 0, len(opts))
	for _, o := range opts {
		choices = append(choices, huh.NewOption(o.label, o.id))
	}

	title := "Select applications to install"
	if action == menuRemove {
		title = "Select applications to remove"
	}

	var selected []string

	err = huh.NewMultiSelect[string]().
		Title(title).
		Description("space to select, enter to confirm").
		Options(choices...).
		Height(menuHeight).
		Value(&selected).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("selection failed: %w", err)
	}

	return selected, nil
}
