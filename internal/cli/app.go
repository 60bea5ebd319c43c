// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package cli provides the debapps command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	cliAdapter "github.com/bradsec/debapps/internal/adapters/cli"
	appenv "github.com/bradsec/debapps/internal/app"
	"github.com/bradsec/debapps/internal/application"
	"github.com/bradsec/debapps/internal/console"
	"github.com/bradsec/debapps/internal/domain"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Exit codes follow standard Unix conventions for better scripting support.
// Range 0-125 are safe to use (126+ have special meaning in shells).
const (
	// Standard Unix exit codes (0-10).
	ExitSuccess         = 0 // Operation completed successfully
	ExitGeneralError    = 1 // Generic failure (catch-all)
	ExitUsageError      = 2 // Invalid command line usage
	ExitConfigError     = 3 // Configuration or catalog error
	ExitPermissionError = 4 // Permission denied
	ExitNotFoundError   = 5 // Application not in the catalog

	// Network and system errors (10-19).
	ExitDependencyError = 10 // Missing dependency
	ExitNetworkError    = 11 // Network, resolution or download failed
	ExitSystemError     = 12 // System call failed
	ExitTimeoutError    = 13 // Operation timed out
	ExitInterruptError  = 14 // User interrupted (Ctrl+C)

	// Application-specific errors (20-29).
	ExitAppError = 22 // App installation/removal failed

	// CLI flags.
	HelpFlag = "--help"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev" //nolint:gochecknoglobals

var (
	// ErrNoAppsSpecified is returned when a lifecycle command gets no ids.
	ErrNoAppsSpecified = errors.New("no applications specified")
	// ErrTooManyArgs is returned when a command gets more arguments than it takes.
	ErrTooManyArgs = errors.New("too many arguments")
	// ErrNotInteractive is returned when the menu is requested without a terminal.
	ErrNotInteractive = errors.New("interactive menu requires a terminal")
)

// EnvFactory builds the runtime environment for one command.
type EnvFactory func(ctx context.Context, opts appenv.Options) (*appenv.Env, error)

// CLI wires global flags, the command tree and the environment factory.
type CLI struct {
	app         *cli.Command
	verbose     bool
	json        bool
	quiet       bool
	plain       bool
	dryRun      bool
	yes         bool
	color       string // "auto", "always", "never"
	configPath  string
	catalogPath string
	logLevel    string

	stdout   io.Writer
	stderr   io.Writer
	output   domain.OutputPort
	newEnv   EnvFactory
	prompter domain.Prompter
	isTTY    func() bool
}

// NewCLI creates the command tree on the process's standard streams.
func NewCLI() *CLI {
	return newCLI(os.Stdout, os.Stderr, appenv.New)
}

func newCLI(stdout, stderr io.Writer, factory EnvFactory) *CLI {
	app := &CLI{
		stdout: stdout,
		stderr: stderr,
		newEnv: factory,
		isTTY: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec
		},
	}

	app.app = &cli.Command{
		Name:    "debapps",
		Usage:   "Install and manage desktop applications on Debian and Ubuntu",
		Version: Version,
		Suggest: true,
		Writer:  stdout,
		Description: `Installs desktop applications that are not in the distribution
archive: AppImages, vendor APT repositories, .deb downloads, tarballs,
Flatpaks and Snaps. Every install is recorded so it can be upgraded and
removed cleanly.

ESSENTIAL COMMANDS:
  list                      Show the catalog
  status                    Show what is installed and what can be upgraded
  install <app>...          Install applications
  upgrade --all             Upgrade everything that is out of date
  remove <app>...           Remove applications

QUICK START:
  debapps list
  sudo debapps install obsidian signal
  debapps status`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "verbose",
				Usage:       "show debug logs and command output",
				Aliases:     []string{"v"},
				Destination: &app.verbose,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output structured JSON results",
				Aliases:     []string{"j"},
				Destination: &app.json,
			},
			&cli.BoolFlag{
				Name:        "quiet",
				Usage:       "suppress non-essential output",
				Aliases:     []string{"q"},
				Destination: &app.quiet,
			},
			&cli.BoolFlag{
				Name:        "plain",
				Usage:       "output plain text without formatting for scripts",
				Destination: &app.plain,
			},
			&cli.StringFlag{
				Name:        "color",
				Usage:       "color output mode: auto, always, never",
				Value:       "auto",
				Destination: &app.color,
			},
			&cli.BoolFlag{
				Name:        "yes",
				Aliases:     []string{"y"},
				Usage:       "automatically answer yes to all prompts",
				Destination: &app.yes,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Aliases:     []string{"n"},
				Usage:       "resolve versions and log actions without changing the system",
				Destination: &app.dryRun,
			},
			&cli.StringFlag{
				Name:        "config",
				Usage:       "path to the configuration file (default $DEBAPPS_CONFIG or ~/.config/debapps/config.toml)",
				Destination: &app.configPath,
			},
			&cli.StringFlag{
				Name:        "catalog",
				Usage:       "path to a catalog YAML file replacing the built-in one",
				Destination: &app.catalogPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level: debug, info, warn, error",
				Destination: &app.logLevel,
			},
		},
		Before:          app.initConfig,
		Action:          app.defaultAction,
		Commands:        app.createAllCommands(),
		CommandNotFound: app.commandNotFound,
	}

	return app
}

// Run executes the CLI application.
func (app *CLI) Run(ctx context.Context, args []string) error {
	return app.app.Run(ctx, args)
}

func (app *CLI) createAllCommands() []*cli.Command {
	return []*cli.Command{
		app.createListCommand(),
		app.createStatusCommand(),
		app.createInstallCommand(),
		app.createRemoveCommand(),
		app.createReinstallCommand(),
		app.createUpgradeCommand(),
		app.createResolveCommand(),
		app.createInfoCommand(),
		app.createCacheCommand(),
		app.createPinCommand(),
		app.createUnpinCommand(),
		app.createPinsCommand(),
		app.createMenuCommand(),
		app.createVersionCommand(),
	}
}

// initConfig validates global flags and configures output.
func (app *CLI) initConfig(ctx context.Context, _ *cli.Command) (context.Context, error) {
	if app.json && app.plain {
		return ctx, domain.NewExitError(ExitUsageError, "cannot use both --json and --plain flags simultaneously", nil)
	}

	switch app.color {
	case "auto", "always", "never":
	default:
		return ctx, domain.NewExitError(ExitUsageError, "invalid --color value: must be auto, always, or never", nil)
	}

	switch app.color {
	case "never":
		_ = os.Setenv("NO_COLOR", "1")
	case "always":
		_ = os.Unsetenv("NO_COLOR")
	}

	console.DefaultOutput.SetMode(app.verbose, app.json, app.plain)
	console.DefaultOutput.SetWriters(app.stdout, app.stderr)

	format := cliAdapter.TextFormat
	if app.json {
		format = cliAdapter.JSONFormat
	}

	app.output = cliAdapter.NewOutputAdapterWithWriter(app.stdout, format, app.quiet)

	return ctx, nil
}

func (app *CLI) envOptions() appenv.Options {
	return appenv.Options{
		ConfigPath: app.configPath,
		Catalog:    app.catalogPath,
		LogLevel:   app.logLevel,
		Verbose:    app.verbose,
		DryRun:     app.dryRun,
		Yes:        app.yes,
		JSON:       app.json,
		Quiet:      app.quiet,
		Output:     app.output,
		Stderr:     app.stderr,
		Prompter:   app.prompter,
	}
}

type envAction func(ctx context.Context, cmd *cli.Command, env *appenv.Env) error

// withEnv builds the environment, runs action and maps its error to an
// exit code. The ledger is closed when the action returns.
func (app *CLI) withEnv(action envAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		env, err := app.newEnv(ctx, app.envOptions())
		if err != nil {
			return toExitError(err)
		}

		defer func() {
			if closeErr := env.Close(); closeErr != nil {
				env.Logger.Warn("failed to close ledger", "err", closeErr)
			}
		}()

		return toExitError(action(ctx, cmd, env))
	}
}

// toExitError attaches the exit code matching the error kind.
func toExitError(err error) error {
	if err == nil {
		return nil
	}

	var exitErr *domain.ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	return domain.NewExitError(exitCode(err), err.Error(), err)
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, domain.ErrCancelled):
		return ExitInterruptError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.Is(err, domain.ErrPermissionDenied):
		return ExitPermissionError
	case errors.Is(err, domain.ErrAppNotFound):
		return ExitNotFoundError
	case errors.Is(err, domain.ErrConfig):
		return ExitConfigError
	case errors.Is(err, domain.ErrDependencyMissing):
		return ExitDependencyError
	case errors.Is(err, domain.ErrDownload),
		errors.Is(err, domain.ErrResolution),
		errors.Is(err, domain.ErrNetworkFailure):
		return ExitNetworkError
	case errors.Is(err, application.ErrOperationFailed),
		errors.Is(err, domain.ErrInstallVerification),
		errors.Is(err, domain.ErrRemovalSafety):
		return ExitAppError
	case errors.Is(err, ErrNoAppsSpecified),
		errors.Is(err, ErrTooManyArgs),
		errors.Is(err, application.ErrNothingSelected):
		return ExitUsageError
	default:
		return ExitGeneralError
	}
}

// defaultAction opens the menu on a terminal and prints help otherwise.
func (app *CLI) defaultAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Present() || app.json || app.plain || !app.isTTY() {
		app.showConciseHelp()

		return nil
	}

	return app.withEnv(app.runMenu)(ctx, cmd)
}

// commandNotFound handles unknown commands.
func (app *CLI) commandNotFound(_ context.Context, _ *cli.Command, command string) {
	console.DefaultOutput.Errorf("'%s' is not a command.", command)
	_, _ = fmt.Fprintf(app.stderr, "\nRun 'debapps --help' to see available commands.\n")

	os.Exit(ExitNotFoundError)
}

// showConciseHelp displays user-friendly help when no command is provided.
func (app *CLI) showConciseHelp() {
	if app.json {
		console.DefaultOutput.JSONResult("success", map[string]any{
			"name":    "debapps",
			"version": Version,
			"usage":   "debapps <command> [args...]",
			"help":    "use 'debapps --help' for complete documentation",
		})

		return
	}

	w := app.stdout

	_, _ = fmt.Fprintf(w, "debapps %s - desktop applications for Debian and Ubuntu\n\n", Version)

	_, _ = fmt.Fprintf(w, "%s\n", console.DefaultOutput.Header("ESSENTIAL COMMANDS"))
	_, _ = fmt.Fprintf(w, "  list              Show the catalog\n")
	_, _ = fmt.Fprintf(w, "  status            Show installed applications\n")
	_, _ = fmt.Fprintf(w, "  install <app>     Install applications\n")
	_, _ = fmt.Fprintf(w, "  upgrade --all     Upgrade everything out of date\n\n")

	_, _ = fmt.Fprintf(w, "%s\n", console.DefaultOutput.Header("GET STARTED"))
	_, _ = fmt.Fprintf(w, "  debapps list\n")
	_, _ = fmt.Fprintf(w, "  sudo debapps install obsidian\n\n")

	_, _ = fmt.Fprintf(w, "Complete help:       debapps --help\n")
	_, _ = fmt.Fprintf(w, "Command docs:        debapps <command> --help\n")
}

// App returns the root command.
func App() *cli.Command {
	return NewCLI().app
}
