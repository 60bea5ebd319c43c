// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package main provides the CLI entry point for debapps.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bradsec/debapps/internal/cli"
	"github.com/bradsec/debapps/internal/config"
	"github.com/bradsec/debapps/internal/console"
	"github.com/bradsec/debapps/internal/domain"
	"github.com/gofrs/flock"
)

func main() {
	os.Exit(run())
}

func lockPath() string {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		cfg = config.Default()
	}

	return cfg.LockPath()
}

func run() int {
	// one debapps at a time: installers share apt, /opt and the ledger
	path := lockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create lock directory: %v\n", err)

		return cli.ExitSystemError
	}

	lock := flock.New(path)

	locked, err := lock.TryLock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to acquire process lock: %v\n", err)

		return cli.ExitSystemError
	}

	if !locked {
		fmt.Fprintf(os.Stderr, "Another debapps instance is already running\n")

		return cli.ExitGeneralError
	}

	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			console.DefaultOutput.Warningf("failed to release process lock: %v", unlockErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewCLI().Run(ctx, os.Args); err != nil {
		exitErr := &domain.ExitError{}
		if errors.As(err, &exitErr) {
			console.DefaultOutput.ErrorResult(exitErr.Message, exitErr.Code)

			return exitErr.Code
		}

		// flag parsing errors from the cli library
		console.DefaultOutput.ErrorResult(err.Error(), cli.ExitUsageError)

		return cli.ExitUsageError
	}

	return cli.ExitSuccess
}
