// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package application holds the use cases behind each command.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/logging"
)

var (
	// ErrOperationFailed is returned when at least one application of a batch failed.
	ErrOperationFailed = errors.New("one or more operations failed")
	// ErrNothingSelected is returned when a batch names no applications.
	ErrNothingSelected = errors.New("no applications selected")
)

// InstallerRegistry hands out the installer for an application's method.
type InstallerRegistry interface {
	ForApp(app *domain.App) (domain.Installer, error)
}

// Detector reports the installation state of catalog applications.
type Detector interface {
	Detect(ctx context.Context, app *domain.App) domain.DetectionResult
	DetectAll(ctx context.Context, apps []*domain.App) []domain.DetectionResult
}

type operation func(ctx context.Context, inst domain.Installer, app *domain.App) (*domain.InstallationResult, error)

// batch runs op for every id in order. One failure never stops the rest.
type batch struct {
	catalog  *domain.Catalog
	registry InstallerRegistry
	output   domain.OutputPort
	logger   logging.Logger
	verbose  bool
}

func (b *batch) run(ctx context.Context, name, verb string, ids []string, op operation) (*domain.BatchResult, error) {
	start := time.Now()
	result := &domain.BatchResult{Operation: name, Timestamp: start}

	if len(ids) == 0 {
		return result, ErrNothingSelected
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			result.Skipped = append(result.Skipped, id)
			continue
		}

		app, err := b.catalog.Get(id)
		if err != nil {
			b.report(result, id, name, err)
			continue
		}

		inst, err := b.registry.ForApp(app)
		if err != nil {
			b.report(result, id, name, err)
			continue
		}

		_ = b.output.Progress(fmt.Sprintf("%s %s...", verb, app.Name))

		res, err := op(ctx, inst, app)
		if err != nil {
			b.report(result, id, name, err)
			continue
		}

		result.Succeeded = append(result.Succeeded, id)
		_ = b.output.Success(summary(name, app, res), res)
	}

	result.Duration = time.Since(start)

	if ctx.Err() != nil {
		return result, ctx.Err()
	}

	if len(result.Failed) > 0 {
		return result, fmt.Errorf("%w: %d of %d", ErrOperationFailed, len(result.Failed), len(ids))
	}

	return result, nil
}

func (b *batch) report(result *domain.BatchResult, id, action string, err error) {
	if errors.Is(err, domain.ErrCancelled) {
		result.Skipped = append(result.Skipped, id)
		_ = b.output.Info(fmt.Sprintf("Skipped %s", id))

		return
	}

	result.Failed = append(result.Failed, id)

	b.logger.Error(action+" failed", "app", id, "err", err)
	_ = b.output.Error(domain.FormatErrorMessage(err, action, id, b.verbose))
}

func summary(name string, app *domain.App, res *domain.InstallationResult) string {
	msg := fmt.Sprintf("%s: %s", name, app.Name)

	if res != nil && res.Version != "" {
		msg += " " + res.Version
	}

	return msg
}
