// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import "time"

// OutputPort defines the interface for presenting command results.
// This is a domain port that adapters implement for different output formats.
type OutputPort interface {
	// Success outputs a success message with optional structured data
	Success(message string, data interface{}) error

	// Error outputs an error message
	Error(message string) error

	// Info outputs an informational message
	Info(message string) error

	// Progress outputs progress information for long-running operations
	Progress(message string) error

	// Table outputs tabular data
	Table(headers []string, rows [][]string) error

	// IsQuiet returns true if output should be suppressed
	IsQuiet() bool
}

// InstallationResult is the outcome of a single lifecycle operation.
type InstallationResult struct {
	AppID    string        `json:"app_id"`
	Method   InstallMethod `json:"method"`
	Version  string        `json:"version,omitempty"`
	Location string        `json:"location,omitempty"`
	Success  bool          `json:"success"`
	Error    error         `json:"-"`
	Duration int64         `json:"duration_ms"`
	Warnings []string      `json:"warnings,omitempty"`
}

// BatchResult summarizes a lifecycle operation over several applications.
type BatchResult struct {
	Operation string        `json:"operation"`
	Succeeded []string      `json:"succeeded"`
	Failed    []string      `json:"failed,omitempty"`
	Skipped   []string      `json:"skipped,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// StatusResult is the detection state of the catalog.
type StatusResult struct {
	Apps      []DetectionResult `json:"apps"`
	Installed int               `json:"installed"`
	Upgrades  int               `json:"upgradeable"`
	Timestamp time.Time         `json:"timestamp"`
}
