// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitErrorFormatting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		exitError       *domain.ExitError
		expectedCode    int
		expectedMessage string
	}{
		{
			name:            "with underlying error",
			exitError:       domain.NewExitError(1, "Operation failed", errors.New("permission denied")),
			expectedCode:    1,
			expectedMessage: "Operation failed: permission denied",
		},
		{
			name:            "without underlying error",
			exitError:       domain.NewExitError(2, "Invalid configuration", nil),
			expectedCode:    2,
			expectedMessage: "Invalid configuration",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expectedMessage, tc.exitError.Error())
			assert.Equal(t, tc.expectedCode, tc.exitError.Code)
		})
	}
}

func TestTypedErrorsUnwrapToKind(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"config", &domain.ConfigError{AppID: "x", Err: cause}, domain.ErrConfig},
		{"resolution", &domain.ResolutionError{AppID: "x", Source: domain.SourceSlackLatest, Reason: "no match", Err: cause}, domain.ErrResolution},
		{"download", &domain.DownloadError{URL: "https://e.x", Attempts: []error{cause}}, domain.ErrDownload},
		{"verification", &domain.VerificationError{AppID: "x", Probe: "dpkg"}, domain.ErrInstallVerification},
		{"removal safety", &domain.RemovalSafetyError{Path: "/etc/passwd", Reason: "outside /opt"}, domain.ErrRemovalSafety},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			wrapped := fmt.Errorf("install: %w", tc.err)
			assert.ErrorIs(t, wrapped, tc.kind)
		})
	}

	assert.ErrorIs(t, &domain.ResolutionError{Err: cause}, cause)
	assert.ErrorIs(t, &domain.DownloadError{Attempts: []error{cause}}, cause)

	var resErr *domain.ResolutionError
	require.ErrorAs(t, fmt.Errorf("wrap: %w", &domain.ResolutionError{AppID: "slack", Reason: "pattern"}), &resErr)
	assert.Equal(t, "slack", resErr.AppID)
}

func TestFormatErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		err           error
		verbose       bool
		shouldContain []string
	}{
		{
			name:          "resolution kind takes precedence over text",
			err:           &domain.ResolutionError{AppID: "tor", Reason: "not found"},
			shouldContain: []string{"Failed to install tor", "Could not determine the latest version"},
		},
		{
			name:          "permission text match",
			err:           errors.New("permission denied"),
			shouldContain: []string{"Permission denied", "(Run with sudo)"},
		},
		{
			name:          "verbose shows details and all suggestions",
			err:           &domain.DownloadError{URL: "https://e.x", Attempts: []error{errors.New("timeout")}},
			verbose:       true,
			shouldContain: []string{"Technical details", "Suggestions:", "proxy"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			msg := domain.FormatErrorMessage(tc.err, "install", "tor", tc.verbose)
			for _, want := range tc.shouldContain {
				assert.Contains(t, msg, want)
			}
		})
	}
}
