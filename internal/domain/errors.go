// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors.
var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNetworkFailure    = errors.New("network failure")
	ErrNotInstalled      = errors.New("not installed")
	ErrDependencyMissing = errors.New("dependency missing")
	ErrCancelled         = errors.New("cancelled by user")
)

// Error kinds. Every typed error below unwraps to one of these.
var (
	// ErrConfig marks a missing or invalid catalog entry or field.
	ErrConfig = errors.New("configuration error")
	// ErrResolution marks a failed version lookup.
	ErrResolution = errors.New("version resolution failed")
	// ErrDownload marks an exhausted download fallback chain.
	ErrDownload = errors.New("download failed")
	// ErrInstallVerification marks an install the post-install probe could not confirm.
	ErrInstallVerification = errors.New("install verification failed")
	// ErrRemovalSafety marks a removal refused because its inputs are untrusted.
	ErrRemovalSafety = errors.New("removal refused")
)

// ConfigError reports a problem with a catalog entry.
type ConfigError struct {
	AppID string
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: field %s: %v", ErrConfig, e.AppID, e.Field, e.Err)
	}

	return fmt.Sprintf("%s: %s: %v", ErrConfig, e.AppID, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *ConfigError) Unwrap() []error { return []error{ErrConfig, e.Err} }

// ResolutionError reports why no version could be determined.
type ResolutionError struct {
	AppID  string
	Source SourceType
	Reason string
	Err    error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("%s for %s (%s): %s", ErrResolution, e.AppID, e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap exposes both the kind and the cause.
func (e *ResolutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrResolution}
	}

	return []error{ErrResolution, e.Err}
}

// DownloadError reports every transport attempt that failed.
type DownloadError struct {
	URL      string
	Attempts []error
}

func (e *DownloadError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Error())
	}

	return fmt.Sprintf("%s: %s: %s", ErrDownload, e.URL, strings.Join(parts, "; "))
}

// Unwrap exposes the kind and every attempt.
func (e *DownloadError) Unwrap() []error {
	return append([]error{ErrDownload}, e.Attempts...)
}

// VerificationError reports an install that could not be confirmed.
type VerificationError struct {
	AppID string
	Probe string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: %s not found by %s", ErrInstallVerification, e.AppID, e.Probe)
}

// Unwrap returns the kind.
func (e *VerificationError) Unwrap() error { return ErrInstallVerification }

// RemovalSafetyError reports a manifest or path that removal will not trust.
type RemovalSafetyError struct {
	Path   string
	Reason string
}

func (e *RemovalSafetyError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrRemovalSafety, e.Path, e.Reason)
}

// Unwrap returns the kind.
func (e *RemovalSafetyError) Unwrap() error { return ErrRemovalSafety }

// ExitError carries a process exit code up to main.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

// NewExitError creates an ExitError with the specified code and message.
func NewExitError(code int, message string, err error) *ExitError {
	return &ExitError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// ErrorInfo provides user-friendly error information.
type ErrorInfo struct {
	Message     string   // User-friendly message
	Suggestions []string // Actionable suggestions
	ShowDetails bool     // Whether to show technical details
}

// getKindInfo maps typed error kinds before falling back to text matching.
func getKindInfo(err error, verbose bool) (ErrorInfo, bool) {
	kinds := []struct {
		kind error
		info ErrorInfo
	}{
		{ErrConfig, ErrorInfo{
			Message:     "Catalog entry is missing or invalid",
			Suggestions: []string{"Check the id with 'debapps list'", "Validate your catalog file"},
		}},
		{ErrResolution, ErrorInfo{
			Message:     "Could not determine the latest version",
			Suggestions: []string{"The vendor page may have changed; try again later", "Clear the version cache: debapps cache clean"},
		}},
		{ErrDownload, ErrorInfo{
			Message:     "Download failed",
			Suggestions: []string{"Check your internet connection", "Check proxy settings (http_proxy/https_proxy)"},
		}},
		{ErrInstallVerification, ErrorInfo{
			Message:     "Installation could not be verified",
			Suggestions: []string{"Run: sudo apt-get --fix-broken install", "Re-run with --verbose for details"},
		}},
		{ErrRemovalSafety, ErrorInfo{
			Message:     "Removal refused for safety",
			Suggestions: []string{"Inspect the install.log manifest under /opt/<app>/"},
		}},
		{ErrCancelled, ErrorInfo{
			Message: "Cancelled",
		}},
	}

	for _, k := range kinds {
		if errors.Is(err, k.kind) {
			info := k.info
			info.ShowDetails = verbose

			return info, true
		}
	}

	return ErrorInfo{}, false
}

// getErrorMatchers returns error patterns and their corresponding info.
func getErrorMatchers() []struct {
	patterns []string
	getInfo  func(string, bool) ErrorInfo
} {
	return []struct {
		patterns []string
		getInfo  func(string, bool) ErrorInfo
	}{
		{
			patterns: []string{"permission", "denied", "sudo", "root"},
			getInfo: func(_ string, verbose bool) ErrorInfo {
				return ErrorInfo{
					Message:     "Permission denied",
					Suggestions: []string{"Run with sudo", "Check that your user has admin privileges"},
					ShowDetails: verbose,
				}
			},
		},
		{
			patterns: []string{"network", "connection", "timeout", "no such host"},
			getInfo: func(_ string, verbose bool) ErrorInfo {
				return ErrorInfo{
					Message:     "Network connection failed",
					Suggestions: []string{"Check your internet connection", "Try again in a few moments"},
					ShowDetails: verbose,
				}
			},
		},
		{
			patterns: []string{"not found", "no such", "unable to locate"},
			getInfo: func(app string, verbose bool) ErrorInfo {
				if app != "" {
					return ErrorInfo{
						Message:     "'" + app + "' not found",
						Suggestions: []string{"Check the application id spelling", "Update package lists: sudo apt update"},
						ShowDetails: verbose,
					}
				}

				return ErrorInfo{
					Message:     "Not found",
					Suggestions: []string{"Verify the application id", "Update your package lists"},
					ShowDetails: verbose,
				}
			},
		},
		{
			patterns: []string{"not installed", "is not installed"},
			getInfo: func(_ string, verbose bool) ErrorInfo {
				return ErrorInfo{
					Message:     "Not installed",
					Suggestions: []string{"Use 'debapps status' to see installed applications"},
					ShowDetails: verbose,
				}
			},
		},
		{
			patterns: []string{"dependency", "depends", "requires"},
			getInfo: func(_ string, verbose bool) ErrorInfo {
				return ErrorInfo{
					Message:     "Missing dependencies",
					Suggestions: []string{"Install required dependencies first", "Try: sudo apt-get --fix-broken install"},
					ShowDetails: verbose,
				}
			},
		},
	}
}

// GetErrorInfo analyzes an error and returns user-friendly information.
func GetErrorInfo(err error, appName string, verbose bool) ErrorInfo {
	if err == nil {
		return ErrorInfo{}
	}

	if info, ok := getKindInfo(err, verbose); ok {
		return info
	}

	errStr := strings.ToLower(err.Error())

	for _, matcher := range getErrorMatchers() {
		for _, pattern := range matcher.patterns {
			if strings.Contains(errStr, pattern) {
				return matcher.getInfo(appName, verbose)
			}
		}
	}

	// Generic error - show details in verbose mode
	return ErrorInfo{
		Message:     "Operation failed",
		Suggestions: []string{"Run with --verbose for more details"},
		ShowDetails: verbose,
	}
}

// FormatErrorMessage formats an error for display.
func FormatErrorMessage(err error, action, appName string, verbose bool) string {
	info := GetErrorInfo(err, appName, verbose)

	var result strings.Builder

	if appName != "" {
		result.WriteString("✗ Failed to ")
		result.WriteString(action)
		result.WriteString(" ")
		result.WriteString(appName)

		if info.Message != "" {
			result.WriteString(": ")
			result.WriteString(info.Message)
		}
	} else {
		result.WriteString("✗ ")
		result.WriteString(info.Message)
	}

	if info.ShowDetails && err != nil {
		result.WriteString("\n  Technical details: ")
		result.WriteString(err.Error())
	}

	if len(info.Suggestions) > 0 && !verbose {
		// In non-verbose mode, just show the first suggestion inline
		result.WriteString(" (")
		result.WriteString(info.Suggestions[0])
		result.WriteString(")")
	} else if len(info.Suggestions) > 0 && verbose {
		result.WriteString("\n  Suggestions:")

		for _, suggestion := range info.Suggestions {
			result.WriteString("\n    • ")
			result.WriteString(suggestion)
		}
	}

	return result.String()
}
