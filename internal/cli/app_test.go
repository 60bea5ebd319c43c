// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	appenv "github.com/bradsec/debapps/internal/app"
	"github.com/bradsec/debapps/internal/application"
	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/ledger"
	"github.com/bradsec/debapps/internal/platform"
	"github.com/bradsec/debapps/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `schema_version: 1
categories:
  - name: productivity_tools
    apps:
      - id: notes-app
        name: Notes App
        description: Markdown knowledge base
        install_method: appimage
        source:
          type: github_release
          repo: example/notes-app
          asset_pattern: "Notes-{version}.AppImage"
        detection:
          desktop_files: [debapps-test-notes-app.desktop]
        gui: true
        notes: Sync is a paid add-on.
  - name: security
    apps:
      - id: vault-app
        name: Vault App
        description: Password manager
        install_method: flatpak
        source:
          type: apt_package
          package_name: debapps-test-vault-app
        detection:
          binaries: [debapps-test-vault-app]
`

type harness struct {
	cli     *CLI
	base    string
	cfgPath string
	stdout  bytes.Buffer
	stderr  bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{base: t.TempDir()}

	catalogPath := filepath.Join(h.base, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalog), 0o600))

	var cfg strings.Builder
	for key, dir := range map[string]string{
		"cache_dir":        "cache",
		"state_dir":        "state",
		"opt_dir":          "opt",
		"applications_dir": "applications",
		"icons_dir":        "icons",
		"bin_dir":          "bin",
	} {
		fmt.Fprintf(&cfg, "%s = %q\n", key, filepath.Join(h.base, dir))
	}

	fmt.Fprintf(&cfg, "catalog = %q\nlog_level = \"error\"\n", catalogPath)

	h.cfgPath = filepath.Join(h.base, "config.toml")
	require.NoError(t, os.WriteFile(h.cfgPath, []byte(cfg.String()), 0o600))

	h.cli = newCLI(&h.stdout, &h.stderr, appenv.New)
	h.cli.isTTY = func() bool { return false }
	h.cli.prompter = platform.NewReaderPrompter(true, strings.NewReader(""), &bytes.Buffer{})

	return h
}

func (h *harness) run(args ...string) error {
	h.stdout.Reset()
	h.stderr.Reset()

	return h.cli.Run(context.Background(), append([]string{"debapps", "--config", h.cfgPath}, args...))
}

func (h *harness) seedLedger(t *testing.T, rec *domain.Record) {
	t.Helper()

	store, err := ledger.Open(context.Background(), filepath.Join(h.base, "state", "ledger.db"))
	require.NoError(t, err)

	defer func() { _ = store.Close() }()

	require.NoError(t, store.Upsert(context.Background(), rec))
}

func (h *harness) seedCache(t *testing.T, appID, version string) {
	t.Helper()

	cache := resolver.NewFileCache(filepath.Join(h.base, "cache", "versions"), resolver.DefaultTTL)
	require.NoError(t, cache.Put(appID, domain.Resolution{
		Version:     version,
		DownloadURL: "https://example.com/Notes-" + version + ".AppImage",
		FetchedAt:   time.Now(),
	}))
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()

	var exitErr *domain.ExitError

	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, code, exitErr.Code, exitErr.Message)
}

func TestNewCLI(t *testing.T) {
	t.Parallel()

	cliApp := NewCLI()

	require.NotNil(t, cliApp)
	require.NotNil(t, cliApp.app)
	require.Equal(t, "debapps", cliApp.app.Name)
	require.NotEmpty(t, cliApp.app.Usage)
	require.NotEmpty(t, cliApp.app.Description)
	require.NotEmpty(t, cliApp.app.Commands)
}

func TestCLI_CreateAllCommands(t *testing.T) {
	t.Parallel()

	cliApp := NewCLI()

	commandNames := make(map[string]bool)
	for _, cmd := range cliApp.createAllCommands() {
		commandNames[cmd.Name] = true
	}

	expected := []string{
		"list", "status", "install", "remove", "reinstall", "upgrade",
		"resolve", "info", "cache", "pin", "unpin", "pins", "menu", "version",
	}
	for _, name := range expected {
		require.True(t, commandNames[name], "command %s should exist", name)
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"cancelled by signal", context.Canceled, ExitInterruptError},
		{"declined prompt", domain.ErrCancelled, ExitInterruptError},
		{"deadline", context.DeadlineExceeded, ExitTimeoutError},
		{"permission", fmt.Errorf("%w: run with sudo", domain.ErrPermissionDenied), ExitPermissionError},
		{"unknown app", &domain.ConfigError{AppID: "nope", Err: domain.ErrAppNotFound}, ExitNotFoundError},
		{"bad catalog field", &domain.ConfigError{AppID: "x", Field: "repo", Err: errors.New("empty")}, ExitConfigError},
		{"missing runtime", fmt.Errorf("flatpak: %w", domain.ErrDependencyMissing), ExitDependencyError},
		{"download", &domain.DownloadError{URL: "https://example.com/a"}, ExitNetworkError},
		{"resolution", &domain.ResolutionError{AppID: "a", Reason: "no asset"}, ExitNetworkError},
		{"batch failure", fmt.Errorf("%w: 1 of 2", application.ErrOperationFailed), ExitAppError},
		{"verification", &domain.VerificationError{AppID: "a", Probe: "dpkg"}, ExitAppError},
		{"no ids", ErrNoAppsSpecified, ExitUsageError},
		{"nothing selected", application.ErrNothingSelected, ExitUsageError},
		{"anything else", errors.New("boom"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestToExitErrorKeepsExistingCode(t *testing.T) {
	t.Parallel()

	assert.NoError(t, toExitError(nil))

	original := domain.NewExitError(ExitUsageError, "bad flag", nil)
	assert.Same(t, original, toExitError(original))

	wrapped := toExitError(fmt.Errorf("%w: 2 of 3", application.ErrOperationFailed))
	requireExitCode(t, wrapped, ExitAppError)
	assert.ErrorIs(t, wrapped, application.ErrOperationFailed)
}

// The commands below share console.DefaultOutput, so they do not run in parallel.

func TestGlobalFlagValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"json and plain conflict", []string{"--json", "--plain", "version"}},
		{"unknown color mode", []string{"--color", "sometimes", "version"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			requireExitCode(t, h.run(tt.args...), ExitUsageError)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("version"))
	assert.Equal(t, Version+"\n", h.stdout.String())

	require.NoError(t, h.run("--json", "version"))
	assert.JSONEq(t, `{"version":"`+Version+`"}`, h.stdout.String())
}

func TestDefaultActionShowsHelpWithoutTerminal(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run())
	assert.Contains(t, h.stdout.String(), "ESSENTIAL COMMANDS")
}

func TestListCommand(t *testing.T) {
	h := newHarness(t)
	h.seedLedger(t, &domain.Record{
		AppID:       "notes-app",
		AppName:     "Notes App",
		Method:      domain.MethodAppImage,
		Version:     "1.5.0",
		InstallDate: time.Now(),
	})

	require.NoError(t, h.run("--json", "list"))

	var entries []listEntry

	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "notes-app", entries[0].ID)
	assert.True(t, entries[0].Installed)
	assert.Equal(t, "1.5.0", entries[0].Version)
	assert.False(t, entries[1].Installed)

	require.NoError(t, h.run("--plain", "list", "security"))
	assert.Equal(t, "vault-app\n", h.stdout.String())

	require.NoError(t, h.run("list"))
	assert.Contains(t, h.stdout.String(), "Productivity Tools")
	assert.Contains(t, h.stdout.String(), "2 applications, 1 installed")

	requireExitCode(t, h.run("list", "games"), ExitNotFoundError)
}

func TestStatusReportsUpgrade(t *testing.T) {
	h := newHarness(t)
	h.seedLedger(t, &domain.Record{
		AppID:           "notes-app",
		AppName:         "Notes App",
		Method:          domain.MethodAppImage,
		Version:         "1.5.0",
		InstallDate:     time.Now(),
		InstallLocation: "/opt/notes-app",
	})
	h.seedCache(t, "notes-app", "1.6.0")

	require.NoError(t, h.run("--json", "status"))

	var result domain.StatusResult

	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &result))
	assert.Equal(t, 1, result.Installed)
	assert.Equal(t, 1, result.Upgrades)
	require.Len(t, result.Apps, 1)
	assert.Equal(t, domain.DetectedByLedger, result.Apps[0].DetectedBy)
	assert.Equal(t, "1.6.0", result.Apps[0].LatestVersion)

	require.NoError(t, h.run("--plain", "status"))
	assert.Equal(t, "notes-app:upgradeable\n", h.stdout.String())

	require.NoError(t, h.run("status"))
	assert.Contains(t, h.stdout.String(), "1 upgrade available")
}

func TestStatusWithNothingInstalled(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("status"))
	assert.Contains(t, h.stdout.String(), "No applications installed")

	requireExitCode(t, h.run("status", "nope"), ExitNotFoundError)
}

func TestLifecycleCommandsNeedIDs(t *testing.T) {
	for _, command := range []string{"install", "remove", "reinstall", "upgrade", "resolve", "pin"} {
		t.Run(command, func(t *testing.T) {
			h := newHarness(t)
			requireExitCode(t, h.run("--dry-run", command), ExitUsageError)
		})
	}
}

func TestUpgradeAllRejectsIDs(t *testing.T) {
	h := newHarness(t)

	requireExitCode(t, h.run("--dry-run", "upgrade", "--all", "notes-app"), ExitUsageError)
}

func TestInstallUnknownAppFailsBatch(t *testing.T) {
	h := newHarness(t)

	err := h.run("--dry-run", "install", "nope")
	requireExitCode(t, err, ExitAppError)
	assert.Contains(t, h.stdout.String(), "nope")
	assert.Contains(t, h.stdout.String(), "Installed 0/1, 1 failed (nope)")
}

func TestPinCommands(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("pin", "notes-app", "1.5.0"))
	assert.Contains(t, h.stdout.String(), "Pinned Notes App at 1.5.0")

	require.NoError(t, h.run("--json", "pins"))
	assert.JSONEq(t, `{"notes-app":"1.5.0"}`, h.stdout.String())

	require.NoError(t, h.run("unpin", "notes-app"))
	require.NoError(t, h.run("pins"))
	assert.Contains(t, h.stdout.String(), "No applications are pinned")

	requireExitCode(t, h.run("pin", "nope", "1.0"), ExitNotFoundError)
	requireExitCode(t, h.run("pin", "notes-app", "1.0", "extra"), ExitUsageError)
}

func TestCacheCommands(t *testing.T) {
	h := newHarness(t)
	h.seedCache(t, "notes-app", "1.6.0")

	require.NoError(t, h.run("cache", "info"))
	assert.Contains(t, h.stdout.String(), "notes-app")
	assert.Contains(t, h.stdout.String(), "fresh")

	require.NoError(t, h.run("cache", "clean"))
	assert.Contains(t, h.stdout.String(), "Removed 1 cached versions")

	require.NoError(t, h.run("cache", "info"))
	assert.Contains(t, h.stdout.String(), "The version cache is empty")
}

func TestResolveUsesCache(t *testing.T) {
	h := newHarness(t)
	h.seedCache(t, "notes-app", "1.6.0")

	require.NoError(t, h.run("--json", "resolve", "notes-app"))

	var entries []resolveEntry

	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "1.6.0", entries[0].Version)
	assert.Empty(t, entries[0].Error)
}

func TestInfoCommand(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("--plain", "info", "notes-app"))

	out := h.stdout.String()
	assert.Contains(t, out, "# Notes App")
	assert.Contains(t, out, "| Installed | no |")
	assert.Contains(t, out, "Sync is a paid add-on.")

	require.NoError(t, h.run("--json", "info", "vault-app"))

	var view infoView

	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &view))
	assert.Equal(t, domain.MethodFlatpak, view.Method)
	assert.Equal(t, domain.SourceAPTPackage, view.Source)

	requireExitCode(t, h.run("info", "nope"), ExitNotFoundError)
}

func TestMenuRequiresTerminal(t *testing.T) {
	h := newHarness(t)

	err := h.run("menu")
	requireExitCode(t, err, ExitGeneralError)
	assert.ErrorIs(t, err, ErrNotInteractive)
}
