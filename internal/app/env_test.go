// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bradsec/debapps/internal/adapters/cli"
	"github.com/bradsec/debapps/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnv(t *testing.T, opts Options) *Env {
	t.Helper()

	base := t.TempDir()
	cfgPath := filepath.Join(base, "config.toml")

	cfg := "cache_dir = \"" + filepath.Join(base, "cache") + "\"\n" +
		"state_dir = \"" + filepath.Join(base, "state") + "\"\n" +
		"opt_dir = \"" + filepath.Join(base, "opt") + "\"\n" +
		"log_level = \"warn\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	var out, stderr bytes.Buffer

	opts.ConfigPath = cfgPath
	opts.Output = cli.NewOutputAdapterWithWriter(&out, cli.TextFormat, false)
	opts.Stderr = &stderr

	env, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })

	return env
}

func TestNewWiresEveryMechanism(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})

	assert.NotEmpty(t, env.Catalog.Apps())
	assert.FileExists(t, env.Config.LedgerPath())

	for _, method := range domain.AllMethods() {
		inst, err := env.Registry.For(method)
		require.NoError(t, err)
		assert.Equal(t, method, inst.Method())
	}

	records, err := env.Ledger.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNewRejectsMissingCatalog(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	cfgPath := filepath.Join(base, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("state_dir = \""+base+"\"\n"), 0o600))

	_, err := New(context.Background(), Options{
		ConfigPath: cfgPath,
		Catalog:    filepath.Join(base, "missing.yaml"),
		Output:     cli.NewOutputAdapterWithWriter(&bytes.Buffer{}, cli.TextFormat, true),
		Stderr:     &bytes.Buffer{},
	})
	require.Error(t, err)
}

func TestRequireRoot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dryRun  bool
		euid    int
		wantErr bool
	}{
		{name: "root", euid: 0},
		{name: "user", euid: 1000, wantErr: true},
		{name: "user in dry run", euid: 1000, dryRun: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, Options{DryRun: tt.dryRun})
			env.euid = func() int { return tt.euid }

			err := env.RequireRoot()
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrPermissionDenied)
				return
			}

			require.NoError(t, err)
		})
	}
}
