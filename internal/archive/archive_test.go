// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mholt/archives"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTarGz packs srcDir into a .tar.gz under dir.
func makeTarGz(t *testing.T, srcDir, dir string) string {
	t.Helper()

	ctx := context.Background()

	files, err := archives.FilesFromDisk(ctx, nil, map[string]string{
		srcDir + string(os.PathSeparator): "",
	})
	require.NoError(t, err)

	out := filepath.Join(dir, "bundle.tar.gz")
	f, err := os.Create(out)
	require.NoError(t, err)

	format := archives.CompressedArchive{Compression: archives.Gz{}, Archival: archives.Tar{}}
	require.NoError(t, format.Archive(ctx, f, files))
	require.NoError(t, f.Close())

	return out
}

func TestExtractRoundTrip(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "tor-browser")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "Browser"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "Browser", "start-tor-browser"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "README"), []byte("hello"), 0o644))

	bundle := makeTarGz(t, src, t.TempDir())

	kind, err := Classify(bundle)
	require.NoError(t, err)
	assert.Equal(t, KindArchive, kind)

	dest := filepath.Join(t.TempDir(), "out")
	require.NoError(t, Extract(context.Background(), bundle, dest))

	info, err := os.Stat(filepath.Join(dest, "Browser", "start-tor-browser"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100, "executable bit preserved")

	data, err := os.ReadFile(filepath.Join(dest, "README"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	found, ok := FindDir(dest, "Browser")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dest, "Browser"), found)
}

func TestExtractRejectsPlainFile(t *testing.T) {
	t.Parallel()

	plain := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(plain, []byte("just text"), 0o644))

	err := Extract(context.Background(), plain, t.TempDir())
	require.ErrorIs(t, err, ErrNotArchive)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tests := []struct {
		name    string
		content []byte
		want    Kind
	}{
		{"html error page", []byte("<!DOCTYPE html><html><body>404</body></html>"), KindHTML},
		{"elf binary", append([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0}, make([]byte, 64)...), KindExecutable},
		{"text", []byte("plain words"), KindUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(dir, tc.name)
			require.NoError(t, os.WriteFile(path, tc.content, 0o644))

			kind, err := Classify(path)
			require.NoError(t, err)
			assert.Equal(t, tc.want, kind)
		})
	}
}

func TestSingleRoot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "LibreOffice_25.2.0_Linux_x86-64_deb", "DEBS"), 0o755))

	root, err := SingleRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "LibreOffice_25.2.0_Linux_x86-64_deb"), root)

	debs, ok := FindDir(dir, "DEBS")
	require.True(t, ok)
	assert.Equal(t, "DEBS", filepath.Base(debs))
}
