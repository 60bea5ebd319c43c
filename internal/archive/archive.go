// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package archive identifies downloaded artifacts and unpacks tarballs.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/mholt/archives"
)

var (
	// ErrNotArchive is returned when extraction is asked of a plain file.
	ErrNotArchive = errors.New("not an archive")
	// ErrUnsafePath is returned for entries that would land outside the destination.
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

// Kind classifies a downloaded artifact by content.
type Kind string

// Artifact kinds.
const (
	KindDeb        Kind = "deb"
	KindArchive    Kind = "archive"
	KindExecutable Kind = "executable"
	KindJar        Kind = "jar"
	KindHTML       Kind = "html"
	KindUnknown    Kind = "unknown"
)

// Classify sniffs the file's magic bytes.
func Classify(path string) (Kind, error) {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return KindUnknown, fmt.Errorf("failed to detect file type: %w", err)
	}

	for m := mime; m != nil; m = m.Parent() {
		switch {
		case m.Is("application/vnd.debian.binary-package"):
			return KindDeb, nil
		case m.Is("application/jar"), m.Is("application/java-archive"):
			return KindJar, nil
		case m.Is("application/x-elf"), m.Is("application/x-executable"):
			return KindExecutable, nil
		case m.Is("text/html"):
			return KindHTML, nil
		case m.Is("application/gzip"), m.Is("application/x-xz"), m.Is("application/x-bzip2"),
			m.Is("application/zstd"), m.Is("application/x-tar"), m.Is("application/zip"):
			return KindArchive, nil
		}
	}

	// ar archives that mimetype does not refine
	if strings.HasSuffix(path, ".deb") {
		return KindDeb, nil
	}

	return KindUnknown, nil
}

// IsArchive reports whether path holds a format that can be extracted.
func IsArchive(ctx context.Context, path string) (bool, error) {
	// #nosec G304 - path is a download this process created
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	format, _, err := archives.Identify(ctx, filepath.Base(path), f)
	if errors.Is(err, archives.NoMatch) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to identify %s: %w", path, err)
	}

	_, ok := format.(archives.Extractor)

	return ok, nil
}

// Extract unpacks archivePath into destDir.
func Extract(ctx context.Context, archivePath, destDir string) error {
	ok, err := IsArchive(ctx, archivePath)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotArchive, filepath.Base(archivePath))
	}

	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return fmt.Errorf("failed to open archive file: %w", err)
	}

	if closer, ok := fsys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		return extractEntry(fsys, path, destDir, d)
	})
}

func extractEntry(fsys fs.FS, path, destDir string, d fs.DirEntry) error {
	if path == "." {
		return nil
	}

	targetPath := filepath.Join(destDir, filepath.FromSlash(path))
	if rel, err := filepath.Rel(destDir, targetPath); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return fmt.Errorf("%w: %s", ErrUnsafePath, path)
	}

	if d.IsDir() {
		return os.MkdirAll(targetPath, 0o755) //nolint:gosec
	}

	info, err := d.Info()
	if err != nil {
		return fmt.Errorf("failed to get file info for %s: %w", path, err)
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		return writeSymlink(fsys, path, targetPath, info)
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	return writeRegularFile(fsys, path, targetPath, info.Mode().Perm())
}

func writeSymlink(fsys fs.FS, path, targetPath string, info fs.FileInfo) error {
	target := ""
	if fi, ok := info.(archives.FileInfo); ok {
		target = fi.LinkTarget
	}

	if target == "" {
		f, err := fsys.Open(path)
		if err != nil {
			return fmt.Errorf("failed to read symlink %s: %w", path, err)
		}

		data, err := io.ReadAll(f)
		_ = f.Close()

		if err != nil {
			return fmt.Errorf("failed to read symlink target %s: %w", path, err)
		}

		target = string(data)
	}

	if filepath.IsAbs(target) {
		return fmt.Errorf("%w: absolute link %s -> %s", ErrUnsafePath, path, target)
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("failed to create parent directory for symlink %s: %w", path, err)
	}

	_ = os.Remove(targetPath)

	return os.Symlink(target, targetPath)
}

func writeRegularFile(fsys fs.FS, path, targetPath string, perm fs.FileMode) error {
	src, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", path, err)
	}
	defer func() { _ = src.Close() }()

	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("failed to create parent directory for %s: %w", path, err)
	}

	if perm == 0 {
		perm = 0o644
	}

	// #nosec G304 - targetPath is checked against destDir above
	dst, err := os.OpenFile(targetPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", targetPath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("failed to copy %s: %w", path, err)
	}

	return dst.Close()
}

// SingleRoot returns the only top-level directory of an extracted tree, or
// dir itself when the tree has several entries at the top.
func SingleRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", dir, err)
	}

	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}

	return dir, nil
}

// FindDir walks root for the first directory named name.
func FindDir(root, name string) (string, bool) {
	var found string

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || found != "" {
			return nil //nolint:nilerr
		}

		if d.IsDir() && d.Name() == name {
			found = path
			return fs.SkipAll
		}

		return nil
	})

	return found, found != ""
}

// Glob returns files under dir with the given extension, sorted by name.
func Glob(dir, ext string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return nil, err
	}

	return matches, nil
}
