// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package platform

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/logging"
)

// FileManager implements the FileManager port for real file operations.
type FileManager struct {
	logger logging.Logger
}

var _ domain.FileManager = (*FileManager)(nil)

// NewFileManager creates a new file manager.
func NewFileManager(logger logging.Logger) *FileManager {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &FileManager{logger: logger}
}

// FileExists checks if a path exists. Dangling symlinks count as existing.
func (f *FileManager) FileExists(path string) bool {
	_, err := os.Lstat(path)

	return err == nil
}

// EnsureDir creates a directory and all parent directories if they don't exist.
func (f *FileManager) EnsureDir(path string) error {
	f.logger.Debug("ensuring directory", "path", path)

	// #nosec G301 - Standard directory permissions for application directories
	return os.MkdirAll(path, 0755)
}

// CopyFile copies a file from source to destination, keeping its mode.
func (f *FileManager) CopyFile(src, dest string) error {
	f.logger.Debug("copying file", "src", src, "dest", dest)

	if err := f.EnsureDir(filepath.Dir(dest)); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	// #nosec G304 - File path comes from trusted application code
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}

	defer func() { _ = srcFile.Close() }()

	info, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	// #nosec G304 - File path comes from trusted application code
	destFile, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	defer func() { _ = destFile.Close() }()

	if _, err = io.Copy(destFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	return destFile.Sync()
}

// MoveFile renames src to dest, falling back to copy and delete across
// filesystems.
func (f *FileManager) MoveFile(src, dest string) error {
	f.logger.Debug("moving file", "src", src, "dest", dest)

	if err := f.EnsureDir(filepath.Dir(dest)); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return fmt.Errorf("failed to move %s: %w", src, err)
	}

	if err := f.CopyFile(src, dest); err != nil {
		return err
	}

	return os.Remove(src)
}

// WriteFile writes data to a file.
func (f *FileManager) WriteFile(path string, data []byte) error {
	f.logger.Debug("writing file", "path", path, "bytes", len(data))

	if err := f.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// #nosec G306 - launchers and manifests are world readable
	return os.WriteFile(path, data, 0644)
}

// ReadFile reads data from a file.
func (f *FileManager) ReadFile(path string) ([]byte, error) {
	// #nosec G304 - File path comes from trusted application code
	return os.ReadFile(path)
}

// Symlink points link at target, replacing an existing link.
func (f *FileManager) Symlink(target, link string) error {
	f.logger.Debug("linking", "target", target, "link", link)

	if err := f.EnsureDir(filepath.Dir(link)); err != nil {
		return fmt.Errorf("failed to create link directory: %w", err)
	}

	if info, err := os.Lstat(link); err == nil {
		if info.Mode()&fs.ModeSymlink == 0 {
			return fmt.Errorf("refusing to replace %s: %w", link, fs.ErrExist)
		}

		if err := os.Remove(link); err != nil {
			return fmt.Errorf("failed to replace link: %w", err)
		}
	}

	return os.Symlink(target, link)
}

// Chmod changes file permissions.
func (f *FileManager) Chmod(path string, mode uint32) error {
	return os.Chmod(path, fs.FileMode(mode))
}

// RemoveFile removes a file. A missing file is not an error.
func (f *FileManager) RemoveFile(path string) error {
	f.logger.Debug("removing file", "path", path)

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

// RemoveAll removes a directory tree.
func (f *FileManager) RemoveAll(path string) error {
	f.logger.Debug("removing tree", "path", path)

	return os.RemoveAll(path)
}

// MockFileManager implements the FileManager port in memory for testing.
type MockFileManager struct {
	mu    sync.Mutex
	files map[string][]byte // path -> content
	modes map[string]uint32
	links map[string]string
}

var _ domain.FileManager = (*MockFileManager)(nil)

// NewMockFileManager creates a new mock file manager for testing.
func NewMockFileManager() *MockFileManager {
	return &MockFileManager{
		files: make(map[string][]byte),
		modes: make(map[string]uint32),
		links: make(map[string]string),
	}
}

// SetMockFile sets the content of a mock file.
func (f *MockFileManager) SetMockFile(path string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.files[path] = content
}

// Paths lists every file and link in sorted order.
func (f *MockFileManager) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	paths := make([]string, 0, len(f.files)+len(f.links))
	for p := range f.files {
		paths = append(paths, p)
	}

	for p := range f.links {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}

// Mode returns the mode set by Chmod.
func (f *MockFileManager) Mode(path string) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.modes[path]
}

// LinkTarget returns the target of a mock link.
func (f *MockFileManager) LinkTarget(path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.links[path]

	return t, ok
}

// FileExists checks if a mock file or link exists.
func (f *MockFileManager) FileExists(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, isFile := f.files[path]
	_, isLink := f.links[path]

	return isFile || isLink
}

// EnsureDir does nothing in mock mode.
func (f *MockFileManager) EnsureDir(string) error { return nil }

// CopyFile copies between mock files.
func (f *MockFileManager) CopyFile(src, dest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	content, exists := f.files[src]
	if !exists {
		return domain.ErrMockFileNotFound
	}

	f.files[dest] = content

	return nil
}

// MoveFile moves a mock file.
func (f *MockFileManager) MoveFile(src, dest string) error {
	if err := f.CopyFile(src, dest); err != nil {
		return err
	}

	f.mu.Lock()
	delete(f.files, src)
	f.mu.Unlock()

	return nil
}

// WriteFile writes to a mock file.
func (f *MockFileManager) WriteFile(path string, data []byte) error {
	f.SetMockFile(path, data)

	return nil
}

// ReadFile reads from a mock file.
func (f *MockFileManager) ReadFile(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	content, exists := f.files[path]
	if !exists {
		return nil, domain.ErrMockFileNotFound
	}

	return content, nil
}

// Symlink records a mock link.
func (f *MockFileManager) Symlink(target, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.links[link] = target

	return nil
}

// Chmod records the mode of a mock file.
func (f *MockFileManager) Chmod(path string, mode uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.files[path]; !ok {
		return domain.ErrMockFileNotFound
	}

	f.modes[path] = mode

	return nil
}

// RemoveFile removes a mock file or link.
func (f *MockFileManager) RemoveFile(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.files, path)
	delete(f.links, path)

	return nil
}

// RemoveAll removes every mock path under path.
func (f *MockFileManager) RemoveAll(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := filepath.Clean(path) + string(filepath.Separator)

	for p := range f.files {
		if p == path || len(p) > len(prefix) && p[:len(prefix)] == prefix {
			delete(f.files, p)
		}
	}

	for p := range f.links {
		if p == path || len(p) > len(prefix) && p[:len(prefix)] == prefix {
			delete(f.links, p)
		}
	}

	return nil
}
