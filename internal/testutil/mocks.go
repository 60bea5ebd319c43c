// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package testutil holds testify mocks of the domain ports and catalog fixtures.
package testutil

import (
	"context"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockNetworkClient is a mock implementation of NetworkClient port.
type MockNetworkClient struct {
	mock.Mock
}

// DownloadFile mocks file download.
func (m *MockNetworkClient) DownloadFile(ctx context.Context, url, destPath string) error {
	args := m.Called(ctx, url, destPath)
	return args.Error(0)
}

// Fetch mocks fetching a small document.
func (m *MockNetworkClient) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	args := m.Called(ctx, url, headers)
	if result := args.Get(0); result != nil {
		switch body := result.(type) {
		case []byte:
			return body, args.Error(1)
		case string:
			return []byte(body), args.Error(1)
		}
	}

	return nil, args.Error(1)
}

// FinalURL mocks redirect resolution.
func (m *MockNetworkClient) FinalURL(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

// MockPackageManager is a mock implementation of PackageManager port.
type MockPackageManager struct {
	mock.Mock
}

// Update mocks refreshing the package index.
func (m *MockPackageManager) Update(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// InstallPackages mocks package installation.
func (m *MockPackageManager) InstallPackages(ctx context.Context, names ...string) error {
	return m.Called(ctx, names).Error(0)
}

// InstallDebs mocks local .deb installation.
func (m *MockPackageManager) InstallDebs(ctx context.Context, paths ...string) error {
	return m.Called(ctx, paths).Error(0)
}

// FixBroken mocks dependency repair.
func (m *MockPackageManager) FixBroken(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// RemovePackages mocks package removal.
func (m *MockPackageManager) RemovePackages(ctx context.Context, names ...string) error {
	return m.Called(ctx, names).Error(0)
}

// UpgradePackages mocks package upgrade.
func (m *MockPackageManager) UpgradePackages(ctx context.Context, names ...string) error {
	return m.Called(ctx, names).Error(0)
}

// IsPackageInstalled mocks the dpkg status query.
func (m *MockPackageManager) IsPackageInstalled(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

// InstalledVersion mocks the dpkg version query.
func (m *MockPackageManager) InstalledVersion(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

// CandidateVersion mocks the apt candidate query.
func (m *MockPackageManager) CandidateVersion(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

// AddRepository mocks repository registration.
func (m *MockPackageManager) AddRepository(ctx context.Context, repo domain.APTRepository, codename string) ([]string, error) {
	args := m.Called(ctx, repo, codename)
	if result := args.Get(0); result != nil {
		if paths, ok := result.([]string); ok {
			return paths, args.Error(1)
		}
	}

	return nil, args.Error(1)
}

// RemoveRepository mocks repository removal.
func (m *MockPackageManager) RemoveRepository(ctx context.Context, repo domain.APTRepository) error {
	return m.Called(ctx, repo).Error(0)
}

// MockSandboxRuntime is a mock implementation of SandboxRuntime port.
type MockSandboxRuntime struct {
	mock.Mock
}

// Name mocks the runtime name.
func (m *MockSandboxRuntime) Name() string {
	return m.Called().String(0)
}

// Available mocks the runtime presence check.
func (m *MockSandboxRuntime) Available() bool {
	return m.Called().Bool(0)
}

// Install mocks installing a ref.
func (m *MockSandboxRuntime) Install(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}

// Remove mocks removing a ref.
func (m *MockSandboxRuntime) Remove(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}

// Upgrade mocks upgrading a ref.
func (m *MockSandboxRuntime) Upgrade(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}

// IsInstalled mocks the listing check.
func (m *MockSandboxRuntime) IsInstalled(ctx context.Context, ref string) (bool, error) {
	args := m.Called(ctx, ref)
	return args.Bool(0), args.Error(1)
}

// Version mocks the installed version query.
func (m *MockSandboxRuntime) Version(ctx context.Context, ref string) (string, error) {
	args := m.Called(ctx, ref)
	return args.String(0), args.Error(1)
}

// MockSystemDetector is a mock implementation of SystemDetector port
// for use in tests across multiple packages.
type MockSystemDetector struct {
	mock.Mock
}

// DetectSystem mocks the system detection.
func (m *MockSystemDetector) DetectSystem(ctx context.Context) (*domain.SystemInfo, error) {
	args := m.Called(ctx)
	if info, ok := args.Get(0).(*domain.SystemInfo); ok {
		return info, args.Error(1)
	}

	return nil, args.Error(1)
}

// DetectDistribution mocks distribution detection.
func (m *MockSystemDetector) DetectDistribution(ctx context.Context) (*domain.Distribution, error) {
	args := m.Called(ctx)
	if dist, ok := args.Get(0).(*domain.Distribution); ok {
		return dist, args.Error(1)
	}

	return nil, args.Error(1)
}

// DetectDesktopEnvironment mocks desktop environment detection.
func (m *MockSystemDetector) DetectDesktopEnvironment(ctx context.Context) (*domain.DesktopEnvironment, error) {
	args := m.Called(ctx)
	if de, ok := args.Get(0).(*domain.DesktopEnvironment); ok {
		return de, args.Error(1)
	}

	return nil, args.Error(1)
}

// MockVersionResolver is a mock implementation of VersionResolver port.
type MockVersionResolver struct {
	mock.Mock
}

// Resolve mocks version resolution.
func (m *MockVersionResolver) Resolve(ctx context.Context, app *domain.App) (domain.Resolution, error) {
	args := m.Called(ctx, app)
	res, _ := args.Get(0).(domain.Resolution)

	return res, args.Error(1)
}

// MockPrompter is a mock implementation of Prompter port.
type MockPrompter struct {
	mock.Mock
}

// Confirm mocks a confirmation prompt.
func (m *MockPrompter) Confirm(title, description string) (bool, error) {
	args := m.Called(title, description)
	return args.Bool(0), args.Error(1)
}

// MockInstaller is a mock implementation of Installer port.
type MockInstaller struct {
	mock.Mock
}

// Method mocks the handled mechanism.
func (m *MockInstaller) Method() domain.InstallMethod {
	if method, ok := m.Called().Get(0).(domain.InstallMethod); ok {
		return method
	}

	return domain.MethodDEB
}

func (m *MockInstaller) result(args mock.Arguments) (*domain.InstallationResult, error) {
	if res, ok := args.Get(0).(*domain.InstallationResult); ok {
		return res, args.Error(1)
	}

	return nil, args.Error(1)
}

// Install mocks installation.
func (m *MockInstaller) Install(ctx context.Context, app *domain.App) (*domain.InstallationResult, error) {
	return m.result(m.Called(ctx, app))
}

// Remove mocks removal.
func (m *MockInstaller) Remove(ctx context.Context, app *domain.App) (*domain.InstallationResult, error) {
	return m.result(m.Called(ctx, app))
}

// Reinstall mocks reinstallation.
func (m *MockInstaller) Reinstall(ctx context.Context, app *domain.App) (*domain.InstallationResult, error) {
	return m.result(m.Called(ctx, app))
}

// Upgrade mocks upgrade.
func (m *MockInstaller) Upgrade(ctx context.Context, app *domain.App) (*domain.InstallationResult, error) {
	return m.result(m.Called(ctx, app))
}
