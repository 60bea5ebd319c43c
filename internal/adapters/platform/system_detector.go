// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package platform

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/bradsec/debapps/internal/domain"
)

// SystemDetector implements the SystemDetector port for Linux systems.
type SystemDetector struct {
	commandRunner domain.CommandRunner
	fileManager   domain.FileManager
	getenv        func(string) string
}

// NewSystemDetector creates a new system detector.
func NewSystemDetector(commandRunner domain.CommandRunner, fileManager domain.FileManager) *SystemDetector {
	return &SystemDetector{
		commandRunner: commandRunner,
		fileManager:   fileManager,
		getenv:        os.Getenv,
	}
}

// DetectSystem returns comprehensive system information.
func (d *SystemDetector) DetectSystem(ctx context.Context) (*domain.SystemInfo, error) {
	distribution, err := d.DetectDistribution(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to detect distribution: %w", err)
	}

	desktopEnv, _ := d.DetectDesktopEnvironment(ctx) // Optional, may fail

	return &domain.SystemInfo{
		Distribution:       distribution,
		DesktopEnvironment: desktopEnv,
		Architecture:       d.architecture(ctx),
		Kernel:             d.getKernelVersion(ctx),
	}, nil
}

// DetectDistribution returns the Linux distribution information.
func (d *SystemDetector) DetectDistribution(_ context.Context) (*domain.Distribution, error) {
	// Try to read /etc/os-release first (standard)
	if d.fileManager.FileExists("/etc/os-release") {
		data, err := d.fileManager.ReadFile("/etc/os-release")
		if err == nil {
			return d.parseOSRelease(string(data)), nil
		}
	}

	// Fallback to other methods
	if d.fileManager.FileExists("/etc/lsb-release") {
		data, err := d.fileManager.ReadFile("/etc/lsb-release")
		if err == nil {
			return d.parseLSBRelease(string(data)), nil
		}
	}

	return &domain.Distribution{
		Name:   "Unknown",
		ID:     "unknown",
		Family: "unknown",
	}, nil
}

// DetectDesktopEnvironment returns the desktop environment information.
func (d *SystemDetector) DetectDesktopEnvironment(_ context.Context) (*domain.DesktopEnvironment, error) {
	if session := d.getenv("XDG_CURRENT_DESKTOP"); session != "" {
		return &domain.DesktopEnvironment{
			Name:    session,
			Session: d.getenv("XDG_SESSION_DESKTOP"),
		}, nil
	}

	if session := d.getenv("DESKTOP_SESSION"); session != "" {
		return &domain.DesktopEnvironment{
			Name:    session,
			Session: session,
		}, nil
	}

	return nil, domain.ErrNoDesktopEnvironment
}

// Helper methods

func parseKeyValues(content string) map[string]string {
	fields := make(map[string]string)

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if key, value, ok := strings.Cut(line, "="); ok {
			fields[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
		}
	}

	return fields
}

func (d *SystemDetector) parseOSRelease(content string) *domain.Distribution {
	fields := parseKeyValues(content)

	// derivatives such as Mint name their own release but use Ubuntu's
	// repositories, so the Ubuntu codename wins
	codename := fields["UBUNTU_CODENAME"]
	if codename == "" {
		codename = fields["VERSION_CODENAME"]
	}

	family := d.determineFamily(fields["ID"])
	if family == "unknown" {
		for _, like := range strings.Fields(fields["ID_LIKE"]) {
			if f := d.determineFamily(like); f != "unknown" {
				family = f
				break
			}
		}
	}

	return &domain.Distribution{
		Name:     fields["NAME"],
		ID:       fields["ID"],
		Version:  fields["VERSION"],
		Codename: codename,
		Family:   family,
	}
}

func (d *SystemDetector) parseLSBRelease(content string) *domain.Distribution {
	fields := parseKeyValues(content)

	id := strings.ToLower(fields["DISTRIB_ID"])

	return &domain.Distribution{
		Name:     fields["DISTRIB_DESCRIPTION"],
		ID:       id,
		Version:  fields["DISTRIB_RELEASE"],
		Codename: fields["DISTRIB_CODENAME"],
		Family:   d.determineFamily(id),
	}
}

func (d *SystemDetector) determineFamily(distributionID string) string {
	distributionID = strings.ToLower(distributionID)

	familyMap := map[string]string{
		"ubuntu":   "debian",
		"debian":   "debian",
		"mint":     "debian",
		"pop":      "debian",
		"kali":     "debian",
		"fedora":   "rhel",
		"rhel":     "rhel",
		"centos":   "rhel",
		"arch":     "arch",
		"opensuse": "suse",
	}

	for distro, family := range familyMap {
		if strings.Contains(distributionID, distro) {
			return family
		}
	}

	return "unknown"
}

// architecture prefers dpkg's view, which is what repository lines and
// package names use.
func (d *SystemDetector) architecture(ctx context.Context) string {
	if output, err := d.commandRunner.ExecuteWithOutput(ctx, "dpkg", "--print-architecture"); err == nil {
		if arch := strings.TrimSpace(output); arch != "" {
			return arch
		}
	}

	return runtime.GOARCH
}

func (d *SystemDetector) getKernelVersion(ctx context.Context) string {
	output, err := d.commandRunner.ExecuteWithOutput(ctx, "uname", "-r")
	if err != nil {
		return "unknown"
	}

	return strings.TrimSpace(output)
}
