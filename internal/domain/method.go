// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedInstallMethod indicates the installation method is not supported.
	ErrUnsupportedInstallMethod = errors.New("unsupported installation method")
	// ErrUnsupportedSource indicates the source type is not supported.
	ErrUnsupportedSource = errors.New("unsupported source type")
)

// InstallMethod is the closed set of installation mechanisms.
type InstallMethod string

// Installation mechanisms.
const (
	MethodAppImage   InstallMethod = "appimage"
	MethodAPTRepo    InstallMethod = "apt_repo"
	MethodDEB        InstallMethod = "deb"
	MethodTarball    InstallMethod = "tarball"
	MethodDEBTarball InstallMethod = "deb_tarball"
	MethodFlatpak    InstallMethod = "flatpak"
	MethodSnap       InstallMethod = "snap"
)

// AllMethods lists every mechanism in registry order.
func AllMethods() []InstallMethod {
	return []InstallMethod{
		MethodAppImage,
		MethodAPTRepo,
		MethodDEB,
		MethodTarball,
		MethodDEBTarball,
		MethodFlatpak,
		MethodSnap,
	}
}

// Valid reports whether m is one of the known mechanisms.
func (m InstallMethod) Valid() bool {
	for _, known := range AllMethods() {
		if m == known {
			return true
		}
	}

	return false
}

// ParseInstallMethod converts a catalog string into an InstallMethod.
func ParseInstallMethod(s string) (InstallMethod, error) {
	m := InstallMethod(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedInstallMethod, s)
	}

	return m, nil
}

// HasNativeUpgrade reports whether the mechanism has its own update channel.
// Everything else upgrades by reinstalling.
func (m InstallMethod) HasNativeUpgrade() bool {
	switch m {
	case MethodAPTRepo, MethodFlatpak, MethodSnap:
		return true
	case MethodAppImage, MethodDEB, MethodTarball, MethodDEBTarball:
		return false
	}

	return false
}

// UsesPackageManager reports whether the mechanism ends up in the dpkg database.
func (m InstallMethod) UsesPackageManager() bool {
	return m == MethodAPTRepo || m == MethodDEB || m == MethodDEBTarball
}

// String returns a display label.
func (m InstallMethod) String() string {
	return string(m)
}
