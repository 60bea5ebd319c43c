// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package versions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// PinConfig represents the structure of pins.toml.
type PinConfig struct {
	Apps map[string]string `toml:"apps"`
}

// PinManager holds applications back from upgrade at a given version.
type PinManager struct {
	configPath string
}

// NewPinManager creates a pin manager for the given file.
func NewPinManager(configPath string) *PinManager {
	return &PinManager{configPath: configPath}
}

// Pinned returns the pinned version of an application, if any.
func (p *PinManager) Pinned(appID string) (string, bool) {
	cfg, err := p.load()
	if err != nil {
		return "", false
	}

	v, ok := cfg.Apps[appID]

	return v, ok
}

// Pin records version for appID.
func (p *PinManager) Pin(appID, version string) error {
	cfg, err := p.load()
	if err != nil {
		return err
	}

	cfg.Apps[appID] = version

	return p.save(cfg)
}

// Unpin removes the pin for appID. Removing a missing pin is not an error.
func (p *PinManager) Unpin(appID string) error {
	cfg, err := p.load()
	if err != nil {
		return err
	}

	delete(cfg.Apps, appID)

	return p.save(cfg)
}

// All returns every pin sorted by application id.
func (p *PinManager) All() ([]string, map[string]string, error) {
	cfg, err := p.load()
	if err != nil {
		return nil, nil, err
	}

	ids := make([]string, 0, len(cfg.Apps))
	for id := range cfg.Apps {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids, cfg.Apps, nil
}

func (p *PinManager) load() (*PinConfig, error) {
	cfg := &PinConfig{Apps: make(map[string]string)}

	data, err := os.ReadFile(p.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read pin config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse pin config: %w", err)
	}

	if cfg.Apps == nil {
		cfg.Apps = make(map[string]string)
	}

	return cfg, nil
}

func (p *PinManager) save(cfg *PinConfig) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode pin config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(p.configPath), 0o750); err != nil {
		return fmt.Errorf("failed to create pin config directory: %w", err)
	}

	if err := os.WriteFile(p.configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write pin config: %w", err)
	}

	return nil
}
