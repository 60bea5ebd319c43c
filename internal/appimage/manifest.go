// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package appimage

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/bradsec/debapps/internal/domain"
)

// ManifestName is the file name of the install manifest inside the
// application directory.
const ManifestName = "install.log"

// Manifest is the ordered list of paths an installation created. The first
// entry is always the AppImage itself. It is rewritten after every stage so
// a crash leaves a usable record behind.
type Manifest struct {
	path    string
	entries []string
	files   domain.FileManager
}

func newManifest(path, execPath string, files domain.FileManager) (*Manifest, error) {
	m := &Manifest{path: path, files: files, entries: []string{execPath}}

	return m, m.flush()
}

// Path returns the manifest location.
func (m *Manifest) Path() string { return m.path }

// Entries returns the recorded paths in creation order.
func (m *Manifest) Entries() []string {
	return append([]string(nil), m.entries...)
}

// Append records paths and persists the manifest.
func (m *Manifest) Append(paths ...string) error {
	m.entries = append(m.entries, paths...)

	return m.flush()
}

func (m *Manifest) flush() error {
	var buf bytes.Buffer

	for _, e := range m.entries {
		buf.WriteString(e)
		buf.WriteByte('\n')
	}

	return m.files.WriteFile(m.path, buf.Bytes())
}

// ParseManifest splits manifest data into entries, dropping blank lines.
func ParseManifest(data []byte) []string {
	var entries []string

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			entries = append(entries, line)
		}
	}

	return entries
}
