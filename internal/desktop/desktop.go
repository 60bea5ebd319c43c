// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package desktop reads, repairs and writes freedesktop .desktop entries.
package desktop

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"
)

const mainGroup = "[Desktop Entry]"

// ErrNoDesktopEntry is returned when a file has no [Desktop Entry] group.
var ErrNoDesktopEntry = errors.New("no [Desktop Entry] group")

// DesktopApp represents a launcher written for applications that ship none.
type DesktopApp struct { //nolint:revive
	Name          string
	Comment       string
	Exec          string
	Icon          string
	Categories    string
	Terminal      bool
	StartupNotify bool
}

// Render returns the launcher as a .desktop document.
func (a DesktopApp) Render() []byte {
	categories := a.Categories
	if categories == "" {
		categories = "Utility;"
	}

	return fmt.Appendf(nil, `[Desktop Entry]
Version=1.0
Name=%s
Comment=%s
Exec=%s
Terminal=%t
Type=Application
Icon=%s
Categories=%s
StartupNotify=%t
`,
		a.Name,
		a.Comment,
		a.Exec,
		a.Terminal,
		a.Icon,
		categories,
		a.StartupNotify,
	)
}

// line is one physical line; key is empty for comments, blanks and headers.
type line struct {
	raw   string
	key   string
	value string
}

// Entry is a parsed .desktop file. Lines outside the main group are kept
// verbatim so rendering round-trips.
type Entry struct {
	lines     []line
	mainStart int
	mainEnd   int
}

// Parse reads a .desktop document.
func Parse(data []byte) (*Entry, error) {
	e := &Entry{mainStart: -1}

	group := ""
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			if group == mainGroup {
				e.mainEnd = len(e.lines)
			}

			group = trimmed
			if group == mainGroup && e.mainStart < 0 {
				e.mainStart = len(e.lines)
			}

			e.lines = append(e.lines, line{raw: raw})

			continue
		}

		l := line{raw: raw}

		if group == mainGroup && trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			if k, v, ok := strings.Cut(raw, "="); ok {
				l.key = strings.TrimSpace(k)
				l.value = strings.TrimSpace(v)
			}
		}

		e.lines = append(e.lines, l)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read desktop entry: %w", err)
	}

	if e.mainStart < 0 {
		return nil, ErrNoDesktopEntry
	}

	if group == mainGroup {
		e.mainEnd = len(e.lines)
	}

	return e, nil
}

// Get returns the value of key in the main group.
func (e *Entry) Get(key string) (string, bool) {
	for i := e.mainStart + 1; i < e.mainEnd; i++ {
		if e.lines[i].key == key {
			return e.lines[i].value, true
		}
	}

	return "", false
}

// Set replaces key in the main group or appends it at the group's end.
func (e *Entry) Set(key, value string) {
	for i := e.mainStart + 1; i < e.mainEnd; i++ {
		if e.lines[i].key == key {
			e.lines[i] = line{raw: key + "=" + value, key: key, value: value}
			return
		}
	}

	// insert before trailing blank lines of the group
	at := e.mainEnd
	for at > e.mainStart+1 && strings.TrimSpace(e.lines[at-1].raw) == "" {
		at--
	}

	e.lines = append(e.lines, line{})
	copy(e.lines[at+1:], e.lines[at:])
	e.lines[at] = line{raw: key + "=" + value, key: key, value: value}
	e.mainEnd++
}

// Delete removes key from the main group.
func (e *Entry) Delete(key string) {
	for i := e.mainStart + 1; i < e.mainEnd; i++ {
		if e.lines[i].key == key {
			e.lines = append(e.lines[:i], e.lines[i+1:]...)
			e.mainEnd--

			return
		}
	}
}

// Render writes the entry back out.
func (e *Entry) Render() []byte {
	var buf bytes.Buffer

	for _, l := range e.lines {
		buf.WriteString(l.raw)
		buf.WriteByte('\n')
	}

	return buf.Bytes()
}

// Patch points the entry at execPath and repairs keys that keep it out of
// application menus. It returns the keys it changed.
func (e *Entry) Patch(execPath, icon string) []string {
	var changed []string

	set := func(key, value string) {
		if cur, ok := e.Get(key); !ok || cur != value {
			e.Set(key, value)
			changed = append(changed, key)
		}
	}

	set("Exec", execPath+execArgs(e))

	if icon != "" {
		set("Icon", icon)
	}

	if _, ok := e.Get("Type"); !ok {
		set("Type", "Application")
	}

	set("Terminal", "false")

	if v, ok := e.Get("Categories"); !ok || strings.TrimSpace(v) == "" {
		set("Categories", "Utility;")
	}

	if _, ok := e.Get("StartupNotify"); !ok {
		set("StartupNotify", "true")
	}

	if v, ok := e.Get("NoDisplay"); ok && strings.EqualFold(v, "true") {
		e.Delete("NoDisplay")
		changed = append(changed, "NoDisplay")
	}

	return changed
}

// execArgs keeps field codes such as %U from the original Exec line.
func execArgs(e *Entry) string {
	cur, ok := e.Get("Exec")
	if !ok {
		return ""
	}

	fields := strings.Fields(cur)
	if len(fields) < 2 {
		return ""
	}

	var codes []string

	for _, f := range fields[1:] {
		if len(f) == 2 && f[0] == '%' {
			codes = append(codes, f)
		}
	}

	if len(codes) == 0 {
		return ""
	}

	return " " + strings.Join(codes, " ")
}
