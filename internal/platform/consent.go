// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package platform

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Constants for consent responses.
const (
	ConsentYes = "yes"
	ConsentY   = "y"
)

// ConsolePrompter implements domain.Prompter on the controlling terminal.
// A huh confirm dialog is used on a TTY, a plain y/N line otherwise.
type ConsolePrompter struct {
	autoYes bool
	in      io.Reader
	out     io.Writer
	isTTY   func() bool
}

// NewConsolePrompter creates a prompter on stdin/stdout. With autoYes every
// confirmation is accepted without asking.
func NewConsolePrompter(autoYes bool) *ConsolePrompter {
	p := NewReaderPrompter(autoYes, os.Stdin, os.Stdout)
	p.isTTY = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) } //nolint:gosec

	return p
}

// NewReaderPrompter creates a line-based prompter for scripted input.
func NewReaderPrompter(autoYes bool, in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{
		autoYes: autoYes,
		in:      in,
		out:     out,
		isTTY:   func() bool { return false },
	}
}

// Confirm asks the user to approve an action.
func (p *ConsolePrompter) Confirm(title, description string) (bool, error) {
	if !p.autoYes && p.isTTY() {
		confirmed := false

		err := huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Yes").
			Negative("No").
			Value(&confirmed).
			Run()
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}

		if err != nil {
			return false, fmt.Errorf("confirmation prompt failed: %w", err)
		}

		return confirmed, nil
	}

	prompt := title
	if description != "" {
		prompt = description + "\n" + title
	}

	return PromptConsentWithReader(prompt, p.autoYes, p.in, p.out)
}

// PromptConsentWithReader is a testable version of prompt consent.
// It accepts custom reader and writer for testing.
func PromptConsentWithReader(prompt string, autoYes bool, reader io.Reader, writer io.Writer) (bool, error) {
	if autoYes {
		_, _ = fmt.Fprintf(writer, "Auto-accepting: %s\n", prompt)
		return true, nil
	}

	_, _ = fmt.Fprintf(writer, "%s [y/N]: ", prompt)

	response, err := bufio.NewReader(reader).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	response = strings.TrimSpace(strings.ToLower(response))

	return response == ConsentY || response == ConsentYes, nil
}
