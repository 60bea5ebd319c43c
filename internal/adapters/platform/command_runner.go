// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package platform provides the host adapters: command execution, files,
// system detection and HTTP.
package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/logging"
	"github.com/bradsec/debapps/internal/platform"
)

// CommandRunner implements the CommandRunner port for real system commands.
type CommandRunner struct {
	verbose bool
	dryRun  bool
	quiet   bool // capture child output instead of streaming it to the terminal
	isRoot  bool
	logger  logging.Logger
}

var _ domain.CommandRunner = (*CommandRunner)(nil)

// NewCommandRunner creates a new command runner.
func NewCommandRunner(verbose, dryRun bool, logger logging.Logger) *CommandRunner {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &CommandRunner{
		verbose: verbose,
		dryRun:  dryRun,
		isRoot:  os.Geteuid() == 0,
		logger:  logger,
	}
}

// NewQuietCommandRunner creates a runner that never writes to the terminal,
// for JSON output.
func NewQuietCommandRunner(verbose, dryRun bool, logger logging.Logger) *CommandRunner {
	r := NewCommandRunner(verbose, dryRun, logger)
	r.quiet = true

	return r
}

func (r *CommandRunner) announce(kind, name string, args []string) bool {
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))

	if r.verbose {
		r.logger.Info("executing", "kind", kind, "cmd", line)
	} else {
		r.logger.Debug("executing", "kind", kind, "cmd", line)
	}

	if r.dryRun {
		if !r.quiet {
			fmt.Printf("DRY RUN: %s\n", line)
		}

		return true
	}

	return false
}

// Execute runs a command and returns the result.
func (r *CommandRunner) Execute(ctx context.Context, name string, args ...string) error {
	if r.announce("exec", name, args) {
		return nil
	}

	// #nosec G204 - commands are fixed tool names with catalog-validated arguments
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), platform.GetProxyEnv()...)

	return r.run(cmd)
}

// ExecuteInDir runs a command inside dir.
func (r *CommandRunner) ExecuteInDir(ctx context.Context, dir, name string, args ...string) error {
	if r.announce("exec", name, args) {
		return nil
	}

	// #nosec G204
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), platform.GetProxyEnv()...)

	// extraction tools are chatty; their output never reaches the terminal
	return r.capture(cmd)
}

// ExecuteWithOutput runs a command and returns the output.
func (r *CommandRunner) ExecuteWithOutput(ctx context.Context, name string, args ...string) (string, error) {
	r.logger.Debug("executing", "kind", "query", "cmd", name+" "+strings.Join(args, " "))

	// queries run even in dry-run mode; they change nothing
	// #nosec G204
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return string(output), fmt.Errorf("command failed: %w (stderr: %s)", err, msg)
		}

		return string(output), fmt.Errorf("command failed: %w", err)
	}

	return string(output), nil
}

// ExecuteSudo runs a command with sudo privileges. When already root the
// command runs directly.
func (r *CommandRunner) ExecuteSudo(ctx context.Context, name string, args ...string) error {
	if r.isRoot {
		return r.Execute(ctx, name, args...)
	}

	if r.announce("sudo", name, args) {
		return nil
	}

	allArgs := append([]string{"-E", name}, args...)
	// #nosec G204 - This is intentional command execution with validated input
	cmd := exec.CommandContext(ctx, "sudo", allArgs...)
	cmd.Env = append(os.Environ(), platform.GetProxyEnv()...)

	return r.run(cmd)
}

// CommandExists checks if a command is available on the system.
func (r *CommandRunner) CommandExists(name string) bool {
	_, err := exec.LookPath(name)

	return err == nil
}

func (r *CommandRunner) run(cmd *exec.Cmd) error {
	if r.quiet {
		return r.capture(cmd)
	}

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// capture runs cmd with its output buffered and folds stderr into the error.
func (r *CommandRunner) capture(cmd *exec.Cmd) error {
	var stderr bytes.Buffer

	cmd.Stdout = &bytes.Buffer{}
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("command failed: %w (stderr: %s)", err, lastLines(msg, 5))
		}

		return fmt.Errorf("command failed: %w", err)
	}

	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	return strings.Join(lines, "\n")
}

// ErrMockCommandFailed is returned by MockCommandRunner for commands set to fail.
var ErrMockCommandFailed = errors.New("mock command failed")

// MockCommandRunner implements the CommandRunner port for testing. It
// records every command and answers from preset outputs.
type MockCommandRunner struct {
	mu       sync.Mutex
	commands map[string]string // command -> expected output
	failures map[string]error
	missing  map[string]bool
	calls    []string
	verbose  bool
}

var _ domain.CommandRunner = (*MockCommandRunner)(nil)

// NewMockCommandRunner creates a new mock command runner for testing.
func NewMockCommandRunner(verbose bool) *MockCommandRunner {
	return &MockCommandRunner{
		commands: make(map[string]string),
		failures: make(map[string]error),
		missing:  make(map[string]bool),
		verbose:  verbose,
	}
}

// SetMockOutput sets the expected output for a command.
func (r *MockCommandRunner) SetMockOutput(command, output string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands[command] = output
}

// SetMockError makes a command fail. A nil err selects ErrMockCommandFailed.
func (r *MockCommandRunner) SetMockError(command string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err == nil {
		err = ErrMockCommandFailed
	}

	r.failures[command] = err
}

// SetCommandMissing makes CommandExists report false for name.
func (r *MockCommandRunner) SetCommandMissing(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.missing[name] = true
}

// Calls returns every command run so far, sudo commands prefixed "sudo ".
func (r *MockCommandRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.calls...)
}

// Ran reports whether command was run.
func (r *MockCommandRunner) Ran(command string) bool {
	for _, c := range r.Calls() {
		if c == command {
			return true
		}
	}

	return false
}

func (r *MockCommandRunner) record(fullCommand string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.verbose {
		fmt.Printf("MOCK: Executing %s\n", fullCommand)
	}

	r.calls = append(r.calls, fullCommand)

	return r.commands[fullCommand], r.failures[fullCommand]
}

func join(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

// Execute runs a mock command.
func (r *MockCommandRunner) Execute(_ context.Context, name string, args ...string) error {
	_, err := r.record(join(name, args))
	return err
}

// ExecuteInDir runs a mock command; the directory is not recorded.
func (r *MockCommandRunner) ExecuteInDir(_ context.Context, _ string, name string, args ...string) error {
	_, err := r.record(join(name, args))
	return err
}

// ExecuteWithOutput runs a mock command and returns preset output.
func (r *MockCommandRunner) ExecuteWithOutput(_ context.Context, name string, args ...string) (string, error) {
	return r.record(join(name, args))
}

// ExecuteSudo runs a mock sudo command.
func (r *MockCommandRunner) ExecuteSudo(_ context.Context, name string, args ...string) error {
	_, err := r.record("sudo " + join(name, args))
	return err
}

// CommandExists reports true unless the command was marked missing.
func (r *MockCommandRunner) CommandExists(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return !r.missing[name]
}
