// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package console

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(state OutputState) (*OutputState, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer

	o := state
	o.SetWriters(&stdout, &stderr)

	return &o, &stdout, &stderr
}

func TestOutputStateSetMode(t *testing.T) {
	t.Parallel()

	o := &OutputState{}

	o.SetMode(true, false, true)
	assert.True(t, o.Verbose)
	assert.False(t, o.JSON)
	assert.True(t, o.Plain)

	o.SetMode(false, true, false)
	assert.False(t, o.Verbose)
	assert.True(t, o.JSON)
	assert.False(t, o.Plain)
}

func TestOutputStateBold(t *testing.T) {
	tests := []struct {
		name     string
		state    OutputState
		envVars  map[string]string
		input    string
		expected string
	}{
		{
			name:     "plain mode returns unformatted",
			state:    OutputState{Plain: true},
			input:    "test",
			expected: "test",
		},
		{
			name:     "json mode returns unformatted",
			state:    OutputState{JSON: true},
			input:    "test",
			expected: "test",
		},
		{
			name:     "NO_COLOR env disables formatting",
			envVars:  map[string]string{"NO_COLOR": "1"},
			input:    "test",
			expected: "test",
		},
		{
			name:     "dumb terminal disables formatting",
			envVars:  map[string]string{"TERM": "dumb"},
			input:    "test",
			expected: "test",
		},
		{
			name:     "non-TTY returns uppercase",
			input:    "test",
			expected: "TEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", "")
			t.Setenv("TERM", "xterm")

			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			o, _, _ := newTestState(tt.state)
			assert.Equal(t, tt.expected, o.Bold(tt.input))
		})
	}
}

func TestOutputStateHeader(t *testing.T) {
	t.Setenv("NO_COLOR", "")

	o, _, _ := newTestState(OutputState{})
	assert.Equal(t, o.Bold("HEADER"), o.Header("header"))
}

func TestOutputStateMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		state    OutputState
		write    func(o *OutputState)
		expected string
	}{
		{
			name:     "warning uses symbol",
			write:    func(o *OutputState) { o.Warningf("disk %s", "low") },
			expected: "⚠ disk low\n",
		},
		{
			name:     "plain warning uses text prefix",
			state:    OutputState{Plain: true},
			write:    func(o *OutputState) { o.Warningf("disk %s", "low") },
			expected: "warning: disk low\n",
		},
		{
			name:     "error uses symbol",
			write:    func(o *OutputState) { o.Errorf("test %s", "error") },
			expected: "✗ test error\n",
		},
		{
			name:     "plain error uses text prefix",
			state:    OutputState{Plain: true},
			write:    func(o *OutputState) { o.Errorf("test %s", "error") },
			expected: "error: test error\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o, stdout, stderr := newTestState(tt.state)
			tt.write(o)

			assert.Equal(t, tt.expected, stderr.String())
			assert.Empty(t, stdout.String())
		})
	}
}

func TestOutputStateJSONResult(t *testing.T) {
	t.Parallel()

	o, stdout, _ := newTestState(OutputState{})

	o.JSONResult("success", map[string]any{"key": "value"})

	var result map[string]any

	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, "value", result["key"])
}

func TestOutputStateErrorResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		state      OutputState
		code       int
		expectJSON bool
	}{
		{
			name: "normal mode",
			code: 1,
		},
		{
			name:       "json mode",
			state:      OutputState{JSON: true},
			code:       22,
			expectJSON: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o, stdout, stderr := newTestState(tt.state)
			o.ErrorResult("test error", tt.code)

			if tt.expectJSON {
				var result map[string]any

				require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
				assert.Equal(t, "error", result["status"])
				assert.Equal(t, "test error", result["error"])
				assert.InEpsilon(t, float64(tt.code), result["code"], 0.01)
			} else {
				assert.Empty(t, stdout.String())
			}

			assert.Contains(t, stderr.String(), "test error")
		})
	}
}

func TestDefaultOutput(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, DefaultOutput)
	assert.IsType(t, &OutputState{}, DefaultOutput)
}
