// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package network_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bradsec/debapps/internal/adapters/network"
	"github.com/bradsec/debapps/internal/adapters/platform"
	"github.com/bradsec/debapps/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_DownloadFile(t *testing.T) {
	t.Parallel()

	large := bytes.Repeat([]byte{0x1f, 0x8b, 0x08, 0x00}, 256*1024)

	tests := []struct {
		name        string
		serverFunc  func(w http.ResponseWriter, r *http.Request)
		wantErr     error
		wantContent []byte
	}{
		{
			name: "successful download",
			serverFunc: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("\x7fELF binary"))
			},
			wantContent: []byte("\x7fELF binary"),
		},
		{
			name: "large file download",
			serverFunc: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write(large)
			},
			wantContent: large,
		},
		{
			name: "server returns 404",
			serverFunc: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantErr: domain.ErrDownload,
		},
		{
			name: "html login wall",
			serverFunc: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte("<!DOCTYPE html><html><head><title>Sign in</title></head><body></body></html>"))
			},
			wantErr: network.ErrHTMLPayload,
		},
		{
			name:       "empty body",
			serverFunc: func(http.ResponseWriter, *http.Request) {},
			wantErr:    network.ErrEmptyPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(tt.serverFunc))
			defer server.Close()

			destPath := filepath.Join(t.TempDir(), "artifact")
			client := network.NewClient(network.Options{})

			err := client.DownloadFile(context.Background(), server.URL+"/artifact", destPath)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.NoFileExists(t, destPath)
				assert.NoFileExists(t, destPath+".part")

				var dlErr *domain.DownloadError
				require.ErrorAs(t, err, &dlErr)
				assert.Len(t, dlErr.Attempts, 4, "every method is tried")

				return
			}

			require.NoError(t, err)

			content, err := os.ReadFile(filepath.Clean(destPath))
			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, content)
		})
	}
}

func TestClient_DownloadResumesPartialFile(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("0123456789"), 1000)

	var sawRange atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			sawRange.Store(true)
		}

		http.ServeContent(w, r, "file.bin", time.Time{}, bytes.NewReader(payload))
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(destPath+".part", payload[:4000], 0o600))

	err := network.NewClient(network.Options{}).DownloadFile(context.Background(), server.URL, destPath)
	require.NoError(t, err)

	assert.True(t, sawRange.Load())

	content, err := os.ReadFile(filepath.Clean(destPath))
	require.NoError(t, err)
	assert.Equal(t, payload, content)
}

func TestClient_DownloadFallsBackToTools(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	runner := platform.NewMockCommandRunner(false)
	destPath := filepath.Join(t.TempDir(), "artifact")
	url := server.URL + "/artifact"

	err := network.NewClient(network.Options{Runner: runner, UserAgent: "debapps-test"}).
		DownloadFile(context.Background(), url, destPath)
	require.ErrorIs(t, err, domain.ErrDownload)

	part := destPath + ".part"
	assert.Equal(t, []string{
		"curl -fsSL --retry 2 -A debapps-test -o " + part + " " + url,
		"wget -q --tries=2 -U debapps-test -O " + part + " " + url,
	}, runner.Calls())
}

func TestClient_DownloadRejectsUnsupportedURLs(t *testing.T) {
	t.Parallel()

	secret := filepath.Join(t.TempDir(), "secret.bin")
	require.NoError(t, os.WriteFile(secret, []byte("\x7fELF-local-secret"), 0o600))

	tests := []struct {
		name string
		url  string
	}{
		{"local file", "file://" + secret},
		{"ftp", "ftp://example.com/tool.deb"},
		{"option injection", "-o/etc/x"},
		{"relative path", "/releases/tool.AppImage"},
		{"missing host", "https:///tool.AppImage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := platform.NewMockCommandRunner(false)
			destPath := filepath.Join(t.TempDir(), "artifact")

			err := network.NewClient(network.Options{Runner: runner}).
				DownloadFile(context.Background(), tt.url, destPath)

			require.ErrorIs(t, err, domain.ErrDownload)
			require.ErrorIs(t, err, network.ErrUnsupportedScheme)
			assert.NoFileExists(t, destPath)
			assert.Empty(t, runner.Calls(), "no fallback tool runs")
		})
	}
}

func TestValidateURL(t *testing.T) {
	t.Parallel()

	assert.NoError(t, network.ValidateURL("https://github.com/a/b/releases/download/v1/b.AppImage"))
	assert.NoError(t, network.ValidateURL("http://mirror.example.org/x.tar.gz"))
	assert.ErrorIs(t, network.ValidateURL("file:///etc/passwd"), network.ErrUnsupportedScheme)
	assert.ErrorIs(t, network.ValidateURL("--output=/tmp/x"), network.ErrUnsupportedScheme)
}

func TestClient_DownloadHonoursContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
		_, _ = w.Write([]byte("slow content"))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := network.NewClient(network.Options{}).DownloadFile(ctx, server.URL, filepath.Join(t.TempDir(), "f"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}

func TestClient_DownloadShowsProgress(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte{0x7f}, 4096))
	}))
	defer server.Close()

	var out bytes.Buffer

	client := network.NewClient(network.Options{Progress: &out})
	require.NoError(t, client.DownloadFile(context.Background(), server.URL+"/tool.AppImage", filepath.Join(t.TempDir(), "f")))

	assert.Contains(t, out.String(), "tool.AppImage")
	assert.True(t, strings.HasSuffix(out.String(), "\n"))
}

func TestClient_Fetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))

			return
		}

		_, _ = w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer server.Close()

	client := network.NewClient(network.Options{UserAgent: "debapps/1.0"})

	body, err := client.Fetch(context.Background(), server.URL, map[string]string{"Authorization": "Bearer token"})
	require.NoError(t, err)
	assert.Equal(t, "debapps/1.0", string(body))

	body, err = client.Fetch(context.Background(), server.URL, nil)

	var statusErr *network.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.Contains(t, string(body), "Bad credentials", "error payload is returned for the caller")
}

func TestClient_FinalURL(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/releases/Cursor-1.2.3-x86_64.AppImage", http.StatusFound)
	})
	mux.HandleFunc("/releases/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	final, err := network.NewClient(network.Options{}).FinalURL(context.Background(), server.URL+"/latest")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/releases/Cursor-1.2.3-x86_64.AppImage", final)
}
