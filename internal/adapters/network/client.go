// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package network implements the NetworkClient port over HTTP with curl and
// wget as download fallbacks.
package network

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/logging"
	"github.com/bradsec/debapps/internal/platform"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

const (
	// maxFetchSize bounds API responses and scraped pages.
	maxFetchSize = 8 << 20

	partSuffix = ".part"
)

var (
	// ErrHTMLPayload is returned when a download yields a web page instead
	// of the expected file, typically a login wall or error page.
	ErrHTMLPayload = errors.New("server returned an HTML page")
	// ErrEmptyPayload is returned when a download yields no bytes.
	ErrEmptyPayload = errors.New("server returned an empty file")
	// ErrToolMissing is returned when a fallback tool is not installed.
	ErrToolMissing = errors.New("download tool not installed")
	// ErrUnsupportedScheme is returned for download URLs that are not
	// absolute http or https URLs.
	ErrUnsupportedScheme = errors.New("download URL must be http or https")
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Options configures a Client.
type Options struct {
	UserAgent string
	// APITimeout bounds Fetch and FinalURL.
	APITimeout time.Duration
	// DownloadTimeout bounds each download attempt.
	DownloadTimeout time.Duration
	// Runner runs the curl and wget fallbacks. Nil disables them.
	Runner domain.CommandRunner
	// Progress receives a progress bar while downloading. Nil disables it.
	Progress io.Writer
	Logger   logging.Logger
}

// Client implements domain.NetworkClient.
type Client struct {
	api       *http.Client
	download  *http.Client
	userAgent string
	runner    domain.CommandRunner
	progress  io.Writer
	logger    logging.Logger
}

var _ domain.NetworkClient = (*Client)(nil)

// NewClient creates a Client. Both HTTP clients honor the proxy environment.
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = "debapps"
	}

	return &Client{
		api:       platform.NewHTTPClient(opts.APITimeout),
		download:  platform.NewHTTPClient(opts.DownloadTimeout),
		userAgent: ua,
		runner:    opts.Runner,
		progress:  opts.Progress,
		logger:    logger,
	}
}

func (c *Client) newRequest(ctx context.Context, method, url string, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// Fetch returns the body of a small document. Non-2xx answers return the
// body together with a StatusError so callers can read API error payloads.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url, headers)
	if err != nil {
		return nil, err
	}

	resp, err := c.api.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetworkFailure, err)
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &StatusError{URL: url, Code: resp.StatusCode}
	}

	return body, nil
}

// FinalURL follows redirects and returns the last location. Servers that
// reject HEAD are retried with GET.
func (c *Client) FinalURL(ctx context.Context, url string) (string, error) {
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := c.newRequest(ctx, method, url, nil)
		if err != nil {
			return "", err
		}

		resp, err := c.api.Do(req)
		if err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrNetworkFailure, err)
		}

		_ = resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 400 {
			return resp.Request.URL.String(), nil
		}

		if method == http.MethodGet || (resp.StatusCode != http.StatusMethodNotAllowed && resp.StatusCode != http.StatusForbidden) {
			return "", &StatusError{URL: url, Code: resp.StatusCode}
		}
	}

	return "", &StatusError{URL: url, Code: http.StatusMethodNotAllowed}
}

type attempt struct {
	name string
	run  func(ctx context.Context, url, part string) error
}

// DownloadFile fetches url into destPath. Attempts run in order: HTTP
// resuming a partial file, a fresh HTTP request, curl, then wget. A result
// that is empty or an HTML page counts as a failed attempt. When every
// attempt fails the error is a *domain.DownloadError listing all of them.
func (c *Client) DownloadFile(ctx context.Context, url, destPath string) error {
	if err := ValidateURL(url); err != nil {
		return &domain.DownloadError{URL: url, Attempts: []error{err}}
	}

	part := destPath + partSuffix

	attempts := []attempt{
		{"http-resume", func(ctx context.Context, url, part string) error { return c.httpDownload(ctx, url, part, true) }},
		{"http", func(ctx context.Context, url, part string) error { return c.httpDownload(ctx, url, part, false) }},
		{"curl", c.curlDownload},
		{"wget", c.wgetDownload},
	}

	var failures []error

	for _, a := range attempts {
		if ctx.Err() != nil {
			failures = append(failures, ctx.Err())
			break
		}

		err := a.run(ctx, url, part)
		if err == nil {
			err = validatePayload(part)
		}

		if err == nil {
			if err := os.Rename(part, destPath); err != nil {
				return fmt.Errorf("failed to move download into place: %w", err)
			}

			c.logDigest(url, destPath)

			return nil
		}

		if errors.Is(err, ErrToolMissing) {
			c.logger.Debug("download fallback unavailable", "method", a.name)
		} else {
			c.logger.Warn("download attempt failed", "method", a.name, "url", url, "err", err)
		}

		failures = append(failures, fmt.Errorf("%s: %w", a.name, err))

		// a bad payload must not be resumed by the next attempt
		if errors.Is(err, ErrHTMLPayload) || errors.Is(err, ErrEmptyPayload) {
			_ = os.Remove(part)
		}
	}

	_ = os.Remove(part)

	return &domain.DownloadError{URL: url, Attempts: failures}
}

// ValidateURL accepts only absolute http and https URLs with a host.
func ValidateURL(raw string) error {
	u, err := neturl.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedScheme, err)
	}

	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, raw)
	}

	return nil
}

func (c *Client) httpDownload(ctx context.Context, url, part string, resume bool) error {
	var offset int64

	if resume {
		info, err := os.Stat(part)
		if err != nil || info.Size() == 0 {
			// nothing to resume; the plain attempt follows
			return c.httpDownload(ctx, url, part, false)
		}

		offset = info.Size()
	}

	req, err := c.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := c.download.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNetworkFailure, err)
	}

	defer func() { _ = resp.Body.Close() }()

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC

	switch {
	case offset > 0 && resp.StatusCode == http.StatusPartialContent:
		flags = os.O_WRONLY | os.O_APPEND
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset > 0:
		// the partial file is already complete
		return nil
	case resp.StatusCode != http.StatusOK:
		return &StatusError{URL: url, Code: resp.StatusCode}
	default:
		offset = 0
	}

	if err := os.MkdirAll(filepath.Dir(part), 0o750); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	// #nosec G304 -- part is derived from a destination chosen by the installer
	out, err := os.OpenFile(part, flags, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	defer func() { _ = out.Close() }()

	var w io.Writer = out
	if c.progress != nil {
		total := int64(-1)
		if resp.ContentLength > 0 {
			total = offset + resp.ContentLength
		}

		bar := newProgressWriter(c.progress, filepath.Base(url), total, offset)
		defer bar.finish()

		w = io.MultiWriter(out, bar)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return out.Sync()
}

func (c *Client) curlDownload(ctx context.Context, url, part string) error {
	if c.runner == nil || !c.runner.CommandExists("curl") {
		return ErrToolMissing
	}

	_ = os.Remove(part)

	return c.runner.Execute(ctx, "curl", "-fsSL", "--retry", "2", "-A", c.userAgent, "-o", part, "--", url)
}

func (c *Client) wgetDownload(ctx context.Context, url, part string) error {
	if c.runner == nil || !c.runner.CommandExists("wget") {
		return ErrToolMissing
	}

	_ = os.Remove(part)

	return c.runner.Execute(ctx, "wget", "-q", "--tries=2", "-U", c.userAgent, "-O", part, "--", url)
}

// validatePayload rejects empty files and HTML pages.
func validatePayload(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("download produced no file: %w", err)
	}

	if info.Size() == 0 {
		return ErrEmptyPayload
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("failed to inspect download: %w", err)
	}

	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/html") {
			return ErrHTMLPayload
		}
	}

	return nil
}

func (c *Client) logDigest(url, path string) {
	// #nosec G304
	f, err := os.Open(path)
	if err != nil {
		return
	}

	defer func() { _ = f.Close() }()

	h := sha256.New()

	n, err := io.Copy(h, f)
	if err != nil {
		return
	}

	c.logger.Info("downloaded",
		"file", filepath.Base(path),
		"size", humanize.Bytes(uint64(n)), //nolint:gosec
		"sha256", hex.EncodeToString(h.Sum(nil)),
		"source", strings.SplitN(url, "?", 2)[0],
	)
}
