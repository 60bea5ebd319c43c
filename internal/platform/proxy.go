// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package platform

import (
	"net/http"
	"os"
	"time"
)

// NewHTTPClient returns an HTTP client honoring HTTP_PROXY, HTTPS_PROXY and NO_PROXY.
// A zero timeout leaves the deadline to the request context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
		},
	}
}

// proxyValue returns the lowercase variable, falling back to uppercase.
// Lowercase takes precedence per Unix convention.
func proxyValue(name string, upper string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}

	return os.Getenv(upper)
}

// GetProxyEnv returns proxy variables for child processes (apt, curl, wget),
// exported in both cases so every tool picks them up.
func GetProxyEnv() []string {
	var proxyEnv []string

	for _, pair := range [][2]string{
		{"http_proxy", "HTTP_PROXY"},
		{"https_proxy", "HTTPS_PROXY"},
		{"no_proxy", "NO_PROXY"},
	} {
		if v := proxyValue(pair[0], pair[1]); v != "" {
			proxyEnv = append(proxyEnv, pair[0]+"="+v, pair[1]+"="+v)
		}
	}

	return proxyEnv
}

// ConfigureAPTProxy returns apt-get -o options for the configured proxies.
// It returns nil when no proxy is set.
func ConfigureAPTProxy() []string {
	var args []string

	if httpProxy := proxyValue("http_proxy", "HTTP_PROXY"); httpProxy != "" {
		args = append(args, "-o", "Acquire::http::Proxy="+httpProxy)
	}

	if httpsProxy := proxyValue("https_proxy", "HTTPS_PROXY"); httpsProxy != "" {
		args = append(args, "-o", "Acquire::https::Proxy="+httpsProxy)
	}

	return args
}
