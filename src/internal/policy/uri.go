// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package policy restricts where a signing certificate chain may be downloaded from.
//
// The certificate URL travels in a request header, so without this check a
// caller could point it at infrastructure it controls and sign requests with
// its own key.
package policy

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

const (
	// DefaultHost is the only host the platform serves signing certificates from.
	DefaultHost = "s3.amazonaws.com"
	// DefaultPathPrefix is the path every signing certificate lives under.
	DefaultPathPrefix = "/echo.api/"
)

var (
	// ErrPolicy is wrapped by every policy violation.
	ErrPolicy = errors.New("policy: certificate URL violates download policy")

	// ErrHost indicates the URL host is not the allowed certificate host.
	ErrHost = fmt.Errorf("%w: host not allowed", ErrPolicy)

	// ErrPath indicates the URL path does not start with the allowed prefix.
	ErrPath = fmt.Errorf("%w: path not allowed", ErrPolicy)

	// ErrScheme indicates the URL scheme is not https.
	ErrScheme = fmt.Errorf("%w: scheme not https", ErrPolicy)

	// ErrPort indicates an explicit port other than 443.
	ErrPort = fmt.Errorf("%w: port not 443", ErrPolicy)
)

// Validator checks certificate chain URLs against a host and path prefix.
type Validator struct {
	host       string
	pathPrefix string
}

// New creates a Validator. Empty arguments select [DefaultHost] and [DefaultPathPrefix].
func New(host, pathPrefix string) *Validator {
	if host == "" {
		host = DefaultHost
	}
	if pathPrefix == "" {
		pathPrefix = DefaultPathPrefix
	}
	return &Validator{host: host, pathPrefix: pathPrefix}
}

// Check reports whether uri may be used as a certificate chain source.
//
// The host and scheme are compared case-insensitively, the path prefix is
// case-sensitive and applied to the dot-segment-resolved path, and an explicit
// port must be 443. Checks run host, path, scheme, port; the first failure is returned.
func (v *Validator) Check(uri string) error {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPolicy, err)
	}

	if !strings.EqualFold(u.Hostname(), v.host) {
		return fmt.Errorf("%w: %q", ErrHost, u.Hostname())
	}

	if !strings.HasPrefix(cleanPath(u.Path), v.pathPrefix) {
		return fmt.Errorf("%w: %q", ErrPath, u.Path)
	}

	if !strings.EqualFold(u.Scheme, "https") {
		return fmt.Errorf("%w: %q", ErrScheme, u.Scheme)
	}

	if p := u.Port(); p != "" && p != "443" {
		return fmt.Errorf("%w: %q", ErrPort, p)
	}

	return nil
}

// cleanPath resolves dot segments while keeping a trailing slash, so that
// "/echo.api/../x" cannot pass a "/echo.api/" prefix check.
func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}
