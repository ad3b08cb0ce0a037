// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
	"time"

	x509certs "github.com/H0llyW00dzZ/echo-request-verifier/src/internal/x509/certs"
)

var (
	// ErrParse indicates the signing certificate chain could not be decoded.
	ErrParse = errors.New("x509chain: failed to parse signing certificate")

	// ErrDomainMismatch indicates the trusted service domain is missing from the leaf SANs.
	ErrDomainMismatch = errors.New("x509chain: service domain not present in subject alternative names")

	// ErrExpired indicates the current time is outside the leaf validity window.
	ErrExpired = errors.New("x509chain: signing certificate expired or not yet valid")

	// ErrUntrusted indicates the leaf does not chain to a trusted root.
	ErrUntrusted = errors.New("x509chain: signing certificate does not chain to a trusted root")
)

// Certificate is the parsed form of a cached signing certificate chain.
// It lives in memory only and is never persisted.
type Certificate struct {
	Leaf          *x509.Certificate
	Intermediates []*x509.Certificate
}

// PublicKey returns the key used to verify request signatures.
func (c *Certificate) PublicKey() crypto.PublicKey { return c.Leaf.PublicKey }

// Validator checks signing certificate chains against the trusted service domain.
//
// Validator is safe for concurrent use.
type Validator struct {
	domain      string
	roots       *x509.CertPool
	verifyChain bool
	decoder     *x509certs.Decoder
	parsed      *parseCache
}

// Option configures a [Validator].
type Option func(*Validator)

// WithRoots sets the root pool used for chain verification.
// A nil pool selects the system roots.
func WithRoots(roots *x509.CertPool) Option {
	return func(v *Validator) { v.roots = roots }
}

// WithoutChainVerification disables verification of the leaf against a root pool.
// The SAN and validity window checks still apply.
func WithoutChainVerification() Option {
	return func(v *Validator) { v.verifyChain = false }
}

// WithParseCache memoises parse results for up to size chains, each for at most ttl.
func WithParseCache(size int, ttl time.Duration) Option {
	return func(v *Validator) { v.parsed = newParseCache(size, ttl) }
}

// New creates a Validator requiring domain to be among the leaf's SANs.
//
// Parameters:
//   - domain: Trusted service domain (e.g. echo-api.amazon.com)
//   - opts: Optional behaviour
//
// Returns:
//   - *Validator: New Validator with chain verification against system roots enabled
func New(domain string, opts ...Option) *Validator {
	v := &Validator{
		domain:      domain,
		verifyChain: true,
		decoder:     x509certs.NewDecoder(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check parses pemBytes and validates the resulting chain at now.
//
// The checks run in order: parse, subject alternative name, validity window
// (inclusive on both ends) and, unless disabled, chain of trust.
//
// Returns:
//   - *Certificate: The parsed chain, whose public key verifies request signatures
//   - error: One of ErrParse, ErrDomainMismatch, ErrExpired or ErrUntrusted (wrapped)
func (v *Validator) Check(pemBytes []byte, now time.Time) (*Certificate, error) {
	cert, err := v.parse(pemBytes)
	if err != nil {
		return nil, err
	}

	if !v.hasDomain(cert.Leaf) {
		return nil, fmt.Errorf("%w: want %q, have %v", ErrDomainMismatch, v.domain, cert.Leaf.DNSNames)
	}

	if now.Before(cert.Leaf.NotBefore) || now.After(cert.Leaf.NotAfter) {
		return nil, fmt.Errorf("%w: valid %s to %s, now %s", ErrExpired,
			cert.Leaf.NotBefore.UTC().Format(time.RFC3339),
			cert.Leaf.NotAfter.UTC().Format(time.RFC3339),
			now.UTC().Format(time.RFC3339))
	}

	if v.verifyChain {
		if err := v.verify(cert, now); err != nil {
			return nil, err
		}
	}

	return cert, nil
}

func (v *Validator) parse(pemBytes []byte) (*Certificate, error) {
	if cert, ok := v.parsed.get(pemBytes); ok {
		return cert, nil
	}

	certs, err := v.decoder.DecodeChain(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	cert := &Certificate{Leaf: certs[0], Intermediates: certs[1:]}
	v.parsed.add(pemBytes, cert)
	return cert, nil
}

func (v *Validator) hasDomain(leaf *x509.Certificate) bool {
	for _, name := range leaf.DNSNames {
		if strings.EqualFold(name, v.domain) {
			return true
		}
	}
	return false
}

// verify checks that the leaf is validly signed through the supplied
// intermediates up to one of the configured roots.
func (v *Validator) verify(cert *Certificate, now time.Time) error {
	intermediates := x509.NewCertPool()
	for _, c := range cert.Intermediates {
		intermediates.AddCert(c)
	}

	opts := x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: intermediates,
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}

	if _, err := cert.Leaf.Verify(opts); err != nil {
		// Keep the original error for diagnostics (unknown authority, expiry of an intermediate, ...).
		return fmt.Errorf("%w: %w", ErrUntrusted, err)
	}

	return nil
}

// LoadRoots builds a root pool from a PEM, DER or PKCS#7 bundle.
func LoadRoots(data []byte) (*x509.CertPool, error) {
	certs, err := x509certs.NewDecoder().DecodeChain(data)
	if err != nil {
		return nil, fmt.Errorf("x509chain: load roots: %w", err)
	}

	pool := x509.NewCertPool()
	for _, c := range certs {
		pool.AddCert(c)
	}
	return pool, nil
}
