// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package testcert mints throwaway certificate authorities, signing certificates
// and request signatures for tests. It must only be imported from _test.go files.
package testcert

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"sync/atomic"
	"testing"
	"time"
)

// ServiceDomain is the SAN carried by the platform's signing certificate.
const ServiceDomain = "echo-api.amazon.com"

var serial atomic.Int64

// Authority is a self-signed root used to issue signing certificates.
type Authority struct {
	Cert *x509.Certificate
	Key  *rsa.PrivateKey
	PEM  []byte
}

// Leaf is a signing certificate together with its private key.
type Leaf struct {
	Cert *x509.Certificate
	Key  *rsa.PrivateKey
	// PEM holds the leaf certificate alone.
	PEM []byte
	// ChainPEM holds the leaf followed by the issuing authority.
	ChainPEM []byte
}

// LeafOptions configures [Authority.Issue]. Zero times default to a window
// of one hour in the past to one day in the future.
type LeafOptions struct {
	DNSNames  []string
	NotBefore time.Time
	NotAfter  time.Time
}

// NewAuthority creates a fresh root certificate authority.
func NewAuthority(tb testing.TB) *Authority {
	tb.Helper()

	key := newKey(tb)
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(serial.Add(1)),
		Subject:               pkix.Name{CommonName: "Test Signing Root", Organization: []string{"echo-request-verifier"}},
		NotBefore:             now.Add(-24 * time.Hour),
		NotAfter:              now.Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		tb.Fatalf("testcert: create authority: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		tb.Fatalf("testcert: parse authority: %v", err)
	}

	return &Authority{Cert: cert, Key: key, PEM: encode(der)}
}

// Pool returns a certificate pool holding only this authority.
func (a *Authority) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(a.Cert)
	return pool
}

// Issue signs a new leaf certificate.
func (a *Authority) Issue(tb testing.TB, opts LeafOptions) *Leaf {
	tb.Helper()

	now := time.Now()
	if opts.NotBefore.IsZero() {
		opts.NotBefore = now.Add(-time.Hour)
	}
	if opts.NotAfter.IsZero() {
		opts.NotAfter = now.Add(24 * time.Hour)
	}

	key := newKey(tb)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial.Add(1)),
		Subject:      pkix.Name{CommonName: firstOr(opts.DNSNames, "signing")},
		DNSNames:     opts.DNSNames,
		NotBefore:    opts.NotBefore,
		NotAfter:     opts.NotAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, a.Cert, &key.PublicKey, a.Key)
	if err != nil {
		tb.Fatalf("testcert: issue leaf: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		tb.Fatalf("testcert: parse leaf: %v", err)
	}

	leafPEM := encode(der)
	chainPEM := append(append([]byte(nil), leafPEM...), a.PEM...)

	return &Leaf{Cert: cert, Key: key, PEM: leafPEM, ChainPEM: chainPEM}
}

// SignSHA1 returns the base64 encoded RSA PKCS#1 v1.5 SHA-1 signature of body.
func (l *Leaf) SignSHA1(tb testing.TB, body []byte) string {
	tb.Helper()
	sum := sha1.Sum(body)
	return l.sign(tb, crypto.SHA1, sum[:])
}

// SignSHA256 returns the base64 encoded RSA PKCS#1 v1.5 SHA-256 signature of body.
func (l *Leaf) SignSHA256(tb testing.TB, body []byte) string {
	tb.Helper()
	sum := sha256.Sum256(body)
	return l.sign(tb, crypto.SHA256, sum[:])
}

func (l *Leaf) sign(tb testing.TB, hash crypto.Hash, digest []byte) string {
	tb.Helper()
	sig, err := rsa.SignPKCS1v15(rand.Reader, l.Key, hash, digest)
	if err != nil {
		tb.Fatalf("testcert: sign: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sig)
}

func newKey(tb testing.TB) *rsa.PrivateKey {
	tb.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("testcert: generate key: %v", err)
	}
	return key
}

func encode(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func firstOr(names []string, fallback string) string {
	if len(names) > 0 {
		return names[0]
	}
	return fallback
}
