// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package signature verifies webhook request signatures over the raw request body.
package signature

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	_ "crypto/sha1" // registers crypto.SHA1
	_ "crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is returned for every verification failure, including malformed input.
var ErrInvalid = errors.New("signature: invalid request signature")

// ErrUnknownAlgorithm is returned by [ParseAlgorithm] for unsupported names.
var ErrUnknownAlgorithm = errors.New("signature: unknown algorithm")

// Algorithm selects the hash and public key scheme of request signatures.
type Algorithm int

const (
	// SHA1WithRSA is RSA PKCS#1 v1.5 over SHA-1, sent in the "Signature" header.
	SHA1WithRSA Algorithm = iota
	// SHA256WithRSA is RSA PKCS#1 v1.5 over SHA-256, sent in the "Signature-256" header.
	SHA256WithRSA
	// ECDSAWithSHA256 is ASN.1 encoded ECDSA over SHA-256.
	ECDSAWithSHA256
)

var algorithmNames = map[Algorithm]string{
	SHA1WithRSA:     "SHA1WithRSA",
	SHA256WithRSA:   "SHA256WithRSA",
	ECDSAWithSHA256: "ECDSAWithSHA256",
}

// String returns the configuration name of the algorithm.
func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// Hash returns the digest used by the algorithm.
func (a Algorithm) Hash() crypto.Hash {
	if a == SHA1WithRSA {
		return crypto.SHA1
	}
	return crypto.SHA256
}

// Header returns the request header carrying signatures for the algorithm.
func (a Algorithm) Header() string {
	if a == SHA1WithRSA {
		return "Signature"
	}
	return "Signature-256"
}

// ParseAlgorithm maps a configuration name (case-insensitive) to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	for alg, n := range algorithmNames {
		if strings.EqualFold(n, name) {
			return alg, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// Verifier checks base64 encoded signatures with a fixed algorithm.
type Verifier struct {
	alg Algorithm
}

// New creates a Verifier for alg.
func New(alg Algorithm) *Verifier { return &Verifier{alg: alg} }

// Algorithm returns the configured algorithm.
func (v *Verifier) Algorithm() Algorithm { return v.alg }

// Verify checks sigBase64 over the exact bytes of body with pub.
// body must be the request body as received; a re-encoding of the decoded
// payload is not byte-identical and will not verify.
func (v *Verifier) Verify(body []byte, sigBase64 string, pub crypto.PublicKey) error {
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sigBase64))
	if err != nil {
		return fmt.Errorf("%w: malformed encoding", ErrInvalid)
	}
	if len(sig) == 0 {
		return fmt.Errorf("%w: empty signature", ErrInvalid)
	}

	h := v.alg.Hash().New()
	h.Write(body)
	digest := h.Sum(nil)

	switch v.alg {
	case SHA1WithRSA, SHA256WithRSA:
		key, ok := pub.(*rsa.PublicKey)
		if !ok {
			return fmt.Errorf("%w: %T is not an RSA key", ErrInvalid, pub)
		}
		if err := rsa.VerifyPKCS1v15(key, v.alg.Hash(), digest, sig); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	case ECDSAWithSHA256:
		key, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return fmt.Errorf("%w: %T is not an ECDSA key", ErrInvalid, pub)
		}
		if !ecdsa.VerifyASN1(key, digest, sig) {
			return ErrInvalid
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalid, v.alg)
	}

	return nil
}
