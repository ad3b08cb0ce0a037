// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509certs

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"errors"

	"github.com/cloudflare/cfssl/crypto/pkcs7"
)

var (
	// ErrEmpty indicates that no data was supplied.
	ErrEmpty = errors.New("x509certs: empty certificate data")

	// ErrInvalidBlockType indicates that a PEM block is not a certificate block.
	ErrInvalidBlockType = errors.New("x509certs: invalid block type")

	// ErrParseCertificate indicates a failure to parse the certificate from the provided data.
	ErrParseCertificate = errors.New("x509certs: failed to parse certificate")

	// ErrNoCertificates indicates that the data did not contain a single certificate.
	ErrNoCertificates = errors.New("x509certs: no certificates found")
)

const certBlockType = "CERTIFICATE"

// Decoder turns signing certificate chain documents into [X.509] certificates.
//
// The platform serves the chain as concatenated PEM blocks, leaf first.
// Raw DER and [PKCS7] bundles are accepted as well so that a locally seeded
// cache entry does not have to be converted by hand.
//
// [X.509]: https://grokipedia.com/page/X.509
// [PKCS7]: https://grokipedia.com/page/PKCS_7
type Decoder struct{}

// NewDecoder creates a new Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

// IsPEM reports whether data starts with (possibly after whitespace) a PEM block.
func (d *Decoder) IsPEM(data []byte) bool {
	block, _ := pem.Decode(data)
	return block != nil
}

// DecodeChain decodes every certificate in data, preserving order.
// The first element is the leaf.
func (d *Decoder) DecodeChain(data []byte) ([]*x509.Certificate, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}

	if d.IsPEM(data) {
		return d.decodePEMChain(data)
	}

	if certs, err := x509.ParseCertificates(data); err == nil && len(certs) > 0 {
		return certs, nil
	}

	p, err := pkcs7.ParsePKCS7(data)
	if err != nil {
		return nil, ErrParseCertificate
	}
	if len(p.Content.SignedData.Certificates) == 0 {
		return nil, ErrNoCertificates
	}

	return p.Content.SignedData.Certificates, nil
}

func (d *Decoder) decodePEMChain(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate

	for {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != certBlockType {
			return nil, ErrInvalidBlockType
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, ErrParseCertificate
		}

		certs = append(certs, cert)
		data = rest
	}

	if len(certs) == 0 {
		return nil, ErrNoCertificates
	}

	return certs, nil
}

// Decode decodes the leaf certificate from data.
func (d *Decoder) Decode(data []byte) (*x509.Certificate, error) {
	certs, err := d.DecodeChain(data)
	if err != nil {
		return nil, err
	}
	return certs[0], nil
}
