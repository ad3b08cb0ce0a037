// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package verifier

import (
	"errors"
	"fmt"
)

// Reason identifies why a request was rejected.
type Reason string

// Rejection reasons, in the order the checks run.
const (
	NotHTTPContext        Reason = "NotHttpContext"
	WrongMethod           Reason = "WrongMethod"
	PrivateSourceAddress  Reason = "PrivateSourceAddress"
	MalformedPayload      Reason = "MalformedPayload"
	ApplicationIDMismatch Reason = "ApplicationIdMismatch"
	PolicyViolation       Reason = "PolicyViolation"
	CertificateFetchError Reason = "CertificateFetchError"
	CertificateParseError Reason = "CertificateParseError"
	DomainMismatch        Reason = "DomainMismatch"
	CertificateExpired    Reason = "CertificateExpired"
	ChainUntrusted        Reason = "ChainUntrusted"
	MissingSignature      Reason = "MissingSignature"
	SignatureInvalid      Reason = "SignatureInvalid"
	RequestTooOld         Reason = "RequestTooOld"
)

// RejectionError is returned by [Authenticator.Validate] for every rejected request.
type RejectionError struct {
	Reason Reason
	Err    error
}

func (e *RejectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("verifier: request rejected: %s", e.Reason)
	}
	return fmt.Sprintf("verifier: request rejected: %s: %v", e.Reason, e.Err)
}

func (e *RejectionError) Unwrap() error { return e.Err }

// ReasonOf returns the rejection reason carried by err, or "" if err is not a rejection.
func ReasonOf(err error) Reason {
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return rejection.Reason
	}
	return ""
}

func reject(reason Reason, err error) *RejectionError {
	return &RejectionError{Reason: reason, Err: err}
}
