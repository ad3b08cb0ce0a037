// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package verifier authenticates webhook requests from the voice assistant
// platform before any business logic runs.
//
// An [Authenticator] proves that a request arrived over HTTP from a public
// address, is addressed to the configured application, was signed over its
// exact body by a certificate for the trusted service domain that is
// currently valid, and is recent. The first failing check determines the
// [Reason]; it is audited and returned inside a [*RejectionError].
//
// Example usage:
//
//	store, _ := certcache.New("cache")
//	auth, err := verifier.New(cfg.Validation, store, verifier.WithAuditor(audit))
//	if err != nil {
//		return err
//	}
//	env, err := auth.Validate(ctx, req)
//	switch verifier.ReasonOf(err) {
//	case "":
//		// accepted
//	case verifier.RequestTooOld:
//		// possible replay
//	}
package verifier
