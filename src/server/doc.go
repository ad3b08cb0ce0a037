// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package server is the HTTP boundary of the verifier.
//
// The webhook handler reads the body into a pooled buffer, builds a
// [verifier.Request] from the transport metadata and hands it to the
// authenticator. A rejected request receives HTTP 400 with an empty body; the
// reason only reaches the audit log. An accepted request is passed to the
// [Dispatcher] and its result is written back as JSON.
//
// Example usage:
//
//	router := server.NewRouter(server.Options{
//		Authenticator: auth,
//		Metrics:       rec,
//		MetricsPath:   "/metrics",
//	})
//	srv := server.New(cfg.Server, router)
//	err := server.Serve(ctx, srv, ln, cfg.Server, log)
package server
