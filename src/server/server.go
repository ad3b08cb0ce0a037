// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/H0llyW00dzZ/echo-request-verifier/src/config"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/logger"
)

const shutdownTimeout = 10 * time.Second

// New returns an http.Server for handler configured from cfg.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Serve accepts connections on ln until ctx is cancelled, then shuts srv down
// gracefully. TLS is used when cfg names a certificate and key.
//
// Returns:
//   - nil after a clean shutdown
//   - error: If serving fails or the graceful shutdown times out
func Serve(ctx context.Context, srv *http.Server, ln net.Listener, cfg config.Server, log logger.Logger) error {
	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", ln.Addr())
		if cfg.TLSCertFile != "" {
			serverErrors <- srv.ServeTLS(ln, cfg.TLSCertFile, cfg.TLSKeyFile)
			return
		}
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		log.Printf("Shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		log.Printf("Server stopped")
		return nil
	}
}
