// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"fmt"
	"net"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/echo-request-verifier/src/config"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/metrics"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/logger"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/server"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/verifier"
)

func newServeCmd(version string, log logger.Logger, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the webhook endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			audit, err := logger.NewAuditLog(cfg.Log.ErrorLog)
			if err != nil {
				return fmt.Errorf("failed to open error log: %w", err)
			}
			defer audit.Close()

			handler, err := newHandler(cfg, version, audit, logger.NewJSONLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", cfg.Server.Address)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Address, err)
			}

			log.Printf("Verifying requests for %s (certificates cached in %s)",
				cfg.Validation.ApplicationID, cfg.Cache.Directory)
			return server.Serve(cmd.Context(), server.New(cfg.Server, handler), ln, cfg.Server, log)
		},
	}
}

// newHandler wires the certificate cache, authenticator and router from cfg.
func newHandler(cfg *config.Config, version string, audit logger.Auditor, log logger.Logger) (http.Handler, error) {
	rec := metrics.New(metricsNamespace)

	store, err := newStore(cfg.Cache, version, rec)
	if err != nil {
		return nil, err
	}

	chain, err := newChainValidator(cfg)
	if err != nil {
		return nil, err
	}

	auth, err := verifier.New(cfg.Validation, store,
		verifier.WithAuditor(audit),
		verifier.WithMetrics(rec),
		verifier.WithChainValidator(chain),
	)
	if err != nil {
		return nil, err
	}

	return server.NewRouter(server.Options{
		Authenticator:  auth,
		Metrics:        rec,
		Logger:         log,
		WebhookPath:    cfg.Server.WebhookPath,
		MetricsPath:    cfg.Server.MetricsPath,
		ClientIPHeader: cfg.Server.ClientIPHeader,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	}), nil
}
