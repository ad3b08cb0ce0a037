// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/echo-request-verifier/src/config"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/certcache"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/helper/posix"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/metrics"
	x509chain "github.com/H0llyW00dzZ/echo-request-verifier/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/logger"
)

const (
	metricsNamespace = "echo_verifier"
	parsedCacheTTL   = time.Hour
)

// Execute runs the root command with the process arguments.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM; stops the server gracefully
//   - version: Reported by --version and in the download User-Agent
//   - log: Operational logger
//
// Returns:
//   - error: The first error of the executed subcommand
func Execute(ctx context.Context, version string, log logger.Logger) error {
	return newRootCmd(version, log).ExecuteContext(ctx)
}

func newRootCmd(version string, log logger.Logger) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           posix.ExecutableName("echo-request-verifier"),
		Short:         "Verify signed webhook requests from the voice assistant platform",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("configuration file, JSON or YAML (default: $%s)", config.EnvConfigFile))

	rootCmd.AddCommand(
		newServeCmd(version, log, &configPath),
		newCacheCmd(version, &configPath),
	)

	return rootCmd
}

// newStore builds the certificate cache described by cfg.
func newStore(cfg config.Cache, version string, rec *metrics.Recorder) (*certcache.Store, error) {
	httpCfg := certcache.NewHTTPConfig(version)
	httpCfg.Timeout = cfg.FetchTimeout()

	opts := []certcache.Option{
		certcache.WithHTTPConfig(httpCfg),
		certcache.WithMaxBytes(cfg.MaxCertificateBytes),
		certcache.WithMetrics(rec),
	}
	if cfg.BreakerFailures > 0 {
		opts = append(opts, certcache.WithBreaker(uint32(cfg.BreakerFailures), cfg.BreakerCooldown()))
	}

	return certcache.New(cfg.Directory, opts...)
}

// newChainValidator builds the chain validator described by cfg.
func newChainValidator(cfg *config.Config) (*x509chain.Validator, error) {
	var opts []x509chain.Option

	switch {
	case cfg.Validation.SkipChainVerification:
		opts = append(opts, x509chain.WithoutChainVerification())
	case cfg.Validation.TrustedRootsFile != "":
		data, err := os.ReadFile(cfg.Validation.TrustedRootsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read trusted roots: %w", err)
		}
		roots, err := x509chain.LoadRoots(data)
		if err != nil {
			return nil, err
		}
		opts = append(opts, x509chain.WithRoots(roots))
	}

	if cfg.Cache.ParsedCacheSize > 0 {
		opts = append(opts, x509chain.WithParseCache(cfg.Cache.ParsedCacheSize, parsedCacheTTL))
	}

	return x509chain.New(cfg.Validation.ServiceDomain, opts...), nil
}
