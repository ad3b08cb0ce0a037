// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"crypto/x509"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/echo-request-verifier/src/config"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/certcache"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/policy"
	x509certs "github.com/H0llyW00dzZ/echo-request-verifier/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/echo-request-verifier/src/internal/x509/chain"
)

func newCacheCmd(version string, configPath *string) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the signing certificate cache",
	}

	cacheCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List cached certificate chains as a table",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, store, err := openStore(*configPath, version)
				if err != nil {
					return err
				}

				summaries, err := summarize(store, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), x509chain.RenderTable(summaries))
				return nil
			},
		},
		&cobra.Command{
			Use:   "prune",
			Short: "Remove expired and unparsable certificate chains",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, store, err := openStore(*configPath, version)
				if err != nil {
					return err
				}

				removed, err := store.Prune(time.Now())
				for _, fp := range removed {
					fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", fp)
				}
				if err != nil {
					return fmt.Errorf("prune stopped after %d entries: %w", len(removed), err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d entries removed\n", len(removed))
				return nil
			},
		},
		&cobra.Command{
			Use:   "fetch URL",
			Short: "Download and validate a certificate chain ahead of the first request",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, store, err := openStore(*configPath, version)
				if err != nil {
					return err
				}

				uri := args[0]
				if err := policy.New(cfg.Validation.CertHost, cfg.Validation.CertPathPrefix).Check(uri); err != nil {
					return err
				}

				data, err := store.FetchOrLoad(cmd.Context(), uri)
				if err != nil {
					return err
				}

				chain, err := newChainValidator(cfg)
				if err != nil {
					return err
				}
				now := time.Now()
				cert, err := chain.Check(data, now)
				if err != nil {
					return fmt.Errorf("cached %s but it does not validate: %w", certcache.Fingerprint(uri), err)
				}

				summary := x509chain.Summarize(certcache.Fingerprint(uri), cert.Leaf, now)
				fmt.Fprint(cmd.OutOrStdout(), x509chain.RenderTable([]x509chain.Summary{summary}))
				return nil
			},
		},
	)

	return cacheCmd
}

// openStore reads the configuration without requiring an application id and opens the cache.
func openStore(configPath, version string) (*config.Config, *certcache.Store, error) {
	cfg, err := config.Read(configPath)
	if err != nil {
		return nil, nil, err
	}

	store, err := newStore(cfg.Cache, version, nil)
	if err != nil {
		return nil, nil, err
	}

	return cfg, store, nil
}

// summarize describes every cached chain at now. Entries that fail to parse
// are listed as unparsable rather than skipped.
func summarize(store *certcache.Store, now time.Time) ([]x509chain.Summary, error) {
	entries, err := store.Entries()
	if err != nil {
		return nil, err
	}

	decoder := x509certs.NewDecoder()
	summaries := make([]x509chain.Summary, 0, len(entries))
	for _, e := range entries {
		var leaf *x509.Certificate
		if data, err := store.Load(e.Fingerprint); err == nil {
			leaf, _ = decoder.Decode(data)
		}
		summaries = append(summaries, x509chain.Summarize(e.Fingerprint, leaf, now))
	}

	return summaries, nil
}
