// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package cli provides the command-line interface of the request verifier.
// It implements a Cobra-based CLI with a serve command that runs the webhook
// endpoint and cache subcommands (list, prune, fetch) that maintain the
// signing certificate cache. Every command reads the same configuration file,
// selected with --config or the ECHO_VERIFIER_CONFIG_FILE environment variable.
package cli
