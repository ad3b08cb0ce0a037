// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package posix provides process helpers that behave the same on every
// operating system.
//
// Example usage in a cobra command definition:
//
//	rootCmd := &cobra.Command{
//		Use: posix.ExecutableName("echo-request-verifier"),
//	}
package posix
