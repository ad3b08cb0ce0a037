// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package x509chain validates the [X.509] signing certificate chain that
// accompanies every webhook request.
//
// A chain passes when its leaf lists the trusted service domain among its
// subject alternative names, the current time falls inside the leaf validity
// window (both ends inclusive) and, unless disabled, the leaf verifies through
// the bundled intermediates up to a trusted root. The public key of a passing
// leaf is then used to verify the request signature.
//
// The package also renders cached chains as a markdown table for the
// cache maintenance commands.
//
// [X.509]: https://grokipedia.com/page/X.509
package x509chain
