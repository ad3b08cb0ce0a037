// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package certcache stores signing certificate chains on disk, keyed by the
// SHA-256 fingerprint of the URL they were downloaded from.
//
// The first request naming a URL triggers one bounded HTTPS download; every
// later request is served from the file written then. Downloads go through a
// circuit breaker so that an unreachable certificate host fails fast instead
// of stalling every request, and the downloaded bytes are read through the
// pooled buffers of package gc.
//
// The cache never evicts on its own. [Store.Prune] removes chains whose leaf
// certificate has expired and is run from the "cache prune" command.
package certcache
