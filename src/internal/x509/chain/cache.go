// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"crypto/sha256"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// parseCache memoises decoded chains keyed by the SHA-256 of their PEM bytes.
// A nil *parseCache is a valid, always-missing cache.
type parseCache struct {
	lru *expirable.LRU[[sha256.Size]byte, *Certificate]
}

func newParseCache(size int, ttl time.Duration) *parseCache {
	if size <= 0 {
		return nil
	}
	return &parseCache{lru: expirable.NewLRU[[sha256.Size]byte, *Certificate](size, nil, ttl)}
}

func (c *parseCache) get(pemBytes []byte) (*Certificate, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(sha256.Sum256(pemBytes))
}

func (c *parseCache) add(pemBytes []byte, cert *Certificate) {
	if c == nil {
		return
	}
	c.lru.Add(sha256.Sum256(pemBytes), cert)
}

// len reports the number of memoised chains.
func (c *parseCache) len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
