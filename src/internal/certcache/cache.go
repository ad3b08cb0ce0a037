// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package certcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/helper/gc"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/metrics"
	x509certs "github.com/H0llyW00dzZ/echo-request-verifier/src/internal/x509/certs"
)

const (
	pemSuffix = ".pem"
	tmpSuffix = ".tmp"

	// DefaultMaxBytes bounds a downloaded certificate chain.
	DefaultMaxBytes = 64 << 10

	breakerName = "certificate-fetch"

	staleTempAge = time.Minute
)

// ErrFetch is wrapped by every failure to obtain a certificate chain over the network.
var ErrFetch = errors.New("certcache: failed to fetch signing certificate")

// responseError is a response from the certificate host that carried no usable chain.
type responseError struct {
	status int
	err    error
}

func (e *responseError) Error() string { return e.err.Error() }

func (e *responseError) Unwrap() error { return e.err }

// Entry describes one cached certificate chain file.
type Entry struct {
	Fingerprint string
	Path        string
	Size        int64
	ModTime     time.Time
}

// Store is a durable, fetch-once cache of signing certificate chains keyed by
// the fingerprint of their URL.
//
// An entry is created the first time its URL is seen and never overwritten.
// Files appear atomically, so readers never observe partial content.
//
// Store is safe for concurrent use.
type Store struct {
	dir      string
	http     *HTTPConfig
	maxBytes int64
	breaker  *gobreaker.CircuitBreaker
	metrics  *metrics.Recorder
	decoder  *x509certs.Decoder
	group    singleflight.Group
}

// Option configures a [Store].
type Option func(*Store)

// WithHTTPConfig sets the HTTP configuration used for downloads.
func WithHTTPConfig(cfg *HTTPConfig) Option {
	return func(s *Store) { s.http = cfg }
}

// WithMaxBytes bounds the size of a downloaded chain.
func WithMaxBytes(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithMetrics records cache lookups and fetch durations.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Store) { s.metrics = r }
}

// WithBreaker opens a circuit breaker after failures consecutive download
// failures; while open, downloads fail immediately for cooldown.
// Only transport errors and 5xx responses count as failures, so requests
// naming missing objects cannot open it.
// A zero failures disables the breaker.
func WithBreaker(failures uint32, cooldown time.Duration) Option {
	return func(s *Store) {
		if failures == 0 {
			s.breaker = nil
			return
		}
		s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    breakerName,
			Timeout: cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: hostAvailable,
			OnStateChange: func(name string, _ gobreaker.State, to gobreaker.State) {
				s.metrics.BreakerState(name, int(to))
			},
		})
	}
}

// New creates a Store rooted at dir, creating the directory if missing.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:      dir,
		http:     NewHTTPConfig("dev"),
		maxBytes: DefaultMaxBytes,
		decoder:  x509certs.NewDecoder(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("certcache: create directory: %w", err)
	}

	return s, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// Fingerprint returns the cache key of uri: the lowercase hex SHA-256 of the URI string.
func Fingerprint(uri string) string {
	sum := sha256.Sum256([]byte(uri))
	return hex.EncodeToString(sum[:])
}

// Path returns the file a chain fetched from uri is stored in.
func (s *Store) Path(uri string) string {
	return filepath.Join(s.dir, Fingerprint(uri)+pemSuffix)
}

// FetchOrLoad returns the chain for uri, downloading it only if it is not cached yet.
//
// Concurrent first sightings of the same uri share a single download. The
// download outlives a caller that gives up, so one cancelled caller never
// fails the others; it is still bounded by the HTTP timeout.
//
// Returns:
//   - []byte: The chain exactly as originally fetched
//   - error: Wrapping ErrFetch when the download fails
func (s *Store) FetchOrLoad(ctx context.Context, uri string) ([]byte, error) {
	fp := Fingerprint(uri)

	data, err := s.load(fp)
	if err == nil {
		s.metrics.CacheLookup(metrics.CacheHit)
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		s.metrics.CacheLookup(metrics.CacheError)
		return nil, fmt.Errorf("certcache: read %s: %w", fp, err)
	}

	s.metrics.CacheLookup(metrics.CacheMiss)

	flight := context.WithoutCancel(ctx)
	ch := s.group.DoChan(fp, func() (any, error) {
		// another flight may have stored it between our miss and now
		if data, err := s.load(fp); err == nil {
			return data, nil
		}

		data, err := s.fetch(flight, uri)
		if err != nil {
			return nil, err
		}
		return s.store(fp, data)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			s.metrics.CacheLookup(metrics.CacheError)
			return nil, res.Err
		}
		return append([]byte(nil), res.Val.([]byte)...), nil
	case <-ctx.Done():
		s.metrics.CacheLookup(metrics.CacheError)
		return nil, fmt.Errorf("%w: %w", ErrFetch, ctx.Err())
	}
}

// hostAvailable reports whether err leaves the breaker closed.
func hostAvailable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var re *responseError
	return errors.As(err, &re) && re.status < http.StatusInternalServerError
}

func (s *Store) load(fp string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, fp+pemSuffix))
}

func (s *Store) fetch(ctx context.Context, uri string) ([]byte, error) {
	if s.breaker == nil {
		data, err := s.download(ctx, uri)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		return data, nil
	}

	v, err := s.breaker.Execute(func() (any, error) {
		return s.download(ctx, uri)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return v.([]byte), nil
}

// download performs a single bounded GET of uri.
func (s *Store) download(ctx context.Context, uri string) ([]byte, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveFetch(time.Since(start)) }()

	client := s.http.Client()
	if client.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, client.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.http.GetUserAgent())

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &responseError{status: resp.StatusCode, err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	data, err := gc.ReadLimited(gc.Default, resp.Body, s.maxBytes)
	switch {
	case errors.Is(err, gc.ErrTooLarge):
		return nil, &responseError{status: resp.StatusCode, err: err}
	case err != nil:
		return nil, err
	case len(data) == 0:
		return nil, &responseError{status: resp.StatusCode, err: errors.New("empty response body")}
	}

	return data, nil
}

// store writes data under fp without ever exposing a partial file.
// If an entry already exists it is kept and returned instead of data.
func (s *Store) store(fp string, data []byte) ([]byte, error) {
	final := filepath.Join(s.dir, fp+pemSuffix)

	tmp, err := os.CreateTemp(s.dir, fp+".*"+tmpSuffix)
	if err != nil {
		return nil, fmt.Errorf("certcache: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("certcache: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("certcache: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("certcache: close temp file: %w", err)
	}

	// A hard link fails instead of replacing an existing entry.
	err = os.Link(tmpName, final)
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, fs.ErrExist):
		return s.load(fp)
	}

	// Filesystems without hard links: fall back to rename, last writer wins.
	if err := os.Rename(tmpName, final); err != nil {
		return nil, fmt.Errorf("certcache: commit %s: %w", fp, err)
	}
	return data, nil
}

// Entries lists cached chains.
func (s *Store) Entries() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, pemSuffix) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Fingerprint: strings.TrimSuffix(name, pemSuffix),
			Path:        filepath.Join(s.dir, name),
			Size:        info.Size(),
			ModTime:     info.ModTime(),
		})
	}

	return entries, nil
}

// Load returns the cached chain stored under fingerprint.
func (s *Store) Load(fingerprint string) ([]byte, error) {
	return s.load(fingerprint)
}

// Prune removes entries whose leaf certificate has expired at now or no longer
// parses, along with temp files older than a minute left behind by interrupted writes.
//
// Returns:
//   - []string: Fingerprints of removed entries
//   - error: First removal error encountered
func (s *Store) Prune(now time.Time) ([]string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, de := range dirEntries {
		name := de.Name()
		path := filepath.Join(s.dir, name)

		switch {
		case de.IsDir():
			continue
		case strings.HasSuffix(name, tmpSuffix):
			// leave temp files of writes that may still be in flight
			if info, err := de.Info(); err != nil || now.Sub(info.ModTime()) < staleTempAge {
				continue
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return removed, err
			}
			continue
		case !strings.HasSuffix(name, pemSuffix):
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return removed, err
		}

		leaf, err := s.decoder.Decode(data)
		if err == nil && !now.After(leaf.NotAfter) {
			continue
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
		removed = append(removed, strings.TrimSuffix(name, pemSuffix))
	}

	return removed, nil
}
