// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package verifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/H0llyW00dzZ/echo-request-verifier/src/config"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/metrics"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/policy"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/signature"
	x509chain "github.com/H0llyW00dzZ/echo-request-verifier/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/logger"
)

// Origin describes how a request reached the process.
type Origin int

const (
	// OriginUnknown is the zero value; such requests are rejected with [NotHTTPContext].
	OriginUnknown Origin = iota
	// OriginHTTP marks a request received by the HTTP server.
	OriginHTTP
)

// Request is one inbound webhook call as seen by the transport.
type Request struct {
	// ID correlates audit entries with the transport's logs.
	ID     string
	Origin Origin
	Method string
	// RemoteAddr is the source address, either "ip" or "ip:port".
	RemoteAddr string
	// Signature is the base64 value of the signature header.
	Signature string
	// SignatureCertChainURL is the declared location of the signing chain.
	SignatureCertChainURL string
	// Body is the exact raw body. It must not be modified while Validate runs.
	Body []byte
	// ReceivedAt is the arrival time; zero means the authenticator's clock.
	ReceivedAt time.Time
}

// CertificateSource returns the raw signing chain stored for a URL, fetching it once if needed.
type CertificateSource interface {
	FetchOrLoad(ctx context.Context, uri string) ([]byte, error)
}

// Authenticator decides whether an inbound request genuinely comes from the
// voice assistant platform.
//
// Authenticator holds no per-request state and is safe for concurrent use.
type Authenticator struct {
	applicationID string
	maxAge        time.Duration

	source    CertificateSource
	policy    *policy.Validator
	chain     *x509chain.Validator
	signature *signature.Verifier
	envelopes *decoder

	audit   logger.Auditor
	metrics *metrics.Recorder
	now     func() time.Time
}

// Option configures an [Authenticator].
type Option func(*Authenticator)

// WithAuditor records every rejection to a.
func WithAuditor(a logger.Auditor) Option {
	return func(v *Authenticator) {
		if a != nil {
			v.audit = a
		}
	}
}

// WithMetrics counts accepted and rejected requests.
func WithMetrics(r *metrics.Recorder) Option {
	return func(v *Authenticator) { v.metrics = r }
}

// WithClock overrides the time source used when a request has no arrival time.
func WithClock(now func() time.Time) Option {
	return func(v *Authenticator) { v.now = now }
}

// WithChainValidator replaces the certificate chain validator built from the configuration.
func WithChainValidator(c *x509chain.Validator) Option {
	return func(v *Authenticator) { v.chain = c }
}

// New creates an Authenticator from cfg, which must have passed [config.Config.Validate].
//
// Unless replaced with [WithChainValidator], the signing chain is verified
// against the system roots, or not at all when cfg.SkipChainVerification is set.
//
// Parameters:
//   - cfg: Validation settings
//   - source: Where signing chains are loaded from, normally a *certcache.Store
//   - opts: Optional collaborators
//
// Returns:
//   - *Authenticator: Ready to validate requests
//   - error: If the signature algorithm is unknown or the envelope schema does not compile
func New(cfg config.Validation, source CertificateSource, opts ...Option) (*Authenticator, error) {
	alg, err := signature.ParseAlgorithm(cfg.SignatureAlgorithm)
	if err != nil {
		return nil, err
	}

	envelopes, err := newDecoder()
	if err != nil {
		return nil, err
	}

	a := &Authenticator{
		applicationID: cfg.ApplicationID,
		maxAge:        cfg.MaxRequestAge(),
		source:        source,
		policy:        policy.New(cfg.CertHost, cfg.CertPathPrefix),
		signature:     signature.New(alg),
		envelopes:     envelopes,
		audit:         logger.NopAuditor{},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.chain == nil {
		var chainOpts []x509chain.Option
		if cfg.SkipChainVerification {
			chainOpts = append(chainOpts, x509chain.WithoutChainVerification())
		}
		a.chain = x509chain.New(cfg.ServiceDomain, chainOpts...)
	}

	return a, nil
}

// SignatureHeader returns the header the configured algorithm's signature is read from.
func (a *Authenticator) SignatureHeader() string { return a.signature.Algorithm().Header() }

// Validate runs every check on req and returns the decoded envelope if all pass.
//
// Checks short-circuit in this order: origin, method, source address, payload
// shape, application id, certificate URL policy, certificate fetch, certificate
// validity, signature and request age. The certificate URL is policy checked
// before anything is fetched from it.
//
// Every rejection is recorded with the configured auditor before returning.
//
// Returns:
//   - *Envelope: The decoded body of an accepted request
//   - error: A *RejectionError; use [ReasonOf] to classify it
func (a *Authenticator) Validate(ctx context.Context, req *Request) (*Envelope, error) {
	if req == nil {
		req = &Request{}
	}

	env, err := a.validate(ctx, req)
	if err != nil {
		var rejection *RejectionError
		if !errors.As(err, &rejection) {
			rejection = reject(MalformedPayload, err)
		}
		a.audit.Reject(logger.Rejection{
			Reason:     string(rejection.Reason),
			RequestID:  req.ID,
			RemoteAddr: req.RemoteAddr,
			Method:     req.Method,
			Cause:      rejection.Err,
		})
		a.metrics.Rejected(string(rejection.Reason))
		return nil, rejection
	}

	a.metrics.Accepted()
	return env, nil
}

func (a *Authenticator) validate(ctx context.Context, req *Request) (*Envelope, error) {
	now := req.ReceivedAt
	if now.IsZero() {
		now = a.now()
	}

	if req.Origin != OriginHTTP {
		return nil, reject(NotHTTPContext, nil)
	}

	if req.Method != http.MethodPost {
		return nil, reject(WrongMethod, fmt.Errorf("method %q", req.Method))
	}

	if err := checkSourceAddress(req.RemoteAddr); err != nil {
		return nil, reject(PrivateSourceAddress, err)
	}

	env, err := a.envelopes.decode(req.Body)
	if err != nil {
		return nil, reject(MalformedPayload, err)
	}

	if env.ApplicationID != a.applicationID {
		return nil, reject(ApplicationIDMismatch, fmt.Errorf("application id %q", env.ApplicationID))
	}

	if err := a.policy.Check(req.SignatureCertChainURL); err != nil {
		return nil, reject(PolicyViolation, err)
	}

	pemBytes, err := a.source.FetchOrLoad(ctx, req.SignatureCertChainURL)
	if err != nil {
		return nil, reject(CertificateFetchError, err)
	}

	cert, err := a.chain.Check(pemBytes, now)
	if err != nil {
		return nil, reject(certificateReason(err), err)
	}

	if req.Signature == "" {
		return nil, reject(MissingSignature, nil)
	}
	if err := a.signature.Verify(req.Body, req.Signature, cert.PublicKey()); err != nil {
		return nil, reject(SignatureInvalid, err)
	}

	ts, err := parseTimestamp(env.Request.Timestamp)
	if err != nil {
		return nil, reject(MalformedPayload, err)
	}
	if age := now.Sub(ts); age > a.maxAge {
		return nil, reject(RequestTooOld, fmt.Errorf("request timestamp %s is %s older than %s",
			env.Request.Timestamp, age, now.UTC().Format(time.RFC3339)))
	}

	return env, nil
}

func certificateReason(err error) Reason {
	switch {
	case errors.Is(err, x509chain.ErrDomainMismatch):
		return DomainMismatch
	case errors.Is(err, x509chain.ErrExpired):
		return CertificateExpired
	case errors.Is(err, x509chain.ErrUntrusted):
		return ChainUntrusted
	default:
		return CertificateParseError
	}
}

// checkSourceAddress rejects addresses that cannot belong to the platform:
// unparsable, private (RFC 1918, RFC 4193), loopback, link-local or unspecified.
func checkSourceAddress(remote string) error {
	addr, err := parseRemoteAddr(remote)
	if err != nil {
		return err
	}

	switch {
	case addr.IsPrivate(), addr.IsLoopback(), addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(), addr.IsUnspecified():
		return fmt.Errorf("non-public source address %s", addr)
	}
	return nil
}

func parseRemoteAddr(remote string) (netip.Addr, error) {
	if ap, err := netip.ParseAddrPort(remote); err == nil {
		return ap.Addr().Unmap(), nil
	}
	addr, err := netip.ParseAddr(remote)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("unparsable source address %q", remote)
	}
	return addr.Unmap(), nil
}
