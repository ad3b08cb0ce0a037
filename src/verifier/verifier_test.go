// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package verifier_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/echo-request-verifier/src/config"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/certcache"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/helper/testcert"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/metrics"
	x509chain "github.com/H0llyW00dzZ/echo-request-verifier/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/logger"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/verifier"
)

const (
	appID    = "amzn1.ask.skill.00000000-0000-0000-0000-000000000000"
	userID   = "amzn1.ask.account.TESTUSER"
	certURL  = "https://s3.amazonaws.com/echo.api/echo-api-cert-12.pem"
	publicIP = "54.240.197.1:443"
)

// fakeSource serves a fixed chain and counts lookups.
type fakeSource struct {
	data  []byte
	err   error
	calls atomic.Int64
}

func (f *fakeSource) FetchOrLoad(context.Context, string) ([]byte, error) {
	f.calls.Add(1)
	return f.data, f.err
}

// recordingAuditor keeps every rejection in memory.
type recordingAuditor struct {
	mu         sync.Mutex
	rejections []logger.Rejection
}

func (r *recordingAuditor) Reject(rej logger.Rejection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejections = append(r.rejections, rej)
}

func (r *recordingAuditor) all() []logger.Rejection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]logger.Rejection(nil), r.rejections...)
}

// counterValue returns the counter name, restricted to the series whose only
// label has value label when label is not empty.
func counterValue(t *testing.T, rec *metrics.Recorder, name, label string) float64 {
	t.Helper()
	families, err := rec.Registry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label == "" || (len(m.GetLabel()) == 1 && m.GetLabel()[0].GetValue() == label) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func sessionBody(applicationID string, ts time.Time) []byte {
	return fmt.Appendf(nil, `{"version":"1.0","session":{"new":true,"sessionId":"amzn1.echo-api.session.1",`+
		`"application":{"applicationId":%q},"user":{"userId":%q}},`+
		`"request":{"type":"IntentRequest","requestId":"amzn1.echo-api.request.1","timestamp":%q,"locale":"en-US",`+
		`"intent":{"name":"GetFact"}}}`, applicationID, userID, ts.UTC().Format(verifier.TimestampLayout))
}

func contextBody(applicationID string, ts time.Time) []byte {
	return fmt.Appendf(nil, `{"version":"1.0","session":{"sessionId":""},`+
		`"context":{"System":{"application":{"applicationId":%q},"user":{"userId":%q}}},`+
		`"request":{"type":"LaunchRequest","requestId":"amzn1.echo-api.request.2","timestamp":%q}}`,
		applicationID, userID, ts.UTC().Format(verifier.TimestampLayout))
}

// fixture is a fully valid request together with the collaborators it verifies against.
type fixture struct {
	now     time.Time
	ca      *testcert.Authority
	leaf    *testcert.Leaf
	source  *fakeSource
	audit   *recordingAuditor
	metrics *metrics.Recorder
	cfg     config.Validation
	req     *verifier.Request
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	ca := testcert.NewAuthority(t)
	leaf := ca.Issue(t, testcert.LeafOptions{DNSNames: []string{testcert.ServiceDomain}})
	body := sessionBody(appID, now)

	cfg := config.Default().Validation
	cfg.ApplicationID = appID

	return &fixture{
		now:     now,
		ca:      ca,
		leaf:    leaf,
		source:  &fakeSource{data: leaf.ChainPEM},
		audit:   &recordingAuditor{},
		metrics: metrics.New("verifiertest"),
		cfg:     cfg,
		req: &verifier.Request{
			ID:                    "req-1",
			Origin:                verifier.OriginHTTP,
			Method:                "POST",
			RemoteAddr:            publicIP,
			Signature:             leaf.SignSHA1(t, body),
			SignatureCertChainURL: certURL,
			Body:                  body,
			ReceivedAt:            now,
		},
	}
}

// resign replaces the body and signs it with the fixture's leaf.
func (f *fixture) resign(t *testing.T, body []byte) {
	t.Helper()
	f.req.Body = body
	f.req.Signature = f.leaf.SignSHA1(t, body)
}

func (f *fixture) authenticator(t *testing.T) *verifier.Authenticator {
	t.Helper()
	a, err := verifier.New(f.cfg, f.source,
		verifier.WithAuditor(f.audit),
		verifier.WithMetrics(f.metrics),
		verifier.WithChainValidator(x509chain.New(f.cfg.ServiceDomain, x509chain.WithRoots(f.ca.Pool()))),
	)
	require.NoError(t, err)
	return a
}

func (f *fixture) validate(t *testing.T) (*verifier.Envelope, error) {
	t.Helper()
	return f.authenticator(t).Validate(context.Background(), f.req)
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name     string
		testFunc func(t *testing.T)
	}{
		{
			name: "A: valid request is accepted",
			testFunc: func(t *testing.T) {
				f := newFixture(t)

				env, err := f.validate(t)
				require.NoError(t, err)

				assert.Equal(t, appID, env.ApplicationID)
				assert.Equal(t, userID, env.UserID)
				assert.Equal(t, "IntentRequest", env.Request.Type)
				assert.JSONEq(t, `{"name":"GetFact"}`, string(env.Request.Intent))
				assert.Equal(t, f.req.Body, env.Raw)
				assert.Empty(t, f.audit.all())
				assert.Equal(t, int64(1), f.source.calls.Load())
				assert.Equal(t, float64(1), counterValue(t, f.metrics, "verifiertest_requests_accepted_total", ""))
			},
		},
		{
			name: "B: request 61 seconds old is rejected",
			testFunc: func(t *testing.T) {
				f := newFixture(t)
				f.resign(t, sessionBody(appID, f.now.Add(-61*time.Second)))

				_, err := f.validate(t)
				assert.Equal(t, verifier.RequestTooOld, verifier.ReasonOf(err))
			},
		},
		{
			name: "C: private source address is rejected before any fetch",
			testFunc: func(t *testing.T) {
				f := newFixture(t)
				f.req.RemoteAddr = "10.0.0.5"

				_, err := f.validate(t)
				assert.Equal(t, verifier.PrivateSourceAddress, verifier.ReasonOf(err))
				assert.Zero(t, f.source.calls.Load())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.testFunc(t)
		})
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, f *fixture)
		want   verifier.Reason
		// fetch reports whether the certificate source may be consulted.
		fetch bool
	}{
		{
			name:   "Unknown origin",
			mutate: func(t *testing.T, f *fixture) { f.req.Origin = verifier.OriginUnknown },
			want:   verifier.NotHTTPContext,
		},
		{
			name:   "GET",
			mutate: func(t *testing.T, f *fixture) { f.req.Method = "GET" },
			want:   verifier.WrongMethod,
		},
		{
			name:   "Lowercase post",
			mutate: func(t *testing.T, f *fixture) { f.req.Method = "post" },
			want:   verifier.WrongMethod,
		},
		{
			name:   "Loopback",
			mutate: func(t *testing.T, f *fixture) { f.req.RemoteAddr = "127.0.0.1:5000" },
			want:   verifier.PrivateSourceAddress,
		},
		{
			name:   "IPv6 unique local",
			mutate: func(t *testing.T, f *fixture) { f.req.RemoteAddr = "[fd00::1]:443" },
			want:   verifier.PrivateSourceAddress,
		},
		{
			name:   "Link-local",
			mutate: func(t *testing.T, f *fixture) { f.req.RemoteAddr = "169.254.10.10" },
			want:   verifier.PrivateSourceAddress,
		},
		{
			name:   "IPv4-mapped private",
			mutate: func(t *testing.T, f *fixture) { f.req.RemoteAddr = "[::ffff:192.168.1.1]:80" },
			want:   verifier.PrivateSourceAddress,
		},
		{
			name:   "Unparsable address",
			mutate: func(t *testing.T, f *fixture) { f.req.RemoteAddr = "not-an-ip" },
			want:   verifier.PrivateSourceAddress,
		},
		{
			name:   "Body is not JSON",
			mutate: func(t *testing.T, f *fixture) { f.resign(t, []byte("not json")) },
			want:   verifier.MalformedPayload,
		},
		{
			name:   "Envelope without request",
			mutate: func(t *testing.T, f *fixture) { f.resign(t, []byte(`{"version":"1.0","session":{"sessionId":"s"}}`)) },
			want:   verifier.MalformedPayload,
		},
		{
			name: "Envelope without application id",
			mutate: func(t *testing.T, f *fixture) {
				f.resign(t, []byte(`{"request":{"type":"LaunchRequest","timestamp":"2026-01-01T00:00:00Z"}}`))
			},
			want: verifier.MalformedPayload,
		},
		{
			name:   "Other application",
			mutate: func(t *testing.T, f *fixture) { f.resign(t, sessionBody("amzn1.ask.skill.other", f.now)) },
			want:   verifier.ApplicationIDMismatch,
		},
		{
			name:   "Plain HTTP certificate URL",
			mutate: func(t *testing.T, f *fixture) { f.req.SignatureCertChainURL = "http://s3.amazonaws.com/echo.api/cert.pem" },
			want:   verifier.PolicyViolation,
		},
		{
			name:   "Foreign certificate host",
			mutate: func(t *testing.T, f *fixture) { f.req.SignatureCertChainURL = "https://evil.example.com/echo.api/cert.pem" },
			want:   verifier.PolicyViolation,
		},
		{
			name: "Fetch failure",
			mutate: func(t *testing.T, f *fixture) {
				f.source.err = fmt.Errorf("%w: unexpected status 404", certcache.ErrFetch)
			},
			want:  verifier.CertificateFetchError,
			fetch: true,
		},
		{
			name:   "Unparsable certificate",
			mutate: func(t *testing.T, f *fixture) { f.source.data = []byte("<Error>AccessDenied</Error>") },
			want:   verifier.CertificateParseError,
			fetch:  true,
		},
		{
			name: "Certificate for another domain",
			mutate: func(t *testing.T, f *fixture) {
				f.leaf = f.ca.Issue(t, testcert.LeafOptions{DNSNames: []string{"echo-api.amazon.com.evil.example"}})
				f.source.data = f.leaf.ChainPEM
				f.resign(t, f.req.Body)
			},
			want:  verifier.DomainMismatch,
			fetch: true,
		},
		{
			name: "Expired certificate",
			mutate: func(t *testing.T, f *fixture) {
				f.leaf = f.ca.Issue(t, testcert.LeafOptions{
					DNSNames:  []string{testcert.ServiceDomain},
					NotBefore: f.now.Add(-48 * time.Hour),
					NotAfter:  f.now.Add(-time.Second),
				})
				f.source.data = f.leaf.ChainPEM
				f.resign(t, f.req.Body)
			},
			want:  verifier.CertificateExpired,
			fetch: true,
		},
		{
			name: "Certificate from an unknown authority",
			mutate: func(t *testing.T, f *fixture) {
				f.leaf = testcert.NewAuthority(t).Issue(t, testcert.LeafOptions{DNSNames: []string{testcert.ServiceDomain}})
				f.source.data = f.leaf.ChainPEM
				f.resign(t, f.req.Body)
			},
			want:  verifier.ChainUntrusted,
			fetch: true,
		},
		{
			name:   "Missing signature",
			mutate: func(t *testing.T, f *fixture) { f.req.Signature = "" },
			want:   verifier.MissingSignature,
			fetch:  true,
		},
		{
			name: "Signature over another body",
			mutate: func(t *testing.T, f *fixture) {
				f.req.Signature = f.leaf.SignSHA1(t, sessionBody(appID, f.now.Add(time.Second)))
			},
			want:  verifier.SignatureInvalid,
			fetch: true,
		},
		{
			name:   "Signature not base64",
			mutate: func(t *testing.T, f *fixture) { f.req.Signature = "%%%" },
			want:   verifier.SignatureInvalid,
			fetch:  true,
		},
		{
			name: "Timestamp with offset instead of Z",
			mutate: func(t *testing.T, f *fixture) {
				body := fmt.Appendf(nil, `{"session":{"sessionId":"s","application":{"applicationId":%q}},`+
					`"request":{"type":"LaunchRequest","timestamp":%q}}`, appID, f.now.Format("2006-01-02T15:04:05-07:00"))
				f.resign(t, body)
			},
			want:  verifier.MalformedPayload,
			fetch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(t, f)

			env, err := f.validate(t)
			require.Error(t, err)
			assert.Nil(t, env)
			assert.Equal(t, tt.want, verifier.ReasonOf(err))

			var rejection *verifier.RejectionError
			require.True(t, errors.As(err, &rejection))

			audited := f.audit.all()
			require.Len(t, audited, 1)
			assert.Equal(t, string(tt.want), audited[0].Reason)
			assert.Equal(t, "req-1", audited[0].RequestID)
			assert.Equal(t, float64(1), counterValue(t, f.metrics, "verifiertest_requests_rejected_total", string(tt.want)))

			if !tt.fetch {
				assert.Zero(t, f.source.calls.Load(), "certificate source must not be consulted")
			}
		})
	}
}

func TestValidateAccepts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, f *fixture)
	}{
		{
			name: "Identity from context when session id is empty",
			mutate: func(t *testing.T, f *fixture) {
				f.resign(t, contextBody(appID, f.now))
			},
		},
		{
			name: "Certificate at its last valid second",
			mutate: func(t *testing.T, f *fixture) {
				f.leaf = f.ca.Issue(t, testcert.LeafOptions{
					DNSNames:  []string{"www.example.com", testcert.ServiceDomain},
					NotBefore: f.now.Add(-time.Hour),
					NotAfter:  f.now,
				})
				f.source.data = f.leaf.ChainPEM
				f.resign(t, f.req.Body)
			},
		},
		{
			name: "Request exactly at the maximum age",
			mutate: func(t *testing.T, f *fixture) {
				f.resign(t, sessionBody(appID, f.now.Add(-60*time.Second)))
			},
		},
		{
			name: "Timestamp ahead of the receiving clock",
			mutate: func(t *testing.T, f *fixture) {
				f.resign(t, sessionBody(appID, f.now.Add(5*time.Minute)))
			},
		},
		{
			name: "Fractional seconds in timestamp",
			mutate: func(t *testing.T, f *fixture) {
				body := fmt.Appendf(nil, `{"session":{"sessionId":"s","application":{"applicationId":%q}},`+
					`"request":{"type":"LaunchRequest","timestamp":%q}}`, appID, f.now.Format("2006-01-02T15:04:05.000Z"))
				f.resign(t, body)
			},
		},
		{
			name: "Public IPv6 source",
			mutate: func(t *testing.T, f *fixture) {
				f.req.RemoteAddr = "[2600:1f18::1]:443"
			},
		},
		{
			name: "Arrival time from the clock",
			mutate: func(t *testing.T, f *fixture) {
				f.req.ReceivedAt = time.Time{}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(t, f)

			env, err := f.validate(t)
			require.NoError(t, err)
			assert.Equal(t, appID, env.ApplicationID)
			assert.Empty(t, f.audit.all())
		})
	}
}

func TestIdentityPrecedesCryptography(t *testing.T) {
	f := newFixture(t)
	f.req.Body = sessionBody("amzn1.ask.skill.other", f.now)
	f.req.Signature = ""
	f.req.SignatureCertChainURL = "ftp://example.com/cert.pem"
	f.source.data = nil

	_, err := f.validate(t)
	assert.Equal(t, verifier.ApplicationIDMismatch, verifier.ReasonOf(err))
	assert.Zero(t, f.source.calls.Load())
}

func TestNilRequestIsNotHTTPContext(t *testing.T) {
	f := newFixture(t)

	env, err := f.authenticator(t).Validate(context.Background(), nil)
	assert.Nil(t, env)
	assert.Equal(t, verifier.NotHTTPContext, verifier.ReasonOf(err))
	assert.Zero(t, f.source.calls.Load())

	rejections := f.audit.all()
	require.Len(t, rejections, 1)
	assert.Equal(t, string(verifier.NotHTTPContext), rejections[0].Reason)
}

func TestTamperedBodyFails(t *testing.T) {
	f := newFixture(t)
	a := f.authenticator(t)
	original := append([]byte(nil), f.req.Body...)

	// flipping a letter inside the intent name keeps the JSON well formed
	idx := len(original) - len(`Fact"}}}`)
	tampered := append([]byte(nil), original...)
	tampered[idx] ^= 0x20
	f.req.Body = tampered

	_, err := a.Validate(context.Background(), f.req)
	assert.Equal(t, verifier.SignatureInvalid, verifier.ReasonOf(err))
}

func TestSHA256Signatures(t *testing.T) {
	f := newFixture(t)
	f.cfg.SignatureAlgorithm = "SHA256WithRSA"
	f.req.Signature = f.leaf.SignSHA256(t, f.req.Body)

	a := f.authenticator(t)
	assert.Equal(t, "Signature-256", a.SignatureHeader())

	_, err := a.Validate(context.Background(), f.req)
	require.NoError(t, err)

	f.req.Signature = f.leaf.SignSHA1(t, f.req.Body)
	_, err = a.Validate(context.Background(), f.req)
	assert.Equal(t, verifier.SignatureInvalid, verifier.ReasonOf(err))
}

func TestNewRejectsUnknownAlgorithm(t *testing.T) {
	cfg := config.Default().Validation
	cfg.SignatureAlgorithm = "MD5WithRSA"
	_, err := verifier.New(cfg, &fakeSource{})
	assert.Error(t, err)
}

func TestValidateConcurrent(t *testing.T) {
	f := newFixture(t)
	a := f.authenticator(t)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := *f.req
			_, err := a.Validate(context.Background(), &req)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestReasonOf(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", &verifier.RejectionError{Reason: verifier.WrongMethod})
	assert.Equal(t, verifier.WrongMethod, verifier.ReasonOf(wrapped))
	assert.Equal(t, verifier.Reason(""), verifier.ReasonOf(errors.New("other")))
	assert.Equal(t, verifier.Reason(""), verifier.ReasonOf(nil))
}
