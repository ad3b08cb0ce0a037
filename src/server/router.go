// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/helper/gc"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/metrics"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/logger"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/verifier"
)

// Header names read from webhook requests.
const (
	HeaderCertChainURL = "SignatureCertChainUrl"
	HeaderRequestID    = "X-Request-Id"
)

// DefaultMaxBodyBytes bounds a webhook body when [Options.MaxBodyBytes] is not set.
const DefaultMaxBodyBytes = 128 << 10

// Authenticator validates webhook requests; *verifier.Authenticator implements it.
type Authenticator interface {
	Validate(ctx context.Context, req *verifier.Request) (*verifier.Envelope, error)
	SignatureHeader() string
}

// Options controls the construction of the webhook router.
// Only Authenticator is required.
type Options struct {
	Authenticator Authenticator
	// Dispatcher defaults to [Acknowledge].
	Dispatcher Dispatcher
	// Metrics, when set, is served on MetricsPath.
	Metrics     *metrics.Recorder
	Logger      logger.Logger
	WebhookPath string
	MetricsPath string
	// ClientIPHeader names a header set by a trusted reverse proxy whose first
	// entry is used as the source address.
	ClientIPHeader string
	MaxBodyBytes   int64
}

// NewRouter assembles a chi.Router with the webhook, health and metrics endpoints.
func NewRouter(opts Options) chi.Router {
	if opts.Dispatcher == nil {
		opts.Dispatcher = Acknowledge
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewJSONLogger(io.Discard)
	}
	if opts.WebhookPath == "" {
		opts.WebhookPath = "/"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if opts.Metrics != nil && opts.MetricsPath != "" {
		r.Handle(opts.MetricsPath, opts.Metrics.Handler())
	}

	// Every method is routed to the webhook so that the authenticator, not the
	// router, rejects and audits non-POST calls.
	r.HandleFunc(opts.WebhookPath, (&webhook{opts: opts}).ServeHTTP)

	return r
}

type webhook struct {
	opts Options
}

func (h *webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	received := time.Now()
	id := uuid.NewString()
	w.Header().Set(HeaderRequestID, id)

	body, err := gc.ReadLimited(gc.Default, r.Body, h.opts.MaxBodyBytes)
	if err != nil {
		h.opts.Logger.Printf("request %s: reading body: %v", id, err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	req := &verifier.Request{
		ID:                    id,
		Origin:                verifier.OriginHTTP,
		Method:                r.Method,
		RemoteAddr:            h.remoteAddr(r),
		Signature:             r.Header.Get(h.opts.Authenticator.SignatureHeader()),
		SignatureCertChainURL: r.Header.Get(HeaderCertChainURL),
		Body:                  body,
		ReceivedAt:            received,
	}

	env, err := h.opts.Authenticator.Validate(r.Context(), req)
	if err != nil {
		// The reason is audited by the authenticator and never sent to the caller.
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	resp, err := h.opts.Dispatcher.Dispatch(r.Context(), env)
	if err != nil {
		h.opts.Logger.Printf("request %s: dispatch %s: %v", id, env.Request.Type, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	buf := gc.Default.Get()
	defer func() {
		buf.Reset()
		gc.Default.Put(buf)
	}()
	if err := json.NewEncoder(buf).Encode(resp); err != nil {
		h.opts.Logger.Printf("request %s: encode response: %v", id, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *webhook) remoteAddr(r *http.Request) string {
	if h.opts.ClientIPHeader == "" {
		return r.RemoteAddr
	}
	v := r.Header.Get(h.opts.ClientIPHeader)
	if v == "" {
		return r.RemoteAddr
	}
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}
