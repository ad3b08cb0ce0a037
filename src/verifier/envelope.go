// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package verifier

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// TimestampLayout is the only accepted format of request.timestamp.
// Fractional seconds are accepted when parsing; the zone must be a literal Z.
const TimestampLayout = "2006-01-02T15:04:05Z"

//go:embed envelope.schema.json
var envelopeSchema string

var errMissingApplicationID = errors.New("verifier: envelope carries no application id")

// Application identifies the addressed application.
type Application struct {
	ApplicationID string `json:"applicationId"`
}

// User identifies the end user.
type User struct {
	UserID string `json:"userId"`
}

// Session is the session-scoped part of an envelope.
type Session struct {
	New         bool           `json:"new"`
	SessionID   string         `json:"sessionId"`
	Application Application    `json:"application"`
	User        User           `json:"user"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// System is the device-context part of an envelope.
type System struct {
	Application Application `json:"application"`
	User        User        `json:"user"`
}

// Context wraps [System].
type Context struct {
	System System `json:"System"`
}

// RequestBody is the request object of an envelope. Its intent is left
// undecoded for the business layer.
type RequestBody struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId"`
	Timestamp string          `json:"timestamp"`
	Locale    string          `json:"locale,omitempty"`
	Intent    json.RawMessage `json:"intent,omitempty"`
}

// Envelope is the decoded body of a verified request.
type Envelope struct {
	Version string      `json:"version"`
	Session *Session    `json:"session,omitempty"`
	Context *Context    `json:"context,omitempty"`
	Request RequestBody `json:"request"`

	// ApplicationID and UserID are resolved from the session when it carries
	// a session id, otherwise from the context.
	ApplicationID string `json:"-"`
	UserID        string `json:"-"`
	// Raw is the exact body the signature was verified over.
	Raw []byte `json:"-"`
}

// decoder validates envelopes against the embedded schema before decoding them.
type decoder struct {
	schema *gojsonschema.Schema
}

func newDecoder() (*decoder, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(envelopeSchema))
	if err != nil {
		return nil, fmt.Errorf("verifier: compile envelope schema: %w", err)
	}
	return &decoder{schema: schema}, nil
}

// decode checks body against the schema, decodes it and resolves identities.
func (d *decoder) decode(body []byte) (*Envelope, error) {
	result, err := d.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("verifier: decode envelope: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("verifier: envelope does not match schema: %s", strings.Join(msgs, "; "))
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("verifier: decode envelope: %w", err)
	}

	switch {
	case env.Session != nil && env.Session.SessionID != "":
		env.ApplicationID = env.Session.Application.ApplicationID
		env.UserID = env.Session.User.UserID
	case env.Context != nil:
		env.ApplicationID = env.Context.System.Application.ApplicationID
		env.UserID = env.Context.System.User.UserID
	}
	if env.ApplicationID == "" {
		return nil, errMissingApplicationID
	}

	env.Raw = body
	return &env, nil
}

// parseTimestamp parses request.timestamp with [TimestampLayout].
func parseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("verifier: invalid request timestamp %q: %w", ts, err)
	}
	return t, nil
}
