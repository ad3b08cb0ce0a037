// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package server

import (
	"context"

	"github.com/H0llyW00dzZ/echo-request-verifier/src/verifier"
)

// Dispatcher is the business layer behind the verifier. It only ever sees
// envelopes that passed every check.
type Dispatcher interface {
	// Dispatch returns the value written back to the platform as JSON.
	Dispatch(ctx context.Context, env *verifier.Envelope) (any, error)
}

// DispatcherFunc adapts a function to [Dispatcher].
type DispatcherFunc func(ctx context.Context, env *verifier.Envelope) (any, error)

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, env *verifier.Envelope) (any, error) {
	return f(ctx, env)
}

// OutputSpeech is the speech the device renders.
type OutputSpeech struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	SSML string `json:"ssml,omitempty"`
}

// ResponseBody is the response object of a [Response].
type ResponseBody struct {
	OutputSpeech     *OutputSpeech `json:"outputSpeech,omitempty"`
	ShouldEndSession bool          `json:"shouldEndSession"`
}

// Response is the reply envelope understood by the platform.
type Response struct {
	Version           string         `json:"version"`
	SessionAttributes map[string]any `json:"sessionAttributes,omitempty"`
	Response          ResponseBody   `json:"response"`
}

// Acknowledge is the default dispatcher: it ends the session without speech.
var Acknowledge = DispatcherFunc(func(context.Context, *verifier.Envelope) (any, error) {
	return Response{
		Version:  "1.0",
		Response: ResponseBody{ShouldEndSession: true},
	}, nil
})
