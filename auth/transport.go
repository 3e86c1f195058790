package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// retriedKey marks a request that has already been through one
// refresh-and-retry cycle. It is the sole guard against refresh loops.
type retriedKey struct{}

// Transport is an http.RoundTripper that attaches the current bearer token to
// outgoing requests and, on a 401, refreshes the token once and re-dispatches
// the request. Callers see either the final response or the terminal error;
// they never deal with tokens.
type Transport struct {
	// Base performs the actual round trips. http.DefaultTransport when nil.
	Base http.RoundTripper

	// Store supplies the current access token for the request phase.
	Store Store

	// Refresher recovers from expired access tokens.
	Refresher *Refresher

	// DeviceID, when set, is attached as X-Device-ID to every request.
	DeviceID string
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Per RoundTripper contract the original request is not mutated.
	out := req.Clone(req.Context())
	if t.DeviceID != "" {
		out.Header.Set("X-Device-ID", t.DeviceID)
	}
	if out.Header.Get("Authorization") == "" {
		// Absent credentials must not fail the request: unauthenticated
		// calls (login itself) are legal.
		if creds, err := t.Store.Get(); err == nil && creds.AccessToken != "" {
			out.Header.Set("Authorization", "Bearer "+creds.AccessToken)
		}
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if req.Context().Value(retriedKey{}) != nil {
		// Already retried once; the hard cap is absolute.
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		// The body cannot be replayed; hand the 401 back untouched.
		return resp, nil
	}

	// Expired access token. Drain the 401 so the connection can be reused,
	// then refresh and go around once more.
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	token, err := t.Refresher.Refresh(req.Context())
	if err != nil {
		// The refresh failure, not the original 401, reaches the caller.
		return nil, fmt.Errorf("token refresh after 401 failed: %w", err)
	}

	retryReq := req.Clone(context.WithValue(req.Context(), retriedKey{}, true))
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, fmt.Errorf("failed to rewind request body for retry: %w", bodyErr)
		}
		retryReq.Body = body
	}
	retryReq.Header.Set("Authorization", "Bearer "+token)

	return t.RoundTrip(retryReq)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
