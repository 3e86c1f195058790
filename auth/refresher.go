package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Doer issues HTTP requests. Satisfied by *retry.Client from go-httpretry
// and by plain wrappers around http.Client in tests.
type Doer interface {
	DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error)
}

var (
	// ErrNoRefreshToken means there are no credentials to refresh with.
	// The session is over; the caller must route the user to a fresh login.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrRefreshRejected means the server denied the refresh token
	// (revoked or expired). Same consequence as ErrNoRefreshToken.
	ErrRefreshRejected = errors.New("refresh token rejected by server")
)

// IsSessionExpired reports whether err means the stored session cannot be
// recovered and the user has to log in again. Transient refresh failures
// (network errors, 5xx) return false: the credentials are still on disk and
// a later attempt may succeed.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrNoRefreshToken) || errors.Is(err, ErrRefreshRejected)
}

const defaultRefreshTimeout = 10 * time.Second

// Refresher exchanges the stored refresh token for a new access token.
// Concurrent refresh attempts collapse into a single network call whose
// outcome every caller observes: either all get the new token or all get
// the same error.
type Refresher struct {
	store   Store
	client  Doer
	url     string
	timeout time.Duration
	group   singleflight.Group

	// OnRefresh, when set, is called once per settled refresh network
	// attempt with its outcome. Used by the CLI to surface refresh
	// activity without the pipeline knowing about display.
	OnRefresh func(err error)
}

// NewRefresher creates a Refresher posting to url (the refresh endpoint)
// with client, persisting outcomes in store.
func NewRefresher(store Store, client Doer, url string) *Refresher {
	return &Refresher{
		store:   store,
		client:  client,
		url:     url,
		timeout: defaultRefreshTimeout,
	}
}

// refreshRequest and refreshResponse mirror the refresh endpoint's wire shape.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
}

// Refresh returns a fresh access token. If a refresh is already in flight the
// caller attaches to it instead of issuing a second network call.
//
// On success the new credential pair has been persisted to the store before
// Refresh returns. On ErrNoRefreshToken and ErrRefreshRejected the store has
// been cleared; on transient failures the old credentials are retained.
func (r *Refresher) Refresh(ctx context.Context) (string, error) {
	v, err, _ := r.group.Do("refresh", func() (interface{}, error) {
		token, refreshErr := r.doRefresh(ctx)
		if r.OnRefresh != nil {
			r.OnRefresh(refreshErr)
		}
		return token, refreshErr
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Refresher) doRefresh(ctx context.Context) (string, error) {
	creds, err := r.store.Get()
	if err != nil || creds.RefreshToken == "" {
		_ = r.store.Clear()
		return "", ErrNoRefreshToken
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(refreshRequest{RefreshToken: creds.RefreshToken})
	if err != nil {
		return "", fmt.Errorf("failed to encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.DoWithContext(reqCtx, req)
	if err != nil {
		// Transport-level failure: keep the credentials so a later
		// attempt (e.g. after connectivity returns) can succeed.
		return "", fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read refresh response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retrieveErr := &oauth2.RetrieveError{Response: resp, Body: body}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// The server denied the refresh token itself; these
			// credentials will never work again.
			_ = r.store.Clear()
			return "", fmt.Errorf("%w: %v", ErrRefreshRejected, retrieveErr)
		}
		return "", fmt.Errorf("refresh failed: %w", retrieveErr)
	}

	var tokenResp refreshResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse refresh response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", errors.New("refresh response missing accessToken")
	}

	newCreds := &Credentials{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
	}
	if newCreds.RefreshToken == "" {
		// Server kept the old refresh token (fixed rotation mode).
		newCreds.RefreshToken = creds.RefreshToken
	}
	if tokenResp.ExpiresIn > 0 {
		newCreds.ExpiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	} else if exp, ok := ExpiryFromAccessToken(tokenResp.AccessToken); ok {
		newCreds.ExpiresAt = exp
	}

	// Persist before releasing any waiter so a Get after Refresh always
	// observes the new pair.
	if err := r.store.Set(newCreds); err != nil {
		return "", fmt.Errorf("failed to persist refreshed credentials: %w", err)
	}

	return tokenResp.AccessToken, nil
}
