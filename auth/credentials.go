// Package auth implements the authenticated-request pipeline of the Courtside
// client: a durable credential store, a single-flight refresh coordinator, and
// an http.RoundTripper that transparently attaches bearer tokens and recovers
// from expired access tokens with exactly one refresh-and-retry cycle.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoCredentials is returned by Store.Get when no credentials are stored.
var ErrNoCredentials = errors.New("no stored credentials")

// Credentials is the token pair for one server origin.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Valid reports whether the access token exists and is not within buffer of
// its expiry. A zero ExpiresAt means the expiry is unknown; the token is
// assumed usable and the 401 path sorts it out.
func (c *Credentials) Valid(buffer time.Duration) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	if c.ExpiresAt.IsZero() {
		return true
	}
	return time.Until(c.ExpiresAt) >= buffer
}

// Store persists credentials. Get never touches the network and returns
// ErrNoCredentials when nothing is stored. Set overwrites both tokens
// atomically with respect to Get; Clear removes them.
type Store interface {
	Get() (*Credentials, error)
	Set(*Credentials) error
	Clear() error
}

// ExpiryFromAccessToken recovers the expiry from the access token's exp claim
// for responses that carry no expires_in. The signature is deliberately not
// verified: the expiry only schedules refresh-ahead, the server stays the
// authority on whether a token is accepted.
func ExpiryFromAccessToken(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
