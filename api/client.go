// Package api is a typed client for the Courtside REST API. Authenticated
// calls go through the auth pipeline and never deal with tokens; login-type
// calls bypass it so an invalid password is not misread as an expired session.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/courtside/courtside-cli/auth"
)

// ErrInvalidLogin means the server rejected the email/password pair.
var ErrInvalidLogin = errors.New("invalid email or password")

// Client talks to a Courtside server.
type Client struct {
	baseURL    string
	httpClient *http.Client // authenticated pipeline
	doer       auth.Doer    // raw retrying client for unauthenticated calls
	store      auth.Store
}

// NewClient creates a client for baseURL. authed carries the auth.Transport
// pipeline; doer is the plain retrying client used for login.
func NewClient(baseURL string, authed *http.Client, doer auth.Doer, store auth.Store) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: authed,
		doer:       doer,
		store:      store,
	}
}

// User is the authenticated player's profile.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	SkillLevel string `json:"skillLevel,omitempty"`
}

// Match is a joinable game at a venue.
type Match struct {
	ID            string    `json:"id"`
	Sport         string    `json:"sport"`
	VenueID       string    `json:"venueId"`
	VenueName     string    `json:"venueName"`
	StartsAt      time.Time `json:"startsAt"`
	PlayersJoined int       `json:"playersJoined"`
	PlayersNeeded int       `json:"playersNeeded"`
	Status        string    `json:"status"`
}

// Venue is a bookable sports facility.
type Venue struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	City         string  `json:"city"`
	Address      string  `json:"address"`
	Courts       int     `json:"courts"`
	PricePerHour float64 `json:"pricePerHour"`
}

// Booking is a reserved court slot.
type Booking struct {
	ID       string    `json:"id"`
	VenueID  string    `json:"venueId"`
	CourtID  string    `json:"courtId,omitempty"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
	Status   string    `json:"status"`
}

// BookingRequest is the payload for creating a booking.
type BookingRequest struct {
	VenueID  string    `json:"venueId"`
	CourtID  string    `json:"courtId,omitempty"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
	User         User   `json:"user"`
}

// Login exchanges an email/password pair for credentials, persists them to
// the store, and returns them with the user's profile.
func (c *Client) Login(ctx context.Context, email, password string) (*auth.Credentials, *User, error) {
	payload, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(payload),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doer.DoWithContext(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("login request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, nil, ErrInvalidLogin
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("login failed with status %d: %s", resp.StatusCode, string(body))
	}

	var loginResp loginResponse
	if err := json.Unmarshal(body, &loginResp); err != nil {
		return nil, nil, fmt.Errorf("failed to parse login response: %w", err)
	}
	if loginResp.AccessToken == "" || loginResp.RefreshToken == "" {
		return nil, nil, errors.New("login response missing tokens")
	}

	creds := &auth.Credentials{
		AccessToken:  loginResp.AccessToken,
		RefreshToken: loginResp.RefreshToken,
		TokenType:    loginResp.TokenType,
	}
	if loginResp.ExpiresIn > 0 {
		creds.ExpiresAt = time.Now().Add(time.Duration(loginResp.ExpiresIn) * time.Second)
	} else if exp, ok := auth.ExpiryFromAccessToken(loginResp.AccessToken); ok {
		creds.ExpiresAt = exp
	}

	if err := c.store.Set(creds); err != nil {
		return nil, nil, fmt.Errorf("failed to persist credentials: %w", err)
	}

	return creds, &loginResp.User, nil
}

// Logout revokes the session server-side (best effort) and clears the
// stored credentials.
func (c *Client) Logout(ctx context.Context) error {
	logoutErr := c.doJSON(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
	if clearErr := c.store.Clear(); clearErr != nil {
		return fmt.Errorf("failed to clear credentials: %w", clearErr)
	}
	return logoutErr
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodGet, "/users/me", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Matches lists matches, optionally filtered by status
// ("upcoming", "live", "completed").
func (c *Client) Matches(ctx context.Context, status string) ([]Match, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}

	var result struct {
		Matches []Match `json:"matches"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/matches", query, nil, &result); err != nil {
		return nil, err
	}
	return result.Matches, nil
}

// Match returns a single match by ID.
func (c *Client) Match(ctx context.Context, id string) (*Match, error) {
	if id == "" {
		return nil, errors.New("match ID is required")
	}
	var match Match
	if err := c.doJSON(ctx, http.MethodGet, "/matches/"+id, nil, nil, &match); err != nil {
		return nil, err
	}
	return &match, nil
}

// JoinMatch adds the authenticated user to a match.
func (c *Client) JoinMatch(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("match ID is required")
	}
	return c.doJSON(ctx, http.MethodPost, "/matches/"+id+"/join", nil, nil, nil)
}

// Venues lists venues, optionally filtered by city.
func (c *Client) Venues(ctx context.Context, city string) ([]Venue, error) {
	query := url.Values{}
	if city != "" {
		query.Set("city", city)
	}

	var result struct {
		Venues []Venue `json:"venues"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/venues", query, nil, &result); err != nil {
		return nil, err
	}
	return result.Venues, nil
}

// Bookings lists the authenticated user's bookings.
func (c *Client) Bookings(ctx context.Context) ([]Booking, error) {
	var result struct {
		Bookings []Booking `json:"bookings"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/bookings", nil, nil, &result); err != nil {
		return nil, err
	}
	return result.Bookings, nil
}

// CreateBooking reserves a court slot.
func (c *Client) CreateBooking(ctx context.Context, req *BookingRequest) (*Booking, error) {
	var booking Booking
	if err := c.doJSON(ctx, http.MethodPost, "/bookings", nil, req, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

// doJSON issues an authenticated request and decodes the JSON response into
// out (skipped when out is nil). Token attachment and 401 recovery happen in
// the transport.
func (c *Client) doJSON(
	ctx context.Context,
	method, path string,
	query url.Values,
	in, out interface{},
) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
