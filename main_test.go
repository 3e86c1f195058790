package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/google/uuid"

	"github.com/courtside/courtside-cli/api"
	"github.com/courtside/courtside-cli/auth"
	"github.com/courtside/courtside-cli/tui"
)

func init() {
	// Set default values for tests (don't call initConfig to avoid flag parsing)
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	if tokenFile == "" {
		tokenFile = ".courtside-tokens.json"
	}
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	// Initialize retryClient for tests
	if retryClient == nil {
		var err error
		retryClient, err = retry.NewClient()
		if err != nil {
			panic(fmt.Sprintf("failed to create retry client: %v", err))
		}
	}
}

func TestValidateServerURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{
			name:    "valid https URL",
			url:     "https://api.courtside.app",
			wantErr: false,
		},
		{
			name:    "valid http URL",
			url:     "http://localhost:8080",
			wantErr: false,
		},
		{
			name:    "valid URL with path",
			url:     "https://api.courtside.app/v1",
			wantErr: false,
		},
		{
			name:    "empty URL",
			url:     "",
			wantErr: true,
		},
		{
			name:    "missing scheme",
			url:     "api.courtside.app",
			wantErr: true,
		},
		{
			name:    "wrong scheme",
			url:     "ftp://api.courtside.app",
			wantErr: true,
		},
		{
			name:    "scheme only",
			url:     "https://",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateServerURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateServerURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestGetConfig_Priority(t *testing.T) {
	t.Setenv("COURTSIDE_TEST_KEY", "from-env")

	if got := getConfig("from-flag", "COURTSIDE_TEST_KEY", "from-default"); got != "from-flag" {
		t.Errorf("Flag should win, got %q", got)
	}
	if got := getConfig("", "COURTSIDE_TEST_KEY", "from-default"); got != "from-env" {
		t.Errorf("Env should win over default, got %q", got)
	}

	os.Unsetenv("COURTSIDE_TEST_KEY")
	if got := getConfig("", "COURTSIDE_TEST_KEY", "from-default"); got != "from-default" {
		t.Errorf("Default should apply, got %q", got)
	}
}

func TestServerOrigin(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://api.courtside.app", "https://api.courtside.app"},
		{"https://api.courtside.app/v1/deep/path", "https://api.courtside.app"},
		{"http://localhost:8080/api", "http://localhost:8080"},
		{"https://api.courtside.app?foo=bar", "https://api.courtside.app"},
	}

	for _, tt := range tests {
		if got := serverOrigin(tt.url); got != tt.want {
			t.Errorf("serverOrigin(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestLoadOrCreateDeviceID(t *testing.T) {
	tempDir := t.TempDir()
	tokenPath := filepath.Join(tempDir, "tokens.json")

	// First call generates and persists a new ID
	id1, err := loadOrCreateDeviceID(tokenPath)
	if err != nil {
		t.Fatalf("loadOrCreateDeviceID() error = %v", err)
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Fatalf("Generated ID %q is not a UUID: %v", id1, err)
	}

	// Second call loads the same ID
	id2, err := loadOrCreateDeviceID(tokenPath)
	if err != nil {
		t.Fatalf("loadOrCreateDeviceID() second call error = %v", err)
	}
	if id1 != id2 {
		t.Errorf("Device ID not stable across calls: %q vs %q", id1, id2)
	}

	// Corrupt ID file is regenerated
	idPath := filepath.Join(tempDir, ".courtside-device-id")
	if err := os.WriteFile(idPath, []byte("not-a-uuid\n"), 0o600); err != nil {
		t.Fatalf("Failed to corrupt ID file: %v", err)
	}
	id3, err := loadOrCreateDeviceID(tokenPath)
	if err != nil {
		t.Fatalf("loadOrCreateDeviceID() after corruption error = %v", err)
	}
	if _, err := uuid.Parse(id3); err != nil {
		t.Errorf("Regenerated ID %q is not a UUID: %v", id3, err)
	}
	if id3 == "not-a-uuid" {
		t.Error("Corrupt ID was not regenerated")
	}
}

func TestMatchRows(t *testing.T) {
	starts := time.Date(2026, 9, 12, 18, 30, 0, 0, time.Local)
	matches := []api.Match{
		{
			Sport:         "padel",
			VenueName:     "Riverside Arena",
			StartsAt:      starts,
			PlayersJoined: 2,
			PlayersNeeded: 4,
		},
		{
			Sport:         "tennis",
			VenueID:       "v9", // no name: fall back to the ID
			StartsAt:      starts,
			PlayersJoined: 1,
			PlayersNeeded: 2,
		},
	}

	rows := matchRows(matches)
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].Venue != "Riverside Arena" || rows[0].Players != "2/4" {
		t.Errorf("Unexpected row: %+v", rows[0])
	}
	if rows[1].Venue != "v9" {
		t.Errorf("Venue fallback = %q, want %q", rows[1].Venue, "v9")
	}
	if !strings.Contains(rows[0].When, "Sep 12") {
		t.Errorf("When = %q, want it to include the date", rows[0].When)
	}
}

// newAppServer is a minimal Courtside server: login, refresh, profile and
// match listing, accepting only the current access token.
func newAppServer(t *testing.T, accessToken *atomic.Value) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
			req.Email != "alex@example.com" || req.Password != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		accessToken.Store("A1")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"accessToken":  "A1",
			"refreshToken": "R1",
			"tokenType":    "Bearer",
			"expiresIn":    3600,
			"user":         map[string]string{"id": "u1", "name": "Alex", "email": "alex@example.com"},
		})
	})
	mux.HandleFunc("/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken != "R1" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		accessToken.Store("A2")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"accessToken":  "A2",
			"refreshToken": "R2",
			"tokenType":    "Bearer",
			"expiresIn":    3600,
		})
	})
	requireAuth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			want, _ := accessToken.Load().(string)
			if want == "" || r.Header.Get("Authorization") != "Bearer "+want {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("/users/me", requireAuth(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"id": "u1", "name": "Alex", "email": "alex@example.com",
		})
	}))
	mux.HandleFunc("/matches", requireAuth(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"matches": []map[string]interface{}{},
		})
	}))

	return httptest.NewServer(mux)
}

func TestRun_ColdStartLogsInAndPersists(t *testing.T) {
	origServerURL, origTokenFile := serverURL, tokenFile
	origEmail, origPassword := email, password
	defer func() {
		serverURL, tokenFile = origServerURL, origTokenFile
		email, password = origEmail, origPassword
	}()

	var accessToken atomic.Value
	server := newAppServer(t, &accessToken)
	defer server.Close()

	serverURL = server.URL
	tokenFile = filepath.Join(t.TempDir(), "tokens.json")
	email = "alex@example.com"
	password = "hunter2"

	if err := run(tui.NoopDisplayer{}); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	// The session survives into the token file, keyed by origin.
	store := auth.NewFileStore(tokenFile, serverOrigin(serverURL))
	creds, err := store.Get()
	if err != nil {
		t.Fatalf("Get() after run error = %v", err)
	}
	if creds.AccessToken != "A1" || creds.RefreshToken != "R1" {
		t.Errorf("Stored creds = {%s, %s}, want {A1, R1}", creds.AccessToken, creds.RefreshToken)
	}
}

func TestRun_ExpiredSessionRefreshesWithoutLogin(t *testing.T) {
	origServerURL, origTokenFile := serverURL, tokenFile
	origEmail, origPassword := email, password
	defer func() {
		serverURL, tokenFile = origServerURL, origTokenFile
		email, password = origEmail, origPassword
	}()

	var accessToken atomic.Value
	server := newAppServer(t, &accessToken)
	defer server.Close()

	serverURL = server.URL
	tokenFile = filepath.Join(t.TempDir(), "tokens.json")
	email = "" // no login fallback available
	password = ""

	// Seed an expired session; only the refresh token is still good.
	accessToken.Store("A1")
	store := auth.NewFileStore(tokenFile, serverOrigin(serverURL))
	if err := store.Set(&auth.Credentials{
		AccessToken:  "stale",
		RefreshToken: "R1",
		TokenType:    "Bearer",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}

	if err := run(tui.NoopDisplayer{}); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	creds, err := store.Get()
	if err != nil {
		t.Fatalf("Get() after run error = %v", err)
	}
	if creds.AccessToken != "A2" || creds.RefreshToken != "R2" {
		t.Errorf("Stored creds = {%s, %s}, want {A2, R2}", creds.AccessToken, creds.RefreshToken)
	}
}

func TestRun_NoSessionNoCredentialsFails(t *testing.T) {
	origServerURL, origTokenFile := serverURL, tokenFile
	origEmail, origPassword := email, password
	defer func() {
		serverURL, tokenFile = origServerURL, origTokenFile
		email, password = origEmail, origPassword
	}()

	var accessToken atomic.Value
	server := newAppServer(t, &accessToken)
	defer server.Close()

	serverURL = server.URL
	tokenFile = filepath.Join(t.TempDir(), "tokens.json")
	email = ""
	password = ""

	err := run(tui.NoopDisplayer{})
	if err == nil {
		t.Fatal("Expected error when no session and no login credentials")
	}
	if !strings.Contains(err.Error(), "no stored session") {
		t.Errorf("Error = %v, want mention of missing session", err)
	}
}
