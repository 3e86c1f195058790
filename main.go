package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	tea "charm.land/bubbletea/v2"
	"github.com/courtside/courtside-cli/api"
	"github.com/courtside/courtside-cli/auth"
	"github.com/courtside/courtside-cli/tui"
)

var (
	serverURL         string
	email             string
	password          string
	tokenFile         string
	deviceID          string
	flagServerURL     *string
	flagEmail         *string
	flagPassword      *string
	flagTokenFile     *string
	flagDeviceID      *string
	configInitialized bool
	retryClient       *retry.Client
)

const (
	// refreshBuffer is how close to expiry a stored access token is still
	// considered valid. Inside the buffer a proactive refresh runs before
	// the first request instead of waiting for a 401.
	refreshBuffer = 30 * time.Second

	requestTimeout = 15 * time.Second
)

func init() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Define flags (but don't parse yet to avoid conflicts with test flags)
	flagServerURL = flag.String(
		"server-url",
		"",
		"Courtside server URL (default: http://localhost:8080 or SERVER_URL env)",
	)
	flagEmail = flag.String("email", "", "Account email (or set EMAIL env)")
	flagPassword = flag.String("password", "", "Account password (or set PASSWORD env)")
	flagTokenFile = flag.String(
		"token-file",
		"",
		"Credential storage file (default: .courtside-tokens.json or TOKEN_FILE env)",
	)
	flagDeviceID = flag.String(
		"device-id",
		"",
		"Device/installation ID (default: generated and persisted, or DEVICE_ID env)",
	)
}

// initConfig parses flags and initializes configuration
// Separated from init() to avoid conflicts with test flag parsing
func initConfig() {
	if configInitialized {
		return
	}
	configInitialized = true

	flag.Parse()

	// Priority: flag > env > default
	serverURL = getConfig(*flagServerURL, "SERVER_URL", "http://localhost:8080")
	email = getConfig(*flagEmail, "EMAIL", "")
	password = getConfig(*flagPassword, "PASSWORD", "")
	tokenFile = getConfig(*flagTokenFile, "TOKEN_FILE", ".courtside-tokens.json")
	deviceID = getConfig(*flagDeviceID, "DEVICE_ID", "")

	// Validate SERVER_URL format
	if err := validateServerURL(serverURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid SERVER_URL: %v\n", err)
		os.Exit(1)
	}

	// Warn if using HTTP instead of HTTPS
	if strings.HasPrefix(strings.ToLower(serverURL), "http://") {
		fmt.Fprintln(
			os.Stderr,
			"⚠️  WARNING: Using HTTP instead of HTTPS. Tokens will be transmitted in plaintext!",
		)
		fmt.Fprintln(
			os.Stderr,
			"⚠️  This is only safe for local development. Use HTTPS in production.",
		)
		fmt.Fprintln(os.Stderr)
	}

	if deviceID == "" {
		var err error
		deviceID, err = loadOrCreateDeviceID(tokenFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to initialize device ID: %v\n", err)
			os.Exit(1)
		}
	}

	// Validate DEVICE_ID format (should be UUID)
	if _, err := uuid.Parse(deviceID); err != nil {
		fmt.Fprintf(
			os.Stderr,
			"⚠️  Warning: DEVICE_ID doesn't appear to be a valid UUID: %s\n",
			deviceID,
		)
		fmt.Fprintln(os.Stderr)
	}

	// Initialize HTTP client with retry support
	baseHTTPClient := &http.Client{
		Transport: newBaseTransport(),
	}

	// Wrap with retry logic using go-httpretry
	var err error
	retryClient, err = retry.NewBackgroundClient(
		retry.WithHTTPClient(baseHTTPClient),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create retry client: %v", err))
	}
}

// newBaseTransport returns the tuned http.Transport shared by all clients.
func newBaseTransport() *http.Transport {
	return &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableKeepAlives:   false,
	}
}

// getConfig returns value with priority: flag > env > default
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// validateServerURL validates that the server URL is properly formatted
func validateServerURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

// serverOrigin reduces rawURL to scheme://host, the key credentials are
// stored under.
func serverOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}

// loadOrCreateDeviceID returns the persisted installation ID, generating and
// saving a new one on first run. It lives next to the token file so wiping
// one wipes both.
func loadOrCreateDeviceID(tokenPath string) (string, error) {
	idPath := filepath.Join(filepath.Dir(tokenPath), ".courtside-device-id")

	if data, err := os.ReadFile(idPath); err == nil {
		id := strings.TrimSpace(string(data))
		if _, parseErr := uuid.Parse(id); parseErr == nil {
			return id, nil
		}
		// Corrupt ID file: fall through and regenerate.
	}

	id := uuid.NewString()
	if err := os.WriteFile(idPath, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to persist device ID: %w", err)
	}
	return id, nil
}

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func main() {
	initConfig()

	if isTTY() {
		// Run TUI program on stderr so stdout pipes are not corrupted
		m := tui.NewModel()
		// WithInput(nil): disable stdin/keyboard input so BubbleTea skips terminal
		// capability queries (?2026/?2027). Ctrl+C is handled by signal.NotifyContext.
		p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()

		d := tui.NewProgramDisplayer(p)
		d.Banner()
		runErr := run(d)
		p.Quit() // let BubbleTea drain terminal query responses before exiting
		wg.Wait()
		if runErr != nil {
			os.Exit(1)
		}
	} else {
		d := tui.NewPlainDisplayer(os.Stderr)
		d.Banner()
		if err := run(d); err != nil {
			os.Exit(1)
		}
	}
}

// newPipeline builds the authenticated-request pipeline once: credential
// store, refresh coordinator, and the intercepting transport, all with
// explicit dependencies.
func newPipeline(d tui.Displayer) (auth.Store, *auth.Refresher, *api.Client) {
	store := auth.NewFileStore(tokenFile, serverOrigin(serverURL))

	refresher := auth.NewRefresher(store, retryClient, serverURL+"/auth/refresh-token")
	refresher.OnRefresh = func(err error) {
		if err == nil {
			d.RefreshOK()
		} else {
			d.RefreshFailed(err)
		}
	}

	authedClient := &http.Client{
		Timeout: requestTimeout,
		Transport: &auth.Transport{
			Base:      newBaseTransport(),
			Store:     store,
			Refresher: refresher,
			DeviceID:  deviceID,
		},
	}

	client := api.NewClient(serverURL, authedClient, retryClient, store)
	return store, refresher, client
}

func run(d tui.Displayer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, refresher, client := newPipeline(d)

	// Try to reuse the stored session
	creds, err := store.Get()
	if err == nil {
		d.CredentialsFound()

		if creds.Valid(refreshBuffer) {
			d.TokenValid()
		} else {
			d.TokenExpired()
			d.Refreshing()

			if _, refreshErr := refresher.Refresh(ctx); refreshErr != nil {
				// Outcome already surfaced via OnRefresh; fall back
				// to a fresh login like a cold start.
				creds = nil
			} else {
				creds, _ = store.Get()
			}
		}
	} else {
		d.CredentialsNotFound()
	}

	// If no usable session, do a password login
	if creds == nil {
		if email == "" || password == "" {
			err := errors.New(
				"no stored session and no login credentials; " +
					"provide -email/-password flags or EMAIL/PASSWORD env",
			)
			d.Fatal(err)
			return err
		}

		d.LoggingIn(email)
		newCreds, user, loginErr := client.Login(ctx, email, password)
		if loginErr != nil {
			d.Fatal(loginErr)
			return loginErr
		}
		creds = newCreds
		d.LoginOK(user.Name)
		d.CredentialsSaved(tokenFile)
	}

	// Display current token info
	tokenPreview := creds.AccessToken
	if len(tokenPreview) > 50 {
		tokenPreview = tokenPreview[:50]
	}
	tokenType := creds.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	d.TokenInfo(tokenPreview, tokenType, time.Until(creds.ExpiresAt))

	// Everything below goes through the pipeline: an expired access token is
	// refreshed and retried transparently, including mid-listing.
	d.FetchingProfile()
	user, err := client.Me(ctx)
	if err != nil {
		if auth.IsSessionExpired(err) {
			d.SessionExpired()
		}
		d.Fatal(err)
		return err
	}
	d.ProfileOK(user.Name, user.Email)

	d.FetchingMatches()
	matches, err := client.Matches(ctx, "upcoming")
	if err != nil {
		if auth.IsSessionExpired(err) {
			d.SessionExpired()
		}
		d.Fatal(err)
		return err
	}
	d.Matches(matchRows(matches))

	d.Done()
	return nil
}

// matchRows formats matches for display.
func matchRows(matches []api.Match) []tui.MatchRow {
	rows := make([]tui.MatchRow, 0, len(matches))
	for _, m := range matches {
		venue := m.VenueName
		if venue == "" {
			venue = m.VenueID
		}
		rows = append(rows, tui.MatchRow{
			Sport:   m.Sport,
			Venue:   venue,
			When:    m.StartsAt.Local().Format("Mon Jan 2 15:04"),
			Players: fmt.Sprintf("%d/%d", m.PlayersJoined, m.PlayersNeeded),
		})
	}
	return rows
}
