package tui

import (
	"time"
)

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{}

// MsgCredentialsFound signals that stored credentials were found on disk.
type MsgCredentialsFound struct{}

// MsgCredentialsNotFound signals that no credentials were found (fresh login).
type MsgCredentialsNotFound struct{}

// MsgTokenValid signals that the stored access token is still valid.
type MsgTokenValid struct{}

// MsgTokenExpired signals that the access token has expired.
type MsgTokenExpired struct{}

// MsgRefreshing signals that a token refresh is in progress.
type MsgRefreshing struct{}

// MsgRefreshOK signals that the token was refreshed successfully.
type MsgRefreshOK struct{}

// MsgRefreshFailed signals that a token refresh failed.
type MsgRefreshFailed struct{ Err error }

// MsgSessionExpired signals that the session cannot be recovered and a fresh
// login is required.
type MsgSessionExpired struct{}

// MsgLoggingIn signals that a password login has started.
type MsgLoggingIn struct{ Email string }

// MsgLoginOK signals a successful login.
type MsgLoginOK struct{ Name string }

// MsgCredentialsSaved signals that credentials were saved to disk.
type MsgCredentialsSaved struct{ Path string }

// MsgTokenInfo carries the current token summary.
type MsgTokenInfo struct {
	Preview   string
	TokenType string
	ExpiresIn time.Duration
}

// MsgFetchingProfile signals that the profile request is in progress.
type MsgFetchingProfile struct{}

// MsgProfileOK carries the authenticated user's profile.
type MsgProfileOK struct{ Name, Email string }

// MsgFetchingMatches signals that the match listing request is in progress.
type MsgFetchingMatches struct{}

// MatchRow is one pre-formatted row of the match listing.
type MatchRow struct {
	Sport   string
	Venue   string
	When    string
	Players string
}

// MsgMatches carries the upcoming match listing.
type MsgMatches struct{ Rows []MatchRow }

// MsgDone signals successful completion of the flow.
type MsgDone struct{}

// MsgFatal signals a fatal error that should terminate the flow.
type MsgFatal struct{ Err error }
