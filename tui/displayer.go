package tui

import (
	"fmt"
	"io"
	"time"

	tea "charm.land/bubbletea/v2"
)

// Displayer abstracts all output from the session flow.
type Displayer interface {
	Banner()
	CredentialsFound()
	CredentialsNotFound()
	TokenValid()
	TokenExpired()
	Refreshing()
	RefreshOK()
	RefreshFailed(err error)
	SessionExpired()
	LoggingIn(email string)
	LoginOK(name string)
	CredentialsSaved(path string)
	TokenInfo(preview, tokenType string, expiresIn time.Duration)
	FetchingProfile()
	ProfileOK(name, email string)
	FetchingMatches()
	Matches(rows []MatchRow)
	Done()
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w.
// Used when stderr is not a TTY (pipes, CI, SSH without pty).
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Banner() {
	fmt.Fprintln(p.w, "=== Courtside CLI ===")
	fmt.Fprintln(p.w)
}

func (p *PlainDisplayer) CredentialsFound() {
	fmt.Fprintln(p.w, "Found stored credentials")
}

func (p *PlainDisplayer) CredentialsNotFound() {
	fmt.Fprintln(p.w, "No stored credentials, logging in...")
}

func (p *PlainDisplayer) TokenValid() {
	fmt.Fprintln(p.w, "Access token is still valid, using it...")
}

func (p *PlainDisplayer) TokenExpired() {
	fmt.Fprintln(p.w, "Access token expired")
}

func (p *PlainDisplayer) Refreshing() {
	fmt.Fprintln(p.w, "Refreshing access token...")
}

func (p *PlainDisplayer) RefreshOK() {
	fmt.Fprintln(p.w, "Token refreshed successfully")
}

func (p *PlainDisplayer) RefreshFailed(err error) {
	fmt.Fprintf(p.w, "Refresh failed: %v\n", err)
}

func (p *PlainDisplayer) SessionExpired() {
	fmt.Fprintln(p.w, "Session expired, please log in again")
}

func (p *PlainDisplayer) LoggingIn(email string) {
	fmt.Fprintf(p.w, "Logging in as %s...\n", email)
}

func (p *PlainDisplayer) LoginOK(name string) {
	fmt.Fprintf(p.w, "Welcome, %s!\n", name)
}

func (p *PlainDisplayer) CredentialsSaved(path string) {
	fmt.Fprintf(p.w, "Credentials saved to %s\n", path)
}

func (p *PlainDisplayer) TokenInfo(preview, tokenType string, expiresIn time.Duration) {
	fmt.Fprintln(p.w, "----------------------------------------")
	fmt.Fprintf(p.w, "Access Token: %s...\n", preview)
	fmt.Fprintf(p.w, "Token Type: %s\n", tokenType)
	fmt.Fprintf(p.w, "Expires In: %s\n", expiresIn.Round(time.Second))
	fmt.Fprintln(p.w, "----------------------------------------")
}

func (p *PlainDisplayer) FetchingProfile() {
	fmt.Fprintln(p.w, "Fetching profile...")
}

func (p *PlainDisplayer) ProfileOK(name, email string) {
	fmt.Fprintf(p.w, "Profile: %s <%s>\n", name, email)
}

func (p *PlainDisplayer) FetchingMatches() {
	fmt.Fprintln(p.w, "Fetching upcoming matches...")
}

func (p *PlainDisplayer) Matches(rows []MatchRow) {
	if len(rows) == 0 {
		fmt.Fprintln(p.w, "No upcoming matches")
		return
	}
	fmt.Fprintf(p.w, "Upcoming matches (%d):\n", len(rows))
	for _, row := range rows {
		fmt.Fprintf(p.w, "  %-12s %-24s %-18s %s\n", row.Sport, row.Venue, row.When, row.Players)
	}
}

func (p *PlainDisplayer) Done() {
	fmt.Fprintln(p.w, "Done.")
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner()                                {}
func (NoopDisplayer) CredentialsFound()                      {}
func (NoopDisplayer) CredentialsNotFound()                   {}
func (NoopDisplayer) TokenValid()                            {}
func (NoopDisplayer) TokenExpired()                          {}
func (NoopDisplayer) Refreshing()                            {}
func (NoopDisplayer) RefreshOK()                             {}
func (NoopDisplayer) RefreshFailed(_ error)                  {}
func (NoopDisplayer) SessionExpired()                        {}
func (NoopDisplayer) LoggingIn(_ string)                     {}
func (NoopDisplayer) LoginOK(_ string)                       {}
func (NoopDisplayer) CredentialsSaved(_ string)              {}
func (NoopDisplayer) TokenInfo(_, _ string, _ time.Duration) {}
func (NoopDisplayer) FetchingProfile()                       {}
func (NoopDisplayer) ProfileOK(_, _ string)                  {}
func (NoopDisplayer) FetchingMatches()                       {}
func (NoopDisplayer) Matches(_ []MatchRow)                   {}
func (NoopDisplayer) Done()                                  {}
func (NoopDisplayer) Fatal(_ error)                          {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Banner() {
	t.p.Send(MsgBanner{})
}

func (t *ProgramDisplayer) CredentialsFound() {
	t.p.Send(MsgCredentialsFound{})
}

func (t *ProgramDisplayer) CredentialsNotFound() {
	t.p.Send(MsgCredentialsNotFound{})
}

func (t *ProgramDisplayer) TokenValid() {
	t.p.Send(MsgTokenValid{})
}

func (t *ProgramDisplayer) TokenExpired() {
	t.p.Send(MsgTokenExpired{})
}

func (t *ProgramDisplayer) Refreshing() {
	t.p.Send(MsgRefreshing{})
}

func (t *ProgramDisplayer) RefreshOK() {
	t.p.Send(MsgRefreshOK{})
}

func (t *ProgramDisplayer) RefreshFailed(err error) {
	t.p.Send(MsgRefreshFailed{Err: err})
}

func (t *ProgramDisplayer) SessionExpired() {
	t.p.Send(MsgSessionExpired{})
}

func (t *ProgramDisplayer) LoggingIn(email string) {
	t.p.Send(MsgLoggingIn{Email: email})
}

func (t *ProgramDisplayer) LoginOK(name string) {
	t.p.Send(MsgLoginOK{Name: name})
}

func (t *ProgramDisplayer) CredentialsSaved(path string) {
	t.p.Send(MsgCredentialsSaved{Path: path})
}

func (t *ProgramDisplayer) TokenInfo(preview, tokenType string, expiresIn time.Duration) {
	t.p.Send(MsgTokenInfo{Preview: preview, TokenType: tokenType, ExpiresIn: expiresIn})
}

func (t *ProgramDisplayer) FetchingProfile() {
	t.p.Send(MsgFetchingProfile{})
}

func (t *ProgramDisplayer) ProfileOK(name, email string) {
	t.p.Send(MsgProfileOK{Name: name, Email: email})
}

func (t *ProgramDisplayer) FetchingMatches() {
	t.p.Send(MsgFetchingMatches{})
}

func (t *ProgramDisplayer) Matches(rows []MatchRow) {
	t.p.Send(MsgMatches{Rows: rows})
}

func (t *ProgramDisplayer) Done() {
	t.p.Send(MsgDone{})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
