package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// state represents the current phase of the session flow.
type state int

const (
	stateInit       state = iota
	stateRefreshing       // refreshing the stored token
	stateLoggingIn        // password login in progress
	stateFetching         // fetching profile / matches
	stateDone             // all done, showing results
	stateError            // fatal error
)

// statusKind distinguishes line types in the status log.
type statusKind int

const (
	statusOK   statusKind = iota
	statusWarn            // warning / non-fatal
	statusInfo            // neutral info
)

// statusLine is one row in the scrolling status log.
type statusLine struct {
	kind statusKind
	text string
}

// Model is the BubbleTea model for the session TUI.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	// Login / token info
	email        string
	userName     string
	userEmail    string
	tokenPreview string
	tokenType    string
	expiresIn    time.Duration

	// Match listing shown on the done screen
	matches []MatchRow

	errMsg string

	// Scrolling status log shown below the main panel
	statusLines []statusLine
}

// Lipgloss styles, defined once at package level.
var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("35")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("35")).
			Padding(0, 2)

	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold   = lipgloss.NewStyle().Bold(true)
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("35"))
)

// NewModel creates the initial TUI model.
func NewModel() Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("35"))),
	)
	return Model{
		state:   stateInit,
		spinner: s,
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	// ── Session flow messages ────────────────────────────────────────────────

	case MsgBanner:
		return m, nil

	case MsgCredentialsFound:
		m.addStatus(statusOK, "Found stored credentials")
		return m, nil

	case MsgCredentialsNotFound:
		m.addStatus(statusInfo, "No stored credentials")
		return m, nil

	case MsgTokenValid:
		m.addStatus(statusOK, "Access token is still valid")
		return m, nil

	case MsgTokenExpired:
		m.addStatus(statusWarn, "Access token expired")
		return m, nil

	case MsgRefreshing:
		m.state = stateRefreshing
		m.addStatus(statusInfo, "Refreshing access token...")
		return m, nil

	case MsgRefreshOK:
		m.addStatus(statusOK, "Token refreshed successfully")
		return m, nil

	case MsgRefreshFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Refresh failed: %v", msg.Err))
		return m, nil

	case MsgSessionExpired:
		m.addStatus(statusWarn, "Session expired, logging in again")
		return m, nil

	case MsgLoggingIn:
		m.email = msg.Email
		m.state = stateLoggingIn
		m.addStatus(statusInfo, "Logging in as "+msg.Email)
		return m, nil

	case MsgLoginOK:
		m.userName = msg.Name
		m.addStatus(statusOK, "Logged in as "+msg.Name)
		return m, nil

	case MsgCredentialsSaved:
		m.addStatus(statusOK, "Credentials saved to "+msg.Path)
		return m, nil

	case MsgTokenInfo:
		m.tokenPreview = msg.Preview
		m.tokenType = msg.TokenType
		m.expiresIn = msg.ExpiresIn
		return m, nil

	case MsgFetchingProfile:
		m.state = stateFetching
		m.addStatus(statusInfo, "Fetching profile...")
		return m, nil

	case MsgProfileOK:
		m.userName = msg.Name
		m.userEmail = msg.Email
		m.addStatus(statusOK, "Profile loaded")
		return m, nil

	case MsgFetchingMatches:
		m.state = stateFetching
		m.addStatus(statusInfo, "Fetching upcoming matches...")
		return m, nil

	case MsgMatches:
		m.matches = msg.Rows
		m.addStatus(statusOK, fmt.Sprintf("Found %d upcoming matches", len(msg.Rows)))
		return m, nil

	case MsgDone:
		m.state = stateDone
		return m, nil

	case MsgFatal:
		m.errMsg = msg.Err.Error()
		m.state = stateError
		return m, nil
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() tea.View {
	switch m.state {
	case stateDone:
		return tea.NewView(m.viewDone())
	case stateError:
		return tea.NewView(m.viewError())
	default:
		return tea.NewView(m.viewMain())
	}
}

// viewMain is shown during init, refresh, login, and fetching.
func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleTitleBox.Render("  Courtside  "))
	b.WriteString("\n\n")

	switch m.state {
	case stateRefreshing:
		b.WriteString(m.spinner.View())
		b.WriteString(" Refreshing access token...\n")

	case stateLoggingIn:
		b.WriteString(m.spinner.View())
		b.WriteString(" Logging in as " + m.email + "...\n")

	case stateFetching:
		b.WriteString(m.spinner.View())
		b.WriteString(" Loading...\n")

	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" Initializing...\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewDone shows the session summary and upcoming matches.
func (m Model) viewDone() string {
	var b strings.Builder

	b.WriteString("\n")
	if m.userName != "" {
		b.WriteString(styleOK.Render("  ✓ Signed in as " + m.userName))
		if m.userEmail != "" {
			b.WriteString(styleDim.Render(" <" + m.userEmail + ">"))
		}
	} else {
		b.WriteString(styleOK.Render("  ✓ Signed in"))
	}
	b.WriteString("\n\n")

	if m.tokenPreview != "" {
		b.WriteString(styleBold.Render("Access Token: "))
		b.WriteString(m.tokenPreview + "...\n")
		b.WriteString(styleBold.Render("Token Type:   "))
		b.WriteString(m.tokenType + "\n")
		b.WriteString(styleBold.Render("Expires In:   "))
		b.WriteString(formatDuration(m.expiresIn) + "\n\n")
	}

	b.WriteString(m.viewMatches())
	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewMatches renders the upcoming match table.
func (m Model) viewMatches() string {
	if len(m.matches) == 0 {
		return styleDim.Render("  No upcoming matches") + "\n"
	}

	var b strings.Builder
	b.WriteString(styleHeader.Render("Upcoming matches"))
	b.WriteString("\n")
	b.WriteString(styleDim.Render(fmt.Sprintf(
		"  %-12s %-24s %-18s %s", "SPORT", "VENUE", "WHEN", "PLAYERS",
	)))
	b.WriteString("\n")
	for _, row := range m.matches {
		b.WriteString(fmt.Sprintf(
			"  %-12s %-24s %-18s %s\n", row.Sport, row.Venue, row.When, row.Players,
		))
	}
	return b.String()
}

// viewError is shown when a fatal error occurs.
func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ Session failed"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewStatusLog renders the scrolling status log.
func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	for _, line := range m.statusLines {
		switch line.kind {
		case statusOK:
			b.WriteString(styleOK.Render("  ✓ " + line.text))
		case statusWarn:
			b.WriteString(styleWarn.Render("  ⚠ " + line.text))
		default:
			b.WriteString(styleDim.Render("  · " + line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// addStatus appends a line to the status log.
func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
}

// formatDuration formats a duration as "Xm Ys" or "Xs".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
