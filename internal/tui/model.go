package tui

import (
	"time"

	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/onboard/internal/events"
	"github.com/npratt/onboard/internal/progress"
)

// eventLine is one formatted entry in the connection log.
type eventLine struct {
	Time  time.Time
	Text  string
	Style lipgloss.Style
}

// Rows taken by everything except the viewport: border (2), header (3),
// dividers (2), footer (1).
const chromeRows = 8

// model is the bubbletea model for the TUI.
type model struct {
	eventChan <-chan events.Event
	snapChan  <-chan progress.Snapshot

	sessionID  string
	snap       progress.Snapshot
	connection string
	savedPath  string

	lines       []eventLine
	maxLines    int
	showOutline bool
	outlineSeen bool

	spinner  spinner.Model
	spinning bool
	bar      progressbar.Model
	viewport viewport.Model

	width  int
	height int

	onQuit func()
}

// eventMsg wraps a router event for the bubbletea message system.
type eventMsg struct{ event events.Event }

// snapshotMsg carries a newly published snapshot.
type snapshotMsg progress.Snapshot

// eventsClosedMsg signals that the router subscription was closed.
type eventsClosedMsg struct{}

// snapshotsClosedMsg signals that the controller stopped.
type snapshotsClosedMsg struct{}

func newModel(eventChan <-chan events.Event, snapChan <-chan progress.Snapshot, sessionID string, maxLines int, onQuit func()) model {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return model{
		eventChan:  eventChan,
		snapChan:   snapChan,
		sessionID:  sessionID,
		snap:       progress.Idle(),
		connection: "waiting",
		maxLines:   maxLines,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(styles.Spinner),
		),
		spinning: true,
		bar:      progressbar.New(progressbar.WithDefaultGradient()),
		viewport: viewport.New(0, 0),
		onQuit:   onQuit,
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.eventChan),
		waitForSnapshot(m.snapChan),
		m.spinner.Tick,
	)
}

// innerWidth is the usable width inside the border.
func (m model) innerWidth() int {
	return max(1, m.width-2)
}

// resize fits the bar and viewport to the current window.
func (m *model) resize() {
	w := m.innerWidth()
	m.bar.Width = max(10, w-2)
	m.viewport.Width = w
	m.viewport.Height = max(1, m.height-chromeRows)
	m.refresh()
}

// refresh re-renders the viewport body, following the tail of the log
// when the view was already at the bottom.
func (m *model) refresh() {
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.body())
	if follow && !m.showOutline {
		m.viewport.GotoBottom()
	}
}

func (m *model) appendLine(el eventLine) {
	m.lines = append(m.lines, el)
	if over := len(m.lines) - m.maxLines; over > 0 {
		m.lines = m.lines[over:]
	}
}
