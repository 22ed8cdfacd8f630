// Package tui renders a roadmap progress stream in the terminal using
// bubbletea, and falls back to plain lines when there is no TTY.
package tui

import (
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/onboard/internal/events"
	"github.com/npratt/onboard/internal/progress"
)

// DefaultMaxLines is how many log lines are kept when WithMaxLines is
// not given.
const DefaultMaxLines = 200

// TUI is the terminal UI for one watch.
type TUI struct {
	eventChan  <-chan events.Event
	snapChan   <-chan progress.Snapshot
	sessionID  string
	maxLines   int
	onQuit     func()
	out        io.Writer
	forcePlain bool
}

// Option configures the TUI.
type Option func(*TUI)

// New creates a TUI fed by a router subscription and a controller
// snapshot subscription. The UI exits when snapChan closes.
func New(eventChan <-chan events.Event, snapChan <-chan progress.Snapshot, opts ...Option) *TUI {
	t := &TUI{
		eventChan: eventChan,
		snapChan:  snapChan,
		maxLines:  DefaultMaxLines,
		out:       os.Stdout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithSession sets the session id shown in the header.
func WithSession(id string) Option {
	return func(t *TUI) {
		t.sessionID = id
	}
}

// WithMaxLines caps the number of log lines kept on screen.
func WithMaxLines(n int) Option {
	return func(t *TUI) {
		if n > 0 {
			t.maxLines = n
		}
	}
}

// WithOnQuit sets the callback invoked when the user presses 'q'.
func WithOnQuit(fn func()) Option {
	return func(t *TUI) {
		t.onQuit = fn
	}
}

// WithPlain forces line output even on a terminal.
func WithPlain(plain bool) Option {
	return func(t *TUI) {
		t.forcePlain = plain
	}
}

// WithOutput sets where plain output is written. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(t *TUI) {
		t.out = w
	}
}

// Run blocks until the snapshot channel closes or the user quits.
func (t *TUI) Run() error {
	if t.forcePlain || !isTerminal() || terminalTooSmall() {
		return t.runSimple()
	}

	m := newModel(t.eventChan, t.snapChan, t.sessionID, t.maxLines, t.onQuit)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
