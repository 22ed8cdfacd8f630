package tui

import (
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/onboard/internal/events"
	"github.com/npratt/onboard/internal/progress"
)

// waitForEvent reads the next router event.
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: event}
	}
}

// waitForSnapshot reads the next controller snapshot.
func waitForSnapshot(ch <-chan progress.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return snapshotsClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case eventMsg:
		m.handleEvent(msg.event)
		return m, waitForEvent(m.eventChan)

	case eventsClosedMsg:
		m.eventChan = nil
		return m, nil

	case snapshotMsg:
		cmd := m.handleSnapshot(progress.Snapshot(msg))
		return m, tea.Batch(cmd, waitForSnapshot(m.snapChan))

	case snapshotsClosedMsg:
		slog.Info("snapshot channel closed, exiting TUI")
		return m, tea.Quit

	case spinner.TickMsg:
		if !m.spinning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.onQuit != nil {
			m.onQuit()
		}
		return m, tea.Quit

	case "tab", "o":
		if m.snap.Result != nil {
			m.showOutline = !m.showOutline
			m.refresh()
			if m.showOutline {
				m.viewport.GotoTop()
			} else {
				m.viewport.GotoBottom()
			}
		}
		return m, nil

	case "home", "g":
		m.viewport.GotoTop()
		return m, nil

	case "end", "G":
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleSnapshot records s and switches to the outline the first time a
// roadmap arrives. It restarts the spinner if work resumed.
func (m *model) handleSnapshot(s progress.Snapshot) tea.Cmd {
	m.snap = s

	if s.Result != nil && !m.outlineSeen {
		m.outlineSeen = true
		m.showOutline = true
		m.refresh()
		m.viewport.GotoTop()
	}

	if s.Terminal() {
		m.spinning = false
		return nil
	}
	if !m.spinning {
		m.spinning = true
		return m.spinner.Tick
	}
	return nil
}

// handleEvent updates connection state and appends a log line.
func (m *model) handleEvent(event events.Event) {
	switch e := event.(type) {
	case *events.SessionBoundEvent:
		m.sessionID = e.SessionID
	case *events.ConnectionOpeningEvent:
		if e.Attempt > 0 {
			m.connection = fmt.Sprintf("connecting (attempt %d)", e.Attempt)
		} else {
			m.connection = "connecting"
		}
	case *events.ConnectionOpenedEvent:
		m.connection = "connected"
	case *events.ConnectionClosedEvent:
		m.connection = fmt.Sprintf("closed (%d)", e.Code)
	case *events.ReconnectScheduledEvent:
		m.connection = fmt.Sprintf("retrying in %s", e.Delay)
	case *events.ReconnectExhaustedEvent:
		m.connection = "disconnected"
	case *events.SessionUnboundEvent:
		m.connection = "stopped"
	case *events.RoadmapSavedEvent:
		m.savedPath = e.Path
	}

	text := events.Format(event)
	if text == "" {
		return
	}
	m.appendLine(eventLine{
		Time:  event.Timestamp(),
		Text:  text,
		Style: StyleForEvent(event),
	})
	if !m.showOutline {
		m.refresh()
	}
}
