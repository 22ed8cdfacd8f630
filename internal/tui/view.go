package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/onboard/internal/events"
	"github.com/npratt/onboard/internal/progress"
	"github.com/npratt/onboard/internal/roadmap"
)

const (
	minWidth  = 40
	minHeight = 12
)

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.width < minWidth || m.height < minHeight {
		return m.renderTooSmall()
	}

	sections := []string{
		m.renderTitle(),
		m.renderStatus(),
		m.renderBar(),
		m.renderDivider(),
		m.viewport.View(),
		m.renderDivider(),
		m.renderFooter(),
	}

	rendered := styles.Container.
		Width(m.innerWidth()).
		Render(strings.Join(sections, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, rendered)
}

func (m model) renderTooSmall() string {
	return fmt.Sprintf("Terminal too small (%dx%d). Need at least %dx%d.",
		m.width, m.height, minWidth, minHeight)
}

func (m model) renderTitle() string {
	title := styles.Title.Render("onboard")
	if m.sessionID != "" {
		title += "  " + styles.Session.Render(events.SafeString(m.sessionID))
	}
	conn := styles.Dim.Render(m.connection)

	gap := m.innerWidth() - lipgloss.Width(title) - lipgloss.Width(conn)
	if gap < 1 {
		return title
	}
	return title + strings.Repeat(" ", gap) + conn
}

// renderStatus shows the spinner while work is in flight, otherwise the
// status symbol, followed by the step and detail.
func (m model) renderStatus() string {
	marker := "[" + events.StatusSymbol(m.snap.Status) + "]"
	if m.spinning && !m.snap.Terminal() {
		marker = m.spinner.View()
	}

	parts := []string{marker, statusStyle(m.snap.Status).Render(string(m.snap.Status))}
	if label := events.StepLabel(m.snap.Step); label != "" {
		parts = append(parts, styles.Step.Render(label))
	}

	line := strings.Join(parts, " ")
	var detail string
	switch {
	case m.snap.Status == progress.StatusError:
		detail = styles.Error.Render(events.SafeString(m.snap.Message()))
	case m.snap.Status == progress.StatusCompleted && m.savedPath != "":
		detail = styles.Good.Render("saved to " + events.SafeString(m.savedPath))
	case m.snap.Detail != "":
		detail = styles.Detail.Render(events.SafeString(m.snap.Detail))
	}
	if detail != "" {
		line += styles.Dim.Render(" - ") + detail
	}
	return lipgloss.NewStyle().MaxWidth(m.innerWidth()).Render(line)
}

func (m model) renderBar() string {
	return " " + m.bar.ViewAs(float64(m.snap.ProgressPercent)/100)
}

func (m model) renderDivider() string {
	return styles.Divider.Render(strings.Repeat("─", m.innerWidth()))
}

func (m model) renderFooter() string {
	keys := "q: quit  ↑/↓: scroll"
	if m.snap.Result != nil {
		if m.showOutline {
			keys += "  tab: log"
		} else {
			keys += "  tab: outline"
		}
	}
	return styles.Footer.Render(keys)
}

// body is the viewport content: the roadmap outline or the event log.
func (m model) body() string {
	if m.showOutline && m.snap.Result != nil {
		return roadmap.Outline(m.snap.Result)
	}
	if len(m.lines) == 0 {
		return styles.Dim.Render("Waiting for events...")
	}

	maxText := max(10, m.innerWidth()-9)
	rendered := make([]string, len(m.lines))
	for i, el := range m.lines {
		rendered[i] = styles.Time.Render(el.Time.Format("15:04:05")) + " " +
			el.Style.Render(events.Truncate(el.Text, maxText))
	}
	return strings.Join(rendered, "\n")
}

func statusStyle(s progress.Status) lipgloss.Style {
	switch s {
	case progress.StatusConnecting, progress.StatusPending:
		return styles.StatusConnecting
	case progress.StatusInProgress:
		return styles.StatusWorking
	case progress.StatusCompleted:
		return styles.StatusCompleted
	case progress.StatusError:
		return styles.StatusError
	default:
		return styles.StatusIdle
	}
}

// StyleForEvent returns the log style for an event.
func StyleForEvent(event events.Event) lipgloss.Style {
	switch e := event.(type) {
	case *events.ErrorEvent, *events.ReconnectExhaustedEvent:
		return styles.Error
	case *events.ConnectionClosedEvent, *events.ReconnectScheduledEvent, *events.FrameDroppedEvent:
		return styles.Warn
	case *events.ConnectionOpenedEvent, *events.RoadmapSavedEvent:
		return styles.Good
	case *events.SnapshotPublishedEvent:
		return statusStyle(e.Snapshot.Status)
	default:
		return styles.Dim
	}
}
