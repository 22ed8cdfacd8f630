package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/onboard/internal/events"
	"github.com/npratt/onboard/internal/progress"
)

func TestView_BeforeSize(t *testing.T) {
	m := newModel(nil, nil, "", 0, nil)
	if got := m.View(); got != "Loading..." {
		t.Errorf("View() = %q, want Loading...", got)
	}
}

func TestView_TooSmall(t *testing.T) {
	m := newModel(nil, nil, "", 0, nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 20, Height: 5})
	if got := m.View(); !strings.Contains(got, "Terminal too small") {
		t.Errorf("View() = %q, want too-small notice", got)
	}
}

func TestView_InProgress(t *testing.T) {
	m := sizedModel(t)
	m, _ = update(t, m, eventMsg{event: opened()})
	m, _ = update(t, m, snapshotMsg(researching()))

	view := m.View()
	for _, want := range []string{
		"onboard",
		"sess-1",
		"connected",
		"in_progress",
		events.StepLabel("researching"),
		"Finding sources",
		"30%",
		"q: quit",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "tab: outline") {
		t.Error("outline hint should only show once a roadmap exists")
	}
}

func TestView_Error(t *testing.T) {
	m := sizedModel(t)
	m, _ = update(t, m, snapshotMsg(researching().Failed("LLM quota exceeded")))

	view := m.View()
	if !strings.Contains(view, "LLM quota exceeded") {
		t.Errorf("view missing error message:\n%s", view)
	}
	if !strings.Contains(view, "[x]") {
		t.Errorf("view missing error marker:\n%s", view)
	}
}

func TestView_CompletedOutline(t *testing.T) {
	m := sizedModel(t)
	m.savedPath = "/tmp/sess-1.json"
	m, _ = update(t, m, snapshotMsg(completed()))

	view := m.View()
	for _, want := range []string{
		"Go for Backend Engineers",
		"1. Foundations",
		"2. Services",
		"HTTP servers",
		"saved to /tmp/sess-1.json",
		"100%",
		"tab: log",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestBody_EmptyLog(t *testing.T) {
	m := sizedModel(t)
	if got := m.body(); !strings.Contains(got, "Waiting for events") {
		t.Errorf("body() = %q, want waiting placeholder", got)
	}
}

func TestStatusStyle_AllStatuses(t *testing.T) {
	for _, s := range []progress.Status{
		progress.StatusIdle,
		progress.StatusConnecting,
		progress.StatusPending,
		progress.StatusInProgress,
		progress.StatusCompleted,
		progress.StatusError,
	} {
		if r := statusStyle(s).Render(string(s)); !strings.Contains(r, string(s)) {
			t.Errorf("statusStyle(%s) lost the text: %q", s, r)
		}
	}
}
