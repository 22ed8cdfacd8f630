package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/onboard/internal/events"
	"github.com/npratt/onboard/internal/progress"
	"github.com/npratt/onboard/internal/testutil"
)

// update applies msg and returns the concrete model.
func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(model)
	if !ok {
		t.Fatalf("Update returned %T, want model", next)
	}
	return mm, cmd
}

// sizedModel returns a model with an 80x24 window.
func sizedModel(t *testing.T) model {
	t.Helper()
	m := newModel(nil, nil, "sess-1", 0, nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	return m
}

func researching() progress.Snapshot {
	return progress.Snapshot{
		Status:          progress.StatusInProgress,
		Step:            "researching",
		Detail:          "Finding sources",
		ProgressPercent: 30,
	}
}

func completed() progress.Snapshot {
	return progress.Snapshot{
		Status:          progress.StatusCompleted,
		Step:            "done",
		Detail:          "Roadmap ready",
		ProgressPercent: 100,
		Result:          testutil.SampleRoadmap(),
	}
}

func opened() events.Event {
	return &events.ConnectionOpenedEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventConnectionOpened, Time: time.Now()},
		SessionID: "sess-1",
	}
}
