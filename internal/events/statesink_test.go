package events

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/npratt/onboard/internal/progress"
	"github.com/npratt/onboard/internal/roadmap"
)

func published(s progress.Snapshot) *SnapshotPublishedEvent {
	return &SnapshotPublishedEvent{
		BaseEvent: NewControllerEvent(EventSnapshotPublished),
		SessionID: "abc",
		Snapshot:  s,
	}
}

func runStateSink(t *testing.T, evs ...Event) (*StateSink, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	sink := NewStateSink(path, nil)
	sink.SetMinDelay(0)

	ch := make(chan Event, len(evs))
	if err := sink.Start(context.Background(), ch); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, e := range evs {
		ch <- e
	}
	close(ch)
	if err := sink.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	return sink, path
}

func TestNewStateSink(t *testing.T) {
	sink := NewStateSink("/tmp/state.json", nil)
	st := sink.State()
	if st.Version != CurrentStateVersion {
		t.Errorf("Version = %d, want %d", st.Version, CurrentStateVersion)
	}
	if st.Connection != ConnectionIdle {
		t.Errorf("Connection = %q, want idle", st.Connection)
	}
	if st.Snapshot.Status != progress.StatusIdle {
		t.Errorf("Snapshot.Status = %q, want idle", st.Snapshot.Status)
	}
}

func TestStateSinkTracksConnection(t *testing.T) {
	sink, path := runStateSink(t,
		&SessionBoundEvent{BaseEvent: NewControllerEvent(EventSessionBound), SessionID: "abc", Generation: 1},
		&ConnectionOpeningEvent{BaseEvent: NewControllerEvent(EventConnectionOpening), SessionID: "abc"},
		&ConnectionOpenedEvent{BaseEvent: NewControllerEvent(EventConnectionOpened), SessionID: "abc"},
		published(progress.Snapshot{Status: progress.StatusInProgress, Step: "researching", ProgressPercent: 30}),
		&ConnectionClosedEvent{BaseEvent: NewControllerEvent(EventConnectionClosed), SessionID: "abc", Code: 1006},
		&ReconnectScheduledEvent{BaseEvent: NewControllerEvent(EventReconnectScheduled), SessionID: "abc", Attempt: 1, Delay: time.Second},
	)

	st, err := ReadState(path)
	if err != nil {
		t.Fatalf("ReadState failed: %v", err)
	}
	if st.SessionID != "abc" {
		t.Errorf("SessionID = %q, want abc", st.SessionID)
	}
	if st.Connection != ConnectionClosed {
		t.Errorf("Connection = %q, want closed", st.Connection)
	}
	if st.LastClose != 1006 {
		t.Errorf("LastClose = %d, want 1006", st.LastClose)
	}
	if st.Reconnects != 1 || st.Attempts != 1 {
		t.Errorf("Reconnects/Attempts = %d/%d, want 1/1", st.Reconnects, st.Attempts)
	}
	if st.Snapshot.Step != "researching" || st.Snapshot.ProgressPercent != 30 {
		t.Errorf("Snapshot = %+v", st.Snapshot)
	}
	if got := sink.State(); got.Snapshot.Step != "researching" {
		t.Errorf("in-memory state = %+v", got)
	}
}

func TestStateSinkKeepsTerminalOverIdle(t *testing.T) {
	msg := "boom"
	_, path := runStateSink(t,
		&SessionBoundEvent{BaseEvent: NewControllerEvent(EventSessionBound), SessionID: "abc"},
		published(progress.Snapshot{Status: progress.StatusError, ErrorMessage: &msg}),
		&SessionUnboundEvent{BaseEvent: NewControllerEvent(EventSessionUnbound), SessionID: "abc"},
		published(progress.Idle()),
	)

	st, err := ReadState(path)
	if err != nil {
		t.Fatalf("ReadState failed: %v", err)
	}
	if st.Snapshot.Status != progress.StatusError || st.Snapshot.Message() != "boom" {
		t.Errorf("Snapshot = %+v, want the error kept", st.Snapshot)
	}
	if st.Connection != ConnectionIdle {
		t.Errorf("Connection = %q, want idle", st.Connection)
	}
}

func TestStateSinkRoadmapSaved(t *testing.T) {
	r := &roadmap.CourseRoadmap{ID: "rm", Title: "Go"}
	_, path := runStateSink(t,
		&SessionBoundEvent{BaseEvent: NewControllerEvent(EventSessionBound), SessionID: "abc"},
		published(progress.Snapshot{Status: progress.StatusCompleted, ProgressPercent: 100, Result: r}),
		&RoadmapSavedEvent{BaseEvent: NewEvent(EventRoadmapSaved, SourceConsumer), SessionID: "abc", Path: "/tmp/abc.json"},
	)

	st, err := ReadState(path)
	if err != nil {
		t.Fatalf("ReadState failed: %v", err)
	}
	if st.RoadmapPath != "/tmp/abc.json" {
		t.Errorf("RoadmapPath = %q", st.RoadmapPath)
	}
	if st.Snapshot.Result == nil || st.Snapshot.Result.Title != "Go" {
		t.Errorf("Snapshot.Result = %+v", st.Snapshot.Result)
	}
}

func TestStateSinkRebindResets(t *testing.T) {
	_, path := runStateSink(t,
		&SessionBoundEvent{BaseEvent: NewControllerEvent(EventSessionBound), SessionID: "one"},
		&ReconnectScheduledEvent{BaseEvent: NewControllerEvent(EventReconnectScheduled), SessionID: "one", Attempt: 3},
		&SessionBoundEvent{BaseEvent: NewControllerEvent(EventSessionBound), SessionID: "two"},
	)

	st, err := ReadState(path)
	if err != nil {
		t.Fatalf("ReadState failed: %v", err)
	}
	if st.SessionID != "two" || st.Reconnects != 0 {
		t.Errorf("state = %+v, want reset for session two", st)
	}
}

func TestStateSinkDebounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	sink := NewStateSink(path, nil)
	sink.SetMinDelay(time.Hour)

	ch := make(chan Event, 4)
	if err := sink.Start(context.Background(), ch); err != nil {
		t.Fatal(err)
	}

	// First event saves (lastSave is zero), the next is debounced.
	ch <- &SessionBoundEvent{BaseEvent: NewControllerEvent(EventSessionBound), SessionID: "abc"}
	ch <- published(progress.Snapshot{Status: progress.StatusPending})
	waitFor(t, func() bool { return sink.State().Snapshot.Status == progress.StatusPending })

	st, err := ReadState(path)
	if err != nil {
		t.Fatalf("ReadState failed: %v", err)
	}
	if st.Snapshot.Status == progress.StatusPending {
		t.Error("debounced snapshot written before flush")
	}

	close(ch)
	_ = sink.Stop()

	st, err = ReadState(path)
	if err != nil {
		t.Fatalf("ReadState failed: %v", err)
	}
	if st.Snapshot.Status != progress.StatusPending {
		t.Errorf("final flush missed snapshot: %+v", st.Snapshot)
	}
}

func TestReadStateErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := ReadState(filepath.Join(dir, "missing.json")); !os.IsNotExist(err) {
		t.Errorf("missing file err = %v, want not-exist", err)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	_ = os.WriteFile(corrupt, []byte("{"), 0644)
	if _, err := ReadState(corrupt); err == nil {
		t.Error("corrupt state should fail")
	}

	old := filepath.Join(dir, "old.json")
	_ = os.WriteFile(old, []byte(`{"version":0}`), 0644)
	if _, err := ReadState(old); err == nil {
		t.Error("version 0 state should fail")
	}
}
