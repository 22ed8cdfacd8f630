package events

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/npratt/onboard/internal/progress"
)

func TestEventInterfaceCompliance(t *testing.T) {
	var _ Event = (*SessionBoundEvent)(nil)
	var _ Event = (*SessionUnboundEvent)(nil)
	var _ Event = (*ConnectionOpeningEvent)(nil)
	var _ Event = (*ConnectionOpenedEvent)(nil)
	var _ Event = (*ConnectionClosedEvent)(nil)
	var _ Event = (*FrameDroppedEvent)(nil)
	var _ Event = (*ReconnectScheduledEvent)(nil)
	var _ Event = (*ReconnectExhaustedEvent)(nil)
	var _ Event = (*SnapshotPublishedEvent)(nil)
	var _ Event = (*RoadmapSavedEvent)(nil)
	var _ Event = (*ErrorEvent)(nil)
	var _ Event = (*BaseEvent)(nil)
}

func TestBaseEventMethods(t *testing.T) {
	now := time.Now()
	event := BaseEvent{EventType: EventConnectionOpened, Time: now, Src: SourceController}

	if event.Type() != EventConnectionOpened {
		t.Errorf("Type() = %v, want %v", event.Type(), EventConnectionOpened)
	}
	if !event.Timestamp().Equal(now) {
		t.Errorf("Timestamp() = %v, want %v", event.Timestamp(), now)
	}
	if event.Source() != SourceController {
		t.Errorf("Source() = %v, want %v", event.Source(), SourceController)
	}
}

func TestNewEventPopulatesTimestamp(t *testing.T) {
	before := time.Now()
	event := NewEvent(EventRoadmapSaved, SourceConsumer)
	after := time.Now()

	if event.Time.Before(before) || event.Time.After(after) {
		t.Errorf("timestamp %v not between %v and %v", event.Time, before, after)
	}
	if event.Src != SourceConsumer {
		t.Errorf("source = %v, want %v", event.Src, SourceConsumer)
	}
}

func TestNewControllerEvent(t *testing.T) {
	event := NewControllerEvent(EventFrameDropped)
	if event.Src != SourceController {
		t.Errorf("source = %v, want %v", event.Src, SourceController)
	}
	if event.EventType != EventFrameDropped {
		t.Errorf("type = %v, want %v", event.EventType, EventFrameDropped)
	}
}

func TestSnapshotPublishedEventJSON(t *testing.T) {
	msg := "Authentication failed. Please log in again."
	ev := &SnapshotPublishedEvent{
		BaseEvent: NewControllerEvent(EventSnapshotPublished),
		SessionID: "abc",
		Snapshot:  progress.Snapshot{Status: progress.StatusError, Step: "researching", ErrorMessage: &msg},
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s := string(data)
	for _, want := range []string{
		`"type":"snapshot.published"`,
		`"source":"controller"`,
		`"status":"error"`,
		`"error":"Authentication failed. Please log in again."`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s missing %s", s, want)
		}
	}
	if strings.Contains(s, `"roadmap"`) {
		t.Errorf("JSON %s should omit nil roadmap", s)
	}
}
