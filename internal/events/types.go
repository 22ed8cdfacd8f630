// Package events defines the event taxonomy emitted while following a
// roadmap progress stream, together with the router and sinks that carry
// those events to the TUI, the JSONL log and the state file.
package events

import (
	"time"

	"github.com/npratt/onboard/internal/progress"
)

// EventType identifies the category and nature of an event.
type EventType string

// Event types.
const (
	// Session binding
	EventSessionBound   EventType = "session.bound"
	EventSessionUnbound EventType = "session.unbound"

	// Connection lifecycle
	EventConnectionOpening EventType = "connection.opening"
	EventConnectionOpened  EventType = "connection.opened"
	EventConnectionClosed  EventType = "connection.closed"

	// Inbound frames
	EventFrameDropped EventType = "frame.dropped"

	// Reconnect decisions
	EventReconnectScheduled EventType = "reconnect.scheduled"
	EventReconnectExhausted EventType = "reconnect.exhausted"

	// Published state
	EventSnapshotPublished EventType = "snapshot.published"

	// Roadmap artifact saved to disk
	EventRoadmapSaved EventType = "roadmap.saved"

	EventError EventType = "error"
)

// Source constants identify the origin of events.
const (
	SourceController = "controller"
	SourceConsumer   = "consumer"
	SourceRelay      = "relay"
)

// Event is the base interface for all events in the system.
type Event interface {
	Type() EventType
	Timestamp() time.Time
	Source() string
}

// BaseEvent provides the common fields for all events.
type BaseEvent struct {
	EventType EventType `json:"type"`
	Time      time.Time `json:"timestamp"`
	Src       string    `json:"source"`
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.Time
}

// Source returns the origin of the event.
func (e BaseEvent) Source() string {
	return e.Src
}

// SessionBoundEvent is emitted when the controller binds to a session.
type SessionBoundEvent struct {
	BaseEvent
	SessionID  string `json:"session_id"`
	Generation uint64 `json:"generation"`
}

// SessionUnboundEvent is emitted when a binding is torn down.
type SessionUnboundEvent struct {
	BaseEvent
	SessionID  string `json:"session_id"`
	Generation uint64 `json:"generation"`
}

// ConnectionOpeningEvent is emitted before each connection attempt.
// Address has the token query parameter redacted.
type ConnectionOpeningEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	Address   string `json:"address,omitempty"`
	Attempt   int    `json:"attempt"`
}

// ConnectionOpenedEvent is emitted when the stream handshake completes.
type ConnectionOpenedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
}

// ConnectionClosedEvent is emitted when the stream ends for any reason.
type ConnectionClosedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	Code      int    `json:"code"`
	Reason    string `json:"reason,omitempty"`
	Decision  string `json:"decision"`
}

// FrameDroppedEvent is emitted for inbound frames the reducer ignored.
type FrameDroppedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	Size      int    `json:"size"`
	Preview   string `json:"preview,omitempty"`
}

// ReconnectScheduledEvent is emitted when a reopen is scheduled.
type ReconnectScheduledEvent struct {
	BaseEvent
	SessionID string        `json:"session_id"`
	Attempt   int           `json:"attempt"`
	Delay     time.Duration `json:"delay"`
}

// ReconnectExhaustedEvent is emitted when no further reopen is attempted.
type ReconnectExhaustedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	Attempts  int    `json:"attempts"`
}

// SnapshotPublishedEvent carries every snapshot the controller publishes.
type SnapshotPublishedEvent struct {
	BaseEvent
	SessionID string            `json:"session_id"`
	Snapshot  progress.Snapshot `json:"snapshot"`
}

// RoadmapSavedEvent is emitted after a completed roadmap is written to disk.
type RoadmapSavedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
}

// Severity constants for error events.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// ErrorEvent is emitted for any error condition.
type ErrorEvent struct {
	BaseEvent
	Message   string `json:"message"`
	Severity  string `json:"severity"`
	SessionID string `json:"session_id,omitempty"`
}

// NewEvent creates a BaseEvent with the given type and source.
func NewEvent(eventType EventType, source string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Time:      time.Now(),
		Src:       source,
	}
}

// NewControllerEvent creates a BaseEvent with the controller as the source.
func NewControllerEvent(eventType EventType) BaseEvent {
	return NewEvent(eventType, SourceController)
}
