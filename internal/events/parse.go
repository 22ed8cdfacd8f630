package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// envelope is used for the first pass to find the event type.
type envelope struct {
	Type EventType `json:"type"`
}

// ParseEvent parses one JSON line written by LogSink into a typed Event.
// Unknown event types return nil with no error.
func ParseEvent(line []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, err
	}

	var ev Event
	switch env.Type {
	case EventSessionBound:
		ev = &SessionBoundEvent{}
	case EventSessionUnbound:
		ev = &SessionUnboundEvent{}
	case EventConnectionOpening:
		ev = &ConnectionOpeningEvent{}
	case EventConnectionOpened:
		ev = &ConnectionOpenedEvent{}
	case EventConnectionClosed:
		ev = &ConnectionClosedEvent{}
	case EventFrameDropped:
		ev = &FrameDroppedEvent{}
	case EventReconnectScheduled:
		ev = &ReconnectScheduledEvent{}
	case EventReconnectExhausted:
		ev = &ReconnectExhaustedEvent{}
	case EventSnapshotPublished:
		ev = &SnapshotPublishedEvent{}
	case EventRoadmapSaved:
		ev = &RoadmapSavedEvent{}
	case EventError:
		ev = &ErrorEvent{}
	default:
		slog.Debug("unknown event type in log", "type", env.Type)
		return nil, nil
	}

	if err := json.Unmarshal(line, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// ReadLog parses a JSONL event log, calling fn for each known event in
// file order. Lines that fail to parse are skipped and counted.
func ReadLog(r io.Reader, fn func(Event)) (skipped int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, perr := ParseEvent(line)
		if perr != nil {
			skipped++
			continue
		}
		if ev != nil {
			fn(ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return skipped, fmt.Errorf("read event log: %w", err)
	}
	return skipped, nil
}
