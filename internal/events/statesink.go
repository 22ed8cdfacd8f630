package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/npratt/onboard/internal/progress"
)

// StateBufferSize is the recommended buffer size for state sink subscriptions.
const StateBufferSize = 1000

// CurrentStateVersion is the state file format version.
const CurrentStateVersion = 1

// DefaultMinSaveDelay is the minimum time between debounced saves.
const DefaultMinSaveDelay = time.Second

// Connection states recorded in State.Connection.
const (
	ConnectionIdle    = "idle"
	ConnectionOpening = "opening"
	ConnectionOpen    = "open"
	ConnectionClosed  = "closed"
)

// State is the last known progress of a watch, persisted so that
// `onboard status` can answer after the watcher exits.
type State struct {
	Version     int               `json:"version"`
	SessionID   string            `json:"session_id,omitempty"`
	Connection  string            `json:"connection"`
	Attempts    int               `json:"attempts"`
	Reconnects  int               `json:"reconnects"`
	LastClose   int               `json:"last_close_code,omitempty"`
	Snapshot    progress.Snapshot `json:"snapshot"`
	RoadmapPath string            `json:"roadmap_path,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// StateSink folds events into a State and writes it to a JSON file.
// Terminal snapshots and unbinds are written immediately; everything else
// is debounced.
type StateSink struct {
	path     string
	logger   *slog.Logger
	mu       sync.Mutex
	state    State
	dirty    bool
	lastSave time.Time
	minDelay time.Duration
	done     chan struct{}
}

// NewStateSink creates a StateSink that writes to path.
func NewStateSink(path string, logger *slog.Logger) *StateSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateSink{
		path:     path,
		logger:   logger.With("component", "statesink"),
		state:    freshState(),
		minDelay: DefaultMinSaveDelay,
		done:     make(chan struct{}),
	}
}

func freshState() State {
	return State{
		Version:    CurrentStateVersion,
		Connection: ConnectionIdle,
		Snapshot:   progress.Idle(),
	}
}

// Start ensures the directory exists and consumes events.
func (s *StateSink) Start(ctx context.Context, events <-chan Event) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	go s.run(ctx, events)
	return nil
}

func (s *StateSink) run(ctx context.Context, events <-chan Event) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.flush()
			return
		case event, ok := <-events:
			if !ok {
				s.flush()
				return
			}
			s.handle(event)
		}
	}
}

func (s *StateSink) handle(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	immediate := false

	switch e := event.(type) {
	case *SessionBoundEvent:
		s.state = freshState()
		s.state.SessionID = e.SessionID

	case *SessionUnboundEvent:
		s.state.Connection = ConnectionIdle
		immediate = true

	case *ConnectionOpeningEvent:
		s.state.Connection = ConnectionOpening
		s.state.Attempts = e.Attempt

	case *ConnectionOpenedEvent:
		s.state.Connection = ConnectionOpen
		s.state.Attempts = 0

	case *ConnectionClosedEvent:
		s.state.Connection = ConnectionClosed
		s.state.LastClose = e.Code

	case *ReconnectScheduledEvent:
		s.state.Reconnects++
		s.state.Attempts = e.Attempt

	case *SnapshotPublishedEvent:
		// Idle snapshots from rebinds and unbinds would hide the result
		// the user is asking `status` about.
		if e.Snapshot.Status == progress.StatusIdle && s.state.Snapshot.Terminal() {
			return
		}
		s.state.Snapshot = e.Snapshot
		immediate = e.Snapshot.Terminal()

	case *RoadmapSavedEvent:
		s.state.RoadmapPath = e.Path
		immediate = true

	default:
		return
	}

	s.dirty = true
	if immediate || time.Since(s.lastSave) >= s.minDelay {
		s.saveLocked()
	}
}

func (s *StateSink) saveLocked() {
	s.state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		s.logger.Warn("marshal state failed", "error", err)
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		s.logger.Warn("write state failed", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Warn("rename state failed", "path", s.path, "error", err)
		return
	}

	s.dirty = false
	s.lastSave = time.Now()
}

func (s *StateSink) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		s.saveLocked()
	}
}

// Stop waits for the consumer goroutine to finish its final save.
func (s *StateSink) Stop() error {
	<-s.done
	return nil
}

// State returns a copy of the current state.
func (s *StateSink) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Path returns the state file path.
func (s *StateSink) Path() string {
	return s.path
}

// SetMinDelay sets the minimum delay between debounced saves.
func (s *StateSink) SetMinDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minDelay = d
}

// ReadState loads a state file written by a StateSink. Files with an
// unknown version are rejected.
func ReadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	if st.Version != CurrentStateVersion {
		return nil, fmt.Errorf("state file version %d, want %d", st.Version, CurrentStateVersion)
	}
	return &st, nil
}
