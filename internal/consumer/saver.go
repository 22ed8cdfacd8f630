package consumer

import (
	"log/slog"

	"github.com/npratt/onboard/internal/events"
	"github.com/npratt/onboard/internal/progress"
	"github.com/npratt/onboard/internal/roadmap"
)

// Saver is a Handler that writes the completed roadmap to disk before
// passing every callback on to the next handler.
type Saver struct {
	dir       string
	sessionID string
	router    *events.Router
	logger    *slog.Logger
	next      Handler

	path string
	err  error
}

// NewSaver creates a Saver writing to dir/<sessionID>.json. router and next
// may be nil.
func NewSaver(dir, sessionID string, router *events.Router, logger *slog.Logger, next Handler) *Saver {
	if logger == nil {
		logger = slog.Default()
	}
	if next == nil {
		next = Funcs{}
	}
	return &Saver{
		dir:       dir,
		sessionID: sessionID,
		router:    router,
		logger:    logger.With("component", "consumer"),
		next:      next,
	}
}

// OnUpdate implements Handler.
func (s *Saver) OnUpdate(snap progress.Snapshot) {
	s.next.OnUpdate(snap)
}

// OnComplete saves r, then forwards it.
func (s *Saver) OnComplete(r *roadmap.CourseRoadmap) {
	path := roadmap.PathFor(s.dir, s.sessionID)
	if err := roadmap.Save(path, r); err != nil {
		s.err = err
		s.logger.Error("save roadmap failed", "session_id", s.sessionID, "error", err)
		s.emit(&events.ErrorEvent{
			BaseEvent: events.NewEvent(events.EventError, events.SourceConsumer),
			Message:   err.Error(),
			Severity:  events.SeverityError,
			SessionID: s.sessionID,
		})
	} else {
		s.path = path
		s.logger.Info("roadmap saved", "session_id", s.sessionID, "path", path, "topics", r.TopicCount())
		s.emit(&events.RoadmapSavedEvent{
			BaseEvent: events.NewEvent(events.EventRoadmapSaved, events.SourceConsumer),
			SessionID: s.sessionID,
			Path:      path,
		})
	}
	s.next.OnComplete(r)
}

// OnError implements Handler.
func (s *Saver) OnError(message string) {
	s.next.OnError(message)
}

// Path returns where the roadmap was written, or "" if it was not.
func (s *Saver) Path() string {
	return s.path
}

// Err returns the save error, if any.
func (s *Saver) Err() error {
	return s.err
}

func (s *Saver) emit(event events.Event) {
	if s.router != nil {
		s.router.Emit(event)
	}
}
