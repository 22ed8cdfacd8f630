package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/npratt/onboard/internal/roadmap"
)

// Step is one progress frame in a simulated generation run.
type Step struct {
	Status  string
	Step    string
	Detail  string
	Percent int
}

// DefaultSteps mirrors the generation engine's published sequence. The
// final step carries the roadmap.
var DefaultSteps = []Step{
	{"in_progress", "analysing_answers", "Analysing your answers to understand your needs", 10},
	{"in_progress", "researching", "Researching the best resources for you", 30},
	{"in_progress", "planning", "Building your personalised learning roadmap", 60},
	{"in_progress", "generating_roadmap", "Generating the roadmap structure", 85},
	{"completed", "done", "Your roadmap is ready!", 100},
}

// frame is the wire shape of a progress payload.
type frame struct {
	SessionID       string                 `json:"session_id"`
	Status          string                 `json:"status"`
	Step            string                 `json:"step"`
	Detail          string                 `json:"detail"`
	ProgressPercent int                    `json:"progress_pct"`
	Roadmap         *roadmap.CourseRoadmap `json:"roadmap,omitempty"`
}

// Simulator publishes a scripted generation run onto a Bus.
type Simulator struct {
	bus      Bus
	interval time.Duration
	logger   *slog.Logger

	// Steps defaults to DefaultSteps.
	Steps []Step
	// FailAt, when set, replaces the named step with an error frame and
	// ends the run.
	FailAt string
}

// NewSimulator creates a Simulator waiting interval between frames.
func NewSimulator(bus Bus, interval time.Duration, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		bus:      bus,
		interval: interval,
		logger:   logger.With("component", "relay.simulate"),
		Steps:    DefaultSteps,
	}
}

// Run publishes every step for sessionID. It returns ctx.Err() if
// cancelled between frames.
func (s *Simulator) Run(ctx context.Context, sessionID string) error {
	s.logger.Info("simulation started", "session_id", sessionID, "steps", len(s.Steps))
	for i, st := range s.Steps {
		if i > 0 {
			if err := s.wait(ctx); err != nil {
				return err
			}
		}

		f := frame{
			SessionID:       sessionID,
			Status:          st.Status,
			Step:            st.Step,
			Detail:          st.Detail,
			ProgressPercent: st.Percent,
		}
		failing := s.FailAt != "" && st.Step == s.FailAt
		switch {
		case failing:
			f.Status = "error"
			f.Step = "failed"
			f.Detail = "Something went wrong while creating your roadmap: simulated failure at " + st.Step
			f.ProgressPercent = 0
		case st.Status == "completed":
			f.Roadmap = SampleRoadmap(sessionID)
		}

		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("encode frame: %w", err)
		}
		if err := s.bus.Publish(ctx, sessionID, data); err != nil {
			return fmt.Errorf("publish %s: %w", f.Step, err)
		}
		s.logger.Debug("frame published", "session_id", sessionID, "step", f.Step, "progress_pct", f.ProgressPercent)

		if failing {
			break
		}
	}
	s.logger.Info("simulation finished", "session_id", sessionID)
	return nil
}

func (s *Simulator) wait(ctx context.Context) error {
	if s.interval <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SampleRoadmap is the roadmap attached to a simulated completion.
func SampleRoadmap(sessionID string) *roadmap.CourseRoadmap {
	return &roadmap.CourseRoadmap{
		ID:                     "roadmap-" + sessionID,
		Title:                  "Backend Engineer Onboarding",
		Objective:              "Ship your first production change with confidence",
		Description:            "A tailored path through the team's stack, tooling and practices.",
		Level:                  roadmap.LevelIntermediate,
		TotalEstimatedDuration: "4 weeks",
		Sections: []roadmap.Section{
			{
				ID:          "s1",
				Title:       "Getting set up",
				Description: "Accounts, tooling and the local environment.",
				Topics: []roadmap.Topic{
					{ID: "t1", Title: "Development environment", Status: roadmap.TopicNotStarted, EstimatedDuration: "1 day"},
					{ID: "t2", Title: "Repository tour", Status: roadmap.TopicNotStarted, EstimatedDuration: "2 days"},
				},
			},
			{
				ID:    "s2",
				Title: "Core services",
				Topics: []roadmap.Topic{
					{ID: "t3", Title: "Service architecture", Status: roadmap.TopicNotStarted, EstimatedDuration: "1 week", Links: []string{"https://go.dev/doc/effective_go"}},
					{ID: "t4", Title: "Observability", Status: roadmap.TopicNotStarted, EstimatedDuration: "3 days"},
				},
			},
			{
				ID:    "s3",
				Title: "Shipping",
				Topics: []roadmap.Topic{
					{ID: "t5", Title: "Code review and deploys", Status: roadmap.TopicNotStarted, EstimatedDuration: "1 week"},
				},
			},
		},
	}
}
