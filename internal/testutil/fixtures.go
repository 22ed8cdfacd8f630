package testutil

import "github.com/npratt/onboard/internal/roadmap"

// Sample progress frames as the backend sends them.

// FrameAnalysing is the first step of a generation run.
var FrameAnalysing = `{"status":"in_progress","step":"analysing_answers","detail":"Reviewing your answers","progress_pct":10}`

// FrameResearching is a mid-run step.
var FrameResearching = `{"status":"in_progress","step":"researching","detail":"Finding sources","progress_pct":30}`

// FramePlanning is a later mid-run step.
var FramePlanning = `{"status":"in_progress","step":"planning","detail":"Ordering topics","progress_pct":60}`

// FrameCompleted carries a minimal roadmap.
var FrameCompleted = `{"status":"completed","step":"done","detail":"Roadmap ready","progress_pct":100,"roadmap":` + SampleRoadmapJSON + `}`

// FrameError is a backend failure with its message in detail.
var FrameError = `{"status":"error","step":"failed","detail":"LLM quota exceeded","progress_pct":85}`

// FrameMalformed is a frame the reducer must ignore.
var FrameMalformed = `{"status":"exploding"}`

// SampleRoadmapJSON is the JSON form of SampleRoadmap.
var SampleRoadmapJSON = `{"id":"rm-1","title":"Go for Backend Engineers","objective":"Ship a service","description":"From basics to production","level":"intermediate","totalEstimatedDuration":"6 weeks","sections":[{"id":"s1","title":"Foundations","topics":[{"id":"t1","title":"Types and interfaces","description":"Core language","status":"completed","estimatedDuration":"3 days","links":["https://go.dev/tour"]},{"id":"t2","title":"Concurrency","status":"in_progress","estimatedDuration":"1 week"}]},{"id":"s2","title":"Services","topics":[{"id":"t3","title":"HTTP servers","status":"not_started"}]}]}`

// SampleRoadmap returns a fresh copy of the roadmap in SampleRoadmapJSON.
func SampleRoadmap() *roadmap.CourseRoadmap {
	return &roadmap.CourseRoadmap{
		ID:                     "rm-1",
		Title:                  "Go for Backend Engineers",
		Objective:              "Ship a service",
		Description:            "From basics to production",
		Level:                  roadmap.LevelIntermediate,
		TotalEstimatedDuration: "6 weeks",
		Sections: []roadmap.Section{
			{
				ID:    "s1",
				Title: "Foundations",
				Topics: []roadmap.Topic{
					{ID: "t1", Title: "Types and interfaces", Description: "Core language", Status: roadmap.TopicCompleted, EstimatedDuration: "3 days", Links: []string{"https://go.dev/tour"}},
					{ID: "t2", Title: "Concurrency", Status: roadmap.TopicInProgress, EstimatedDuration: "1 week"},
				},
			},
			{
				ID:    "s2",
				Title: "Services",
				Topics: []roadmap.Topic{
					{ID: "t3", Title: "HTTP servers", Status: roadmap.TopicNotStarted},
				},
			},
		},
	}
}
