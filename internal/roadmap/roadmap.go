// Package roadmap defines the course roadmap artifact produced when roadmap
// generation completes, and helpers to render and persist it.
package roadmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Level is the target difficulty of a course.
type Level string

// Course levels.
const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// TopicStatus is the learner's progress through a single topic.
type TopicStatus string

// Topic statuses.
const (
	TopicNotStarted TopicStatus = "not_started"
	TopicInProgress TopicStatus = "in_progress"
	TopicCompleted  TopicStatus = "completed"
)

// CourseRoadmap is the tailored course plan attached to a completed session.
// Field names follow the backend's camelCase JSON.
type CourseRoadmap struct {
	ID                     string    `json:"id"`
	Title                  string    `json:"title"`
	Objective              string    `json:"objective"`
	Description            string    `json:"description"`
	Level                  Level     `json:"level"`
	TotalEstimatedDuration string    `json:"totalEstimatedDuration,omitempty"`
	Sections               []Section `json:"sections"`
}

// Section groups related topics.
type Section struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Topics      []Topic `json:"topics"`
}

// Topic is one unit of study.
type Topic struct {
	ID                string      `json:"id"`
	Title             string      `json:"title"`
	Description       string      `json:"description,omitempty"`
	Status            TopicStatus `json:"status"`
	EstimatedDuration string      `json:"estimatedDuration,omitempty"`
	Links             []string    `json:"links,omitempty"`
}

// TopicCount returns the number of topics across all sections.
func (r *CourseRoadmap) TopicCount() int {
	n := 0
	for _, s := range r.Sections {
		n += len(s.Topics)
	}
	return n
}

// Save writes r to path as indented JSON, creating parent directories.
// The file is written to a temp file and renamed into place.
func Save(path string, r *CourseRoadmap) error {
	if r == nil {
		return errors.New("save roadmap: nil roadmap")
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal roadmap: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create roadmap directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write roadmap: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename roadmap: %w", err)
	}
	return nil
}

// Load reads a roadmap previously written by Save.
func Load(path string) (*CourseRoadmap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roadmap: %w", err)
	}

	var r CourseRoadmap
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse roadmap: %w", err)
	}
	return &r, nil
}

// PathFor returns the file a session's roadmap is saved under in dir.
func PathFor(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+".json")
}
