// Package progress defines the externally visible roadmap generation state
// and the reducer that maps inbound wire frames onto it.
package progress

import (
	"reflect"

	"github.com/npratt/onboard/internal/roadmap"
)

// Status is the high-level state of a progress stream.
type Status string

// Snapshot statuses. Idle and Connecting are produced by the client only;
// the remaining four also appear on the wire.
const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions follow s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Snapshot is one complete, internally consistent view of progress.
// Snapshots are values: they are replaced wholesale, never modified after
// being published.
//
// Result is non-nil iff Status is completed. ErrorMessage is non-nil iff
// Status is error.
type Snapshot struct {
	Status          Status                 `json:"status"`
	Step            string                 `json:"step"`
	Detail          string                 `json:"detail"`
	ProgressPercent int                    `json:"progress_pct"`
	Result          *roadmap.CourseRoadmap `json:"roadmap,omitempty"`
	ErrorMessage    *string                `json:"error,omitempty"`
}

// Idle returns the default snapshot for an unbound stream.
func Idle() Snapshot {
	return Snapshot{Status: StatusIdle}
}

// Terminal reports whether the snapshot is completed or error.
func (s Snapshot) Terminal() bool {
	return s.Status.Terminal()
}

// Valid reports whether s satisfies the result and error invariants.
func (s Snapshot) Valid() bool {
	if (s.Result != nil) != (s.Status == StatusCompleted) {
		return false
	}
	if (s.ErrorMessage != nil) != (s.Status == StatusError) {
		return false
	}
	return true
}

// WithStatus returns a copy of s moved to a non-terminal status, keeping
// step, detail and percentage. Passing a terminal status returns s
// unchanged; use Failed for error transitions.
func (s Snapshot) WithStatus(status Status) Snapshot {
	if status.Terminal() {
		return s
	}
	return Snapshot{
		Status:          status,
		Step:            s.Step,
		Detail:          s.Detail,
		ProgressPercent: s.ProgressPercent,
	}
}

// Failed returns a copy of s in the error status with the given message.
func (s Snapshot) Failed(message string) Snapshot {
	return Snapshot{
		Status:          StatusError,
		Step:            s.Step,
		Detail:          s.Detail,
		ProgressPercent: s.ProgressPercent,
		ErrorMessage:    &message,
	}
}

// Message returns the error message, or "" when there is none.
func (s Snapshot) Message() string {
	if s.ErrorMessage == nil {
		return ""
	}
	return *s.ErrorMessage
}

// Equal reports whether two snapshots carry the same values.
func (s Snapshot) Equal(o Snapshot) bool {
	return reflect.DeepEqual(s, o)
}
