// Package consumer turns a stream of progress snapshots into one-shot
// completion callbacks.
package consumer

import (
	"context"
	"errors"

	"github.com/npratt/onboard/internal/progress"
	"github.com/npratt/onboard/internal/roadmap"
)

// ErrClosed is returned by Follow when the snapshot channel closes before
// a terminal snapshot arrives.
var ErrClosed = errors.New("snapshot stream closed")

// Handler receives progress callbacks. OnComplete and OnError are mutually
// exclusive and called at most once per Follow.
type Handler interface {
	OnUpdate(s progress.Snapshot)
	OnComplete(r *roadmap.CourseRoadmap)
	OnError(message string)
}

// Funcs adapts plain functions to Handler. Nil fields are skipped.
type Funcs struct {
	Update   func(progress.Snapshot)
	Complete func(*roadmap.CourseRoadmap)
	Error    func(string)
}

// OnUpdate implements Handler.
func (f Funcs) OnUpdate(s progress.Snapshot) {
	if f.Update != nil {
		f.Update(s)
	}
}

// OnComplete implements Handler.
func (f Funcs) OnComplete(r *roadmap.CourseRoadmap) {
	if f.Complete != nil {
		f.Complete(r)
	}
}

// OnError implements Handler.
func (f Funcs) OnError(message string) {
	if f.Error != nil {
		f.Error(message)
	}
}

// Follow reads snaps until a terminal snapshot arrives, calling OnUpdate
// for each snapshot that differs from the previous one. The terminal
// transition fires OnComplete or OnError exactly once and the terminal
// snapshot is returned.
func Follow(ctx context.Context, snaps <-chan progress.Snapshot, h Handler) (progress.Snapshot, error) {
	var last progress.Snapshot
	seen := false
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case s, ok := <-snaps:
			if !ok {
				return last, ErrClosed
			}
			if seen && s.Equal(last) {
				continue
			}
			last, seen = s, true
			h.OnUpdate(s)

			switch s.Status {
			case progress.StatusCompleted:
				h.OnComplete(s.Result)
				return s, nil
			case progress.StatusError:
				h.OnError(s.Message())
				return s, nil
			}
		}
	}
}
