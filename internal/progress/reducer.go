package progress

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/npratt/onboard/internal/roadmap"
)

// frame is one inbound wire message. Pointer fields distinguish absent or
// null from zero values.
type frame struct {
	Status      *string         `json:"status"`
	Step        *string         `json:"step"`
	Detail      *string         `json:"detail"`
	ProgressPct *float64        `json:"progress_pct"`
	Roadmap     json.RawMessage `json:"roadmap"`
}

// Reduce maps one raw inbound frame to the snapshot it describes.
// The boolean is false when the frame is malformed and must be ignored;
// the returned snapshot is meaningless in that case.
//
// Defaults: status in_progress, step and detail "", percentage 0.
// A completed frame without a roadmap object is malformed.
func Reduce(raw []byte) (Snapshot, bool) {
	if !isObject(raw) {
		return Snapshot{}, false
	}

	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Snapshot{}, false
	}

	status := StatusInProgress
	if f.Status != nil {
		switch s := Status(*f.Status); s {
		case StatusPending, StatusInProgress, StatusCompleted, StatusError:
			status = s
		default:
			return Snapshot{}, false
		}
	}

	snap := Snapshot{
		Status:          status,
		Step:            deref(f.Step),
		Detail:          deref(f.Detail),
		ProgressPercent: percent(f.ProgressPct),
	}

	switch status {
	case StatusError:
		msg := snap.Detail
		snap.ErrorMessage = &msg
	case StatusCompleted:
		if !isObject(f.Roadmap) {
			return Snapshot{}, false
		}
		var r roadmap.CourseRoadmap
		if err := json.Unmarshal(f.Roadmap, &r); err != nil {
			return Snapshot{}, false
		}
		snap.Result = &r
	}

	return snap, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// percent truncates toward zero and clamps to 0..100.
func percent(p *float64) int {
	if p == nil || math.IsNaN(*p) {
		return 0
	}
	v := math.Trunc(*p)
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return int(v)
}

func isObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
