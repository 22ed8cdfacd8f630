package daemon

import (
	"context"
	"fmt"
	"time"
)

// stopDelay gives the stop response time to reach the client before the
// watch is cancelled.
const stopDelay = 50 * time.Millisecond

// handleRequest dispatches the request to the appropriate handler.
func (d *Daemon) handleRequest(_ context.Context, req *Request) Response {
	switch req.Method {
	case MethodStatus:
		return d.handleStatus()
	case MethodStop:
		return d.handleStop()
	default:
		return Response{Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}
}

func (d *Daemon) handleStatus() Response {
	if d.watch == nil {
		return Response{Error: "no watch attached"}
	}

	since := d.Since()
	return Response{
		Result: StatusResponse{
			SessionID:  d.watch.Session(),
			Generation: d.watch.Generation(),
			Attempts:   d.watch.Attempts(),
			Snapshot:   d.watch.Snapshot(),
			Uptime:     time.Since(since).Truncate(time.Second).String(),
			StartTime:  since.Format(time.RFC3339),
		},
	}
}

// handleStop unbinds the watch and cancels the watch shortly after
// replying.
func (d *Daemon) handleStop() Response {
	if d.watch == nil {
		return Response{Error: "no watch attached"}
	}

	d.logger.Info("stop requested", "session_id", d.watch.Session())
	d.watch.Unbind()

	if d.cancel != nil {
		cancel := d.cancel
		time.AfterFunc(stopDelay, cancel)
	}
	return Response{Result: "stopping"}
}
