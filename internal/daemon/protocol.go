package daemon

import "github.com/npratt/onboard/internal/progress"

// Method names understood by the daemon.
const (
	MethodStatus = "status"
	MethodStop   = "stop"
)

// Request represents a JSON-RPC request from a client.
type Request struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// Response represents a JSON-RPC response to a client.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// StatusResponse describes the watch behind the daemon.
type StatusResponse struct {
	SessionID  string            `json:"session_id,omitempty"`
	Generation uint64            `json:"generation"`
	Attempts   int               `json:"attempts"`
	Snapshot   progress.Snapshot `json:"snapshot"`
	Uptime     string            `json:"uptime"`
	StartTime  string            `json:"start_time"`
}
