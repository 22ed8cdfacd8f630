// Package daemon exposes a running watch to other onboard commands over a
// Unix socket.
package daemon

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/npratt/onboard/internal/progress"
)

// Watch is what the control socket reports on and stops. The controller
// satisfies it.
type Watch interface {
	Session() string
	Generation() uint64
	Attempts() int
	Snapshot() progress.Snapshot
	Unbind()
}

// Daemon answers status and stop requests for one watch.
type Daemon struct {
	socket string
	watch  Watch
	cancel func()
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	started  time.Time
}

// New creates a Daemon serving w on socketPath. cancel ends the watch after
// a stop request and may be nil.
func New(socketPath string, w Watch, cancel func(), logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		socket: socketPath,
		watch:  w,
		cancel: cancel,
		logger: logger.With("component", "daemon", "socket", socketPath),
	}
}

// Listening reports whether the socket is open.
func (d *Daemon) Listening() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listener != nil
}

// Since returns when the socket was opened, or the zero time.
func (d *Daemon) Since() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// SocketPath returns the Unix socket path.
func (d *Daemon) SocketPath() string {
	return d.socket
}
