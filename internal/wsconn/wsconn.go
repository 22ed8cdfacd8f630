// Package wsconn wraps one WebSocket progress stream behind a small
// callback interface: the opener reports Opened, each Message, and exactly
// one Closed, and Close stops delivery synchronously.
package wsconn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/npratt/onboard/internal/reconnect"
)

// closeWait bounds the best-effort close frame sent when the caller
// closes the handle.
const closeWait = time.Second

// Kind is the type of a connection event.
type Kind int

// Event kinds.
const (
	Opened Kind = iota
	Message
	Closed
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case Opened:
		return "opened"
	case Message:
		return "message"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Event is one lifecycle notification from a connection.
type Event struct {
	Kind   Kind
	Data   []byte // Message payload
	Code   int    // Closed code
	Reason string // Closed reason
}

// Handle controls one connection.
type Handle interface {
	// Close releases the connection. It is idempotent, and no deliver call
	// starts after it returns.
	Close()
}

// Opener starts connections. Open must not block on the network; deliver
// is called from another goroutine and must neither block nor call Close.
type Opener interface {
	Open(address string, deliver func(Event)) Handle
}

// Dialer is the gorilla/websocket Opener.
type Dialer struct {
	dialer *websocket.Dialer
	header http.Header
	logger *slog.Logger
}

// NewDialer creates a Dialer with the given handshake timeout.
// A nil logger uses slog.Default.
func NewDialer(handshakeTimeout time.Duration, logger *slog.Logger) *Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		header: http.Header{},
		logger: logger.With("component", "wsconn"),
	}
}

// SetHeader adds a header sent with every handshake.
func (d *Dialer) SetHeader(key, value string) {
	d.header.Set(key, value)
}

// Open dials address in the background and returns immediately.
func (d *Dialer) Open(address string, deliver func(Event)) Handle {
	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{
		deliver: deliver,
		cancel:  cancel,
		logger:  d.logger,
		done:    make(chan struct{}),
	}
	go c.run(ctx, d.dialer, address, d.header.Clone())
	return c
}

// conn is one dial plus its read loop.
type conn struct {
	mu      sync.Mutex
	closed  bool
	deliver func(Event)
	cancel  context.CancelFunc
	logger  *slog.Logger
	done    chan struct{}
}

func (c *conn) run(ctx context.Context, dialer *websocket.Dialer, address string, header http.Header) {
	defer close(c.done)
	defer c.cancel()

	ws, resp, err := dialer.DialContext(ctx, address, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		code := reconnect.CodeAbnormal
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			code = reconnect.CodeUnauthorized
		}
		c.logger.Debug("dial failed", "error", err, "code", code)
		c.emit(Event{Kind: Closed, Code: code, Reason: err.Error()})
		return
	}

	// Close only cancels ctx; the close frame is written from here.
	closing := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(closing)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeWait))
		_ = ws.Close()
	})

	c.emit(Event{Kind: Opened})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			code, reason := closeStatus(err)
			c.emit(Event{Kind: Closed, Code: code, Reason: reason})
			if stop() {
				_ = ws.Close()
			} else {
				<-closing
			}
			return
		}
		c.emit(Event{Kind: Message, Data: data})
	}
}

// emit delivers ev unless the handle has been closed. The lock is held
// across deliver so Close waits for an in-flight delivery.
func (c *conn) emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.deliver(ev)
}

// Close implements Handle.
func (c *conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
}

// Done is closed once the connection goroutine has exited.
func (c *conn) Done() <-chan struct{} {
	return c.done
}

// closeStatus maps a read error to a close code and reason. Errors without
// a close frame count as abnormal closure.
func closeStatus(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	return reconnect.CodeAbnormal, err.Error()
}
