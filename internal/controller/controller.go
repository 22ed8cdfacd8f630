// Package controller owns the lifecycle of one roadmap progress stream: it
// binds to a session, opens the connection, reduces inbound frames into
// snapshots, applies the reconnect policy, and publishes every snapshot to
// subscribers and the event router.
package controller

import (
	"context"
	"log/slog"
	"sync"

	"github.com/npratt/onboard/internal/events"
	"github.com/npratt/onboard/internal/progress"
	"github.com/npratt/onboard/internal/reconnect"
	"github.com/npratt/onboard/internal/wsconn"
)

// AddressFunc resolves the stream address for a session. It is called on
// every connection attempt so a refreshed token is picked up on reconnect.
type AddressFunc func(sessionID string) (string, error)

const previewLen = 80

// Controller follows the progress stream of at most one session at a time.
// All transport input is funnelled through a single ordered queue that Run
// drains, so state transitions happen one at a time.
type Controller struct {
	opener  wsconn.Opener
	address AddressFunc
	policy  reconnect.Policy
	router  *events.Router
	logger  *slog.Logger
	sched   Scheduler
	queue   *eventQueue

	mu        sync.Mutex
	session   string
	gen       uint64
	connSeq   uint64
	handle    wsconn.Handle
	stopTimer func() bool
	attempts  int
	snap      progress.Snapshot
	subs      map[chan progress.Snapshot]struct{}
	closed    bool
}

// New creates an unbound Controller. router may be nil; a nil logger uses
// slog.Default.
func New(opener wsconn.Opener, address AddressFunc, policy reconnect.Policy, router *events.Router, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		opener:  opener,
		address: address,
		policy:  policy,
		router:  router,
		logger:  logger.With("component", "controller"),
		sched:   realScheduler{},
		queue:   newEventQueue(),
		snap:    progress.Idle(),
		subs:    make(map[chan progress.Snapshot]struct{}),
	}
}

// SetScheduler replaces the timer source used for reconnect delays.
// Call before Bind.
func (c *Controller) SetScheduler(s Scheduler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sched = s
}

// Bind tears down any current binding and starts following sessionID.
// An empty sessionID is the same as Unbind. Bind publishes Idle followed by
// Connecting and returns once the first connection has been requested.
func (c *Controller) Bind(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.resetLocked()
	if sessionID == "" {
		return
	}

	c.session = sessionID
	c.logger.Info("session bound", "session_id", sessionID, "generation", c.gen)
	c.emit(&events.SessionBoundEvent{
		BaseEvent:  events.NewControllerEvent(events.EventSessionBound),
		SessionID:  sessionID,
		Generation: c.gen,
	})
	c.connectLocked()
}

// Unbind closes the current connection, cancels any pending reconnect and
// publishes Idle. It is safe to call when already unbound.
func (c *Controller) Unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// resetLocked releases the current binding and starts a new generation, so
// every callback and timer from the old one is ignored.
func (c *Controller) resetLocked() {
	c.closeHandleLocked()
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	if c.session != "" {
		c.logger.Info("session unbound", "session_id", c.session, "generation", c.gen)
		c.emit(&events.SessionUnboundEvent{
			BaseEvent:  events.NewControllerEvent(events.EventSessionUnbound),
			SessionID:  c.session,
			Generation: c.gen,
		})
	}
	c.gen++
	c.session = ""
	c.attempts = 0
	c.publishLocked(progress.Idle())
}

// connectLocked publishes Connecting and opens a new connection for the
// current generation.
func (c *Controller) connectLocked() {
	c.connSeq++
	gen, seq := c.gen, c.connSeq

	c.publishLocked(c.snap.WithStatus(progress.StatusConnecting))

	addr, err := c.address(c.session)
	if err != nil {
		c.logger.Warn("resolve stream address", "session_id", c.session, "error", err)
		c.emit(&events.ErrorEvent{
			BaseEvent: events.NewControllerEvent(events.EventError),
			Message:   "resolve stream address: " + err.Error(),
			Severity:  events.SeverityWarning,
			SessionID: c.session,
		})
		c.queue.push(inbound{
			kind: kindTransport,
			gen:  gen,
			conn: seq,
			ev:   wsconn.Event{Kind: wsconn.Closed, Code: reconnect.CodeAbnormal, Reason: err.Error()},
		})
		return
	}

	redacted := events.RedactAddress(addr)
	c.logger.Debug("opening stream", "session_id", c.session, "address", redacted, "attempt", c.attempts)
	c.emit(&events.ConnectionOpeningEvent{
		BaseEvent: events.NewControllerEvent(events.EventConnectionOpening),
		SessionID: c.session,
		Address:   redacted,
		Attempt:   c.attempts,
	})
	c.handle = c.opener.Open(addr, func(ev wsconn.Event) {
		c.queue.push(inbound{kind: kindTransport, gen: gen, conn: seq, ev: ev})
	})
}

func (c *Controller) closeHandleLocked() {
	if c.handle == nil {
		return
	}
	h := c.handle
	c.handle = nil
	h.Close()
}

// Run drains the inbound queue until ctx is done, then unbinds and closes
// every subscriber channel. Returns nil on clean shutdown.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case <-c.queue.ready:
			c.processPending()
		}
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.closed = true
	for ch := range c.subs {
		close(ch)
		delete(c.subs, ch)
	}
	c.logger.Info("controller stopped")
}

// processPending handles everything queued so far, in order.
func (c *Controller) processPending() {
	for _, in := range c.queue.drain() {
		c.handleInbound(in)
	}
}

func (c *Controller) handleInbound(in inbound) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if in.gen != c.gen || c.session == "" {
		c.logger.Debug("dropping stale input", "generation", in.gen, "current", c.gen)
		return
	}
	if c.snap.Terminal() {
		return
	}

	if in.kind == kindReopen {
		c.stopTimer = nil
		c.connectLocked()
		return
	}
	if in.conn != c.connSeq {
		return
	}

	switch in.ev.Kind {
	case wsconn.Opened:
		c.handleOpened()
	case wsconn.Message:
		c.handleMessage(in.ev.Data)
	case wsconn.Closed:
		c.handleClosed(in.ev.Code, in.ev.Reason)
	}
}

func (c *Controller) handleOpened() {
	c.attempts = 0
	c.logger.Info("stream opened", "session_id", c.session)
	c.emit(&events.ConnectionOpenedEvent{
		BaseEvent: events.NewControllerEvent(events.EventConnectionOpened),
		SessionID: c.session,
	})
	if c.snap.Status == progress.StatusConnecting {
		c.publishLocked(c.snap.WithStatus(progress.StatusPending))
	}
}

func (c *Controller) handleMessage(data []byte) {
	snap, ok := progress.Reduce(data)
	if !ok {
		preview := events.Truncate(events.SafeString(string(data)), previewLen)
		c.logger.Debug("dropping malformed frame", "session_id", c.session, "size", len(data))
		c.emit(&events.FrameDroppedEvent{
			BaseEvent: events.NewControllerEvent(events.EventFrameDropped),
			SessionID: c.session,
			Size:      len(data),
			Preview:   preview,
		})
		return
	}
	c.publishLocked(snap)
	if snap.Terminal() {
		c.closeHandleLocked()
	}
}

func (c *Controller) handleClosed(code int, reason string) {
	c.closeHandleLocked()

	d := c.policy.Decide(code, c.attempts)
	c.logger.Info("stream closed",
		"session_id", c.session,
		"code", code,
		"reason", reason,
		"decision", d.Action,
		"attempt", c.attempts,
	)
	c.emit(&events.ConnectionClosedEvent{
		BaseEvent: events.NewControllerEvent(events.EventConnectionClosed),
		SessionID: c.session,
		Code:      code,
		Reason:    reason,
		Decision:  d.Action.String(),
	})

	exhausted := code != reconnect.CodeNormal && code != reconnect.CodeUnauthorized && d.Action != reconnect.Retry
	if exhausted {
		c.logger.Warn("reconnect attempts exhausted", "session_id", c.session, "attempts", c.attempts)
		c.emit(&events.ReconnectExhaustedEvent{
			BaseEvent: events.NewControllerEvent(events.EventReconnectExhausted),
			SessionID: c.session,
			Attempts:  c.attempts,
		})
	}

	switch d.Action {
	case reconnect.Retry:
		c.attempts++
		gen := c.gen
		c.emit(&events.ReconnectScheduledEvent{
			BaseEvent: events.NewControllerEvent(events.EventReconnectScheduled),
			SessionID: c.session,
			Attempt:   c.attempts,
			Delay:     d.Delay,
		})
		c.stopTimer = c.sched.AfterFunc(d.Delay, func() {
			c.queue.push(inbound{kind: kindReopen, gen: gen})
		})
	case reconnect.Fail:
		c.publishLocked(c.snap.Failed(d.Message))
	}
}

// publishLocked replaces the current snapshot and notifies subscribers.
// Publishing a value equal to the current one is a no-op.
func (c *Controller) publishLocked(s progress.Snapshot) {
	if s.Equal(c.snap) {
		return
	}
	c.snap = s
	for ch := range c.subs {
		offer(ch, s)
	}
	c.emit(&events.SnapshotPublishedEvent{
		BaseEvent: events.NewControllerEvent(events.EventSnapshotPublished),
		SessionID: c.session,
		Snapshot:  s,
	})
}

// offer replaces whatever is buffered in ch with s. Only the publisher
// sends on ch, and it holds the controller lock while doing so.
func offer(ch chan progress.Snapshot, s progress.Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

// Subscribe returns a channel carrying the latest snapshot. The current
// snapshot is available immediately; slow readers skip intermediate
// values. The channel is closed by Unsubscribe or when Run returns.
func (c *Controller) Subscribe() <-chan progress.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan progress.Snapshot, 1)
	if c.closed {
		close(ch)
		return ch
	}
	ch <- c.snap
	c.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (c *Controller) Unsubscribe(sub <-chan progress.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subs {
		if ch == sub {
			delete(c.subs, ch)
			close(ch)
			return
		}
	}
}

// Snapshot returns the most recently published snapshot.
func (c *Controller) Snapshot() progress.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Session returns the bound session id, or "" when unbound.
func (c *Controller) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Attempts returns the number of reconnects made since the last successful
// open.
func (c *Controller) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Generation returns the current binding generation.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Controller) emit(event events.Event) {
	if c.router != nil {
		c.router.Emit(event)
	}
}
