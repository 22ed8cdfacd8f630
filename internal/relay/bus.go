// Package relay is a development server that speaks the roadmap progress
// wire protocol: it authenticates stream clients, replays the cached
// latest state and forwards published progress frames.
package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Key and channel prefixes shared with the generation engine.
const (
	StateKeyPrefix = "roadmap:state:"
	ChannelPrefix  = "roadmap:progress:"
)

// DefaultStateTTL is how long the latest state stays cached.
const DefaultStateTTL = time.Hour

// subscriberBuffer is the per-subscription queue length.
const subscriberBuffer = 256

// StateKey returns the key holding a session's latest state.
func StateKey(sessionID string) string { return StateKeyPrefix + sessionID }

// Channel returns the pub/sub channel for a session.
func Channel(sessionID string) string { return ChannelPrefix + sessionID }

// Bus carries progress payloads from publishers to stream handlers.
type Bus interface {
	// Publish caches payload as the latest state and broadcasts it.
	Publish(ctx context.Context, sessionID string, payload []byte) error
	// Latest returns the cached state, or nil when there is none.
	Latest(ctx context.Context, sessionID string) ([]byte, error)
	// Subscribe starts receiving payloads published after it returns.
	Subscribe(ctx context.Context, sessionID string) (*Subscription, error)
	Close() error
}

// Subscription delivers payloads for one session until closed.
type Subscription struct {
	C <-chan []byte

	once  sync.Once
	close func() error
	err   error
}

// Close stops delivery. It is idempotent.
func (s *Subscription) Close() error {
	s.once.Do(func() { s.err = s.close() })
	return s.err
}

type cached struct {
	data    []byte
	expires time.Time
}

// MemoryBus is an in-process Bus.
type MemoryBus struct {
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	state  map[string]cached
	subs   map[string]map[chan []byte]struct{}
	closed bool
}

// NewMemoryBus creates a MemoryBus. A zero ttl uses DefaultStateTTL.
func NewMemoryBus(ttl time.Duration, logger *slog.Logger) *MemoryBus {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBus{
		ttl:    ttl,
		logger: logger.With("component", "relay.bus"),
		now:    time.Now,
		state:  make(map[string]cached),
		subs:   make(map[string]map[chan []byte]struct{}),
	}
}

// Publish implements Bus. Slow subscribers drop payloads rather than
// block the publisher.
func (b *MemoryBus) Publish(ctx context.Context, sessionID string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errBusClosed
	}

	data := append([]byte(nil), payload...)
	b.state[sessionID] = cached{data: data, expires: b.now().Add(b.ttl)}
	for ch := range b.subs[sessionID] {
		select {
		case ch <- data:
		default:
			b.logger.Warn("subscriber full, dropping payload", "session_id", sessionID)
		}
	}
	return nil
}

// Latest implements Bus.
func (b *MemoryBus) Latest(ctx context.Context, sessionID string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.state[sessionID]
	if !ok {
		return nil, nil
	}
	if !b.now().Before(c.expires) {
		delete(b.state, sessionID)
		return nil, nil
	}
	return c.data, nil
}

// Subscribe implements Bus.
func (b *MemoryBus) Subscribe(ctx context.Context, sessionID string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errBusClosed
	}

	ch := make(chan []byte, subscriberBuffer)
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan []byte]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}

	return &Subscription{
		C: ch,
		close: func() error {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[sessionID][ch]; ok {
				delete(b.subs[sessionID], ch)
				if len(b.subs[sessionID]) == 0 {
					delete(b.subs, sessionID)
				}
				close(ch)
			}
			return nil
		},
	}, nil
}

// Subscribers returns the number of open subscriptions for a session.
func (b *MemoryBus) Subscribers(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[sessionID])
}

// Close implements Bus. Open subscriptions are closed.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, id)
	}
	return nil
}
