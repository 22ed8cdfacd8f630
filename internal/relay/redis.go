package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var errBusClosed = errors.New("bus closed")

// RedisBus is a Bus backed by a Redis string key per session for the
// latest state and a pub/sub channel per session for live payloads.
type RedisBus struct {
	rdb    *goredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisBus connects to addr and verifies the server with PING.
func NewRedisBus(ctx context.Context, addr string, ttl time.Duration, logger *slog.Logger) (*RedisBus, error) {
	if addr == "" {
		return nil, errors.New("redis bus: missing address")
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With("component", "relay.redis"),
	}, nil
}

// Publish implements Bus. The state write and the publish go out in one
// pipeline.
func (b *RedisBus) Publish(ctx context.Context, sessionID string, payload []byte) error {
	_, err := b.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, StateKey(sessionID), payload, b.ttl)
		p.Publish(ctx, Channel(sessionID), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Latest implements Bus.
func (b *RedisBus) Latest(ctx context.Context, sessionID string) ([]byte, error) {
	data, err := b.rdb.Get(ctx, StateKey(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get state: %w", err)
	}
	return data, nil
}

// Subscribe implements Bus. It returns once Redis has confirmed the
// subscription.
func (b *RedisBus) Subscribe(ctx context.Context, sessionID string) (*Subscription, error) {
	ps := b.rdb.Subscribe(ctx, Channel(sessionID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan []byte, subscriberBuffer)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(out)
		in := ps.Channel()
		for {
			select {
			case <-stop:
				return
			case m, ok := <-in:
				if !ok || m == nil {
					return
				}
				select {
				case out <- []byte(m.Payload):
				case <-stop:
					return
				}
			}
		}
	}()

	return &Subscription{
		C: out,
		close: func() error {
			close(stop)
			err := ps.Close()
			<-done
			return err
		},
	}, nil
}

// Close implements Bus.
func (b *RedisBus) Close() error {
	return b.rdb.Close()
}
