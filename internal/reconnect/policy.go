// Package reconnect decides what to do after a progress stream disconnects.
package reconnect

import (
	"fmt"
	"time"
)

// Close codes shared by the client and the relay. 4001 is the
// application code for a rejected token.
const (
	CodeNormal       = 1000
	CodeAbnormal     = 1006
	CodeInternal     = 1011
	CodeUnauthorized = 4001
)

// Messages published with Fail decisions.
const (
	AuthFailedMessage     = "Authentication failed. Please log in again."
	ConnectionLostMessage = "Connection lost. Please refresh to try again."
)

// Action is the kind of decision.
type Action int

// Actions.
const (
	Stop Action = iota
	Retry
	Fail
)

// String returns a lowercase name for logging.
func (a Action) String() string {
	switch a {
	case Stop:
		return "stop"
	case Retry:
		return "retry"
	case Fail:
		return "fail"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Decision is the outcome of Decide. Delay is set for Retry and Message
// for Fail.
type Decision struct {
	Action  Action
	Delay   time.Duration
	Message string
}

// Policy holds the backoff parameters.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// FailOnExhaustion publishes ConnectionLostMessage once retries run out
	// instead of leaving the last snapshot in place.
	FailOnExhaustion bool
}

// Default returns 5 retries with delays doubling from 1s up to 16s.
func Default() Policy {
	return Policy{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		MaxDelay:   16 * time.Second,
	}
}

// Decide classifies a close code given the number of reconnects already
// made for the current binding. Rules apply in order: normal close stops,
// 4001 fails, any other code retries while attempt < MaxRetries, and
// exhaustion stops (or fails when FailOnExhaustion is set).
func (p Policy) Decide(code, attempt int) Decision {
	switch {
	case code == CodeNormal:
		return Decision{Action: Stop}
	case code == CodeUnauthorized:
		return Decision{Action: Fail, Message: AuthFailedMessage}
	case attempt < p.MaxRetries:
		return Decision{Action: Retry, Delay: p.Delay(attempt)}
	case p.FailOnExhaustion:
		return Decision{Action: Fail, Message: ConnectionLostMessage}
	}
	return Decision{Action: Stop}
}

// Delay returns min(BaseDelay * 2^attempt, MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		if d >= p.MaxDelay {
			break
		}
		d *= 2
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
