package reconnect

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestPolicy_DelaySequence(t *testing.T) {
	p := Default()
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		16 * time.Second,
	}

	for attempt, w := range want {
		if got := p.Delay(attempt); got != w {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, w)
		}
	}
}

func TestPolicy_DelayLargeAttempt(t *testing.T) {
	p := Default()
	if got := p.Delay(200); got != 16*time.Second {
		t.Errorf("Delay(200) = %v, want cap", got)
	}
	if got := p.Delay(-3); got != time.Second {
		t.Errorf("Delay(-3) = %v, want base delay", got)
	}
}

func TestPolicy_Decide(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		code    int
		attempt int
		want    Decision
	}{
		{
			name:   "normal close stops",
			policy: Default(),
			code:   CodeNormal,
			want:   Decision{Action: Stop},
		},
		{
			name:    "normal close stops even with retries left",
			policy:  Default(),
			code:    CodeNormal,
			attempt: 0,
			want:    Decision{Action: Stop},
		},
		{
			name:   "auth failure fails",
			policy: Default(),
			code:   CodeUnauthorized,
			want:   Decision{Action: Fail, Message: "Authentication failed. Please log in again."},
		},
		{
			name:    "auth failure wins over exhaustion",
			policy:  Default(),
			code:    CodeUnauthorized,
			attempt: 9,
			want:    Decision{Action: Fail, Message: AuthFailedMessage},
		},
		{
			name:   "abnormal first retry",
			policy: Default(),
			code:   CodeAbnormal,
			want:   Decision{Action: Retry, Delay: time.Second},
		},
		{
			name:    "internal error retries with backoff",
			policy:  Default(),
			code:    CodeInternal,
			attempt: 3,
			want:    Decision{Action: Retry, Delay: 8 * time.Second},
		},
		{
			name:    "last retry",
			policy:  Default(),
			code:    CodeAbnormal,
			attempt: 4,
			want:    Decision{Action: Retry, Delay: 16 * time.Second},
		},
		{
			name:    "exhausted stops",
			policy:  Default(),
			code:    CodeAbnormal,
			attempt: 5,
			want:    Decision{Action: Stop},
		},
		{
			name:    "exhausted fails when configured",
			policy:  Policy{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 16 * time.Second, FailOnExhaustion: true},
			code:    1001,
			attempt: 5,
			want:    Decision{Action: Fail, Message: "Connection lost. Please refresh to try again."},
		},
		{
			name:    "zero retries",
			policy:  Policy{MaxRetries: 0, BaseDelay: time.Second, MaxDelay: time.Second},
			code:    CodeAbnormal,
			attempt: 0,
			want:    Decision{Action: Stop},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Decide(tt.code, tt.attempt); got != tt.want {
				t.Errorf("Decide(%d, %d) = %+v, want %+v", tt.code, tt.attempt, got, tt.want)
			}
		})
	}
}

func TestAction_String(t *testing.T) {
	tests := map[Action]string{
		Stop:      "stop",
		Retry:     "retry",
		Fail:      "fail",
		Action(9): "action(9)",
	}
	for a, want := range tests {
		if got := a.String(); got != want {
			t.Errorf("Action(%d).String() = %q, want %q", int(a), got, want)
		}
	}
}

func TestCloseCodes_MatchWebSocketCodes(t *testing.T) {
	tests := map[string]struct{ got, want int }{
		"normal":   {CodeNormal, websocket.CloseNormalClosure},
		"abnormal": {CodeAbnormal, websocket.CloseAbnormalClosure},
		"internal": {CodeInternal, websocket.CloseInternalServerErr},
		"auth":     {CodeUnauthorized, 4001},
	}
	for name, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s close code = %d, want %d", name, tt.got, tt.want)
		}
	}
}
