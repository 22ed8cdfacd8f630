package relay_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/npratt/onboard/internal/api"
	"github.com/npratt/onboard/internal/auth"
	"github.com/npratt/onboard/internal/consumer"
	"github.com/npratt/onboard/internal/controller"
	"github.com/npratt/onboard/internal/progress"
	"github.com/npratt/onboard/internal/reconnect"
	"github.com/npratt/onboard/internal/relay"
	"github.com/npratt/onboard/internal/wsconn"
)

type stack struct {
	bus  *relay.MemoryBus
	ctrl *controller.Controller
}

func startStack(t *testing.T, token string) *stack {
	t.Helper()
	bus := relay.NewMemoryBus(time.Hour, nil)
	srv := httptest.NewServer(relay.NewServer(bus, "e2e-secret", time.Hour, nil).Handler())

	address, err := api.RoadmapAddress(srv.URL, auth.Static(token))
	require.NoError(t, err)

	ctrl := controller.New(wsconn.NewDialer(5*time.Second, nil), address, reconnect.Default(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ctrl.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
		_ = bus.Close()
	})
	return &stack{bus: bus, ctrl: ctrl}
}

func follow(t *testing.T, ctrl *controller.Controller) (progress.Snapshot, []progress.Snapshot) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var updates []progress.Snapshot
	final, err := consumer.Follow(ctx, ctrl.Subscribe(), consumer.Funcs{
		Update: func(s progress.Snapshot) { updates = append(updates, s) },
	})
	require.NoError(t, err)
	return final, updates
}

func TestEndToEnd_SimulatedRunCompletes(t *testing.T) {
	token, err := relay.IssueToken("e2e-secret", "user-1", time.Hour)
	require.NoError(t, err)
	st := startStack(t, token)

	st.ctrl.Bind("sess-1")
	require.Eventually(t, func() bool { return st.bus.Subscribers("sess-1") == 1 }, 5*time.Second, 10*time.Millisecond)

	go func() {
		_ = relay.NewSimulator(st.bus, 10*time.Millisecond, nil).Run(context.Background(), "sess-1")
	}()

	final, updates := follow(t, st.ctrl)
	require.Equal(t, progress.StatusCompleted, final.Status)
	require.NotNil(t, final.Result)
	require.Equal(t, "roadmap-sess-1", final.Result.ID)
	for _, s := range updates {
		require.True(t, s.Valid(), "invalid snapshot %+v", s)
	}
}

func TestEndToEnd_ReconnectReplaysCachedState(t *testing.T) {
	token, err := relay.IssueToken("e2e-secret", "user-1", time.Hour)
	require.NoError(t, err)
	st := startStack(t, token)

	require.NoError(t, st.bus.Publish(context.Background(), "sess-2",
		[]byte(`{"status":"in_progress","step":"planning","detail":"Ordering","progress_pct":60}`)))

	st.ctrl.Bind("sess-2")
	require.Eventually(t, func() bool {
		s := st.ctrl.Snapshot()
		return s.Status == progress.StatusInProgress && s.Step == "planning"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestEndToEnd_BadTokenFailsAuthentication(t *testing.T) {
	st := startStack(t, "not-a-token")

	st.ctrl.Bind("sess-3")
	final, _ := follow(t, st.ctrl)
	require.Equal(t, progress.StatusError, final.Status)
	require.Equal(t, reconnect.AuthFailedMessage, final.Message())
}
