package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/npratt/onboard/internal/progress"
)

func collect(t *testing.T, sub *Subscription, n int) [][]byte {
	t.Helper()
	var out [][]byte
	for len(out) < n {
		select {
		case p := <-sub.C:
			out = append(out, p)
		case <-time.After(5 * time.Second):
			t.Fatalf("got %d payloads, want %d", len(out), n)
		}
	}
	return out
}

func TestSimulator_DefaultRun(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus(0, nil)
	defer bus.Close()
	sub, err := bus.Subscribe(ctx, "abc")
	require.NoError(t, err)

	require.NoError(t, NewSimulator(bus, 0, nil).Run(ctx, "abc"))

	payloads := collect(t, sub, len(DefaultSteps))
	wantPct := []int{10, 30, 60, 85, 100}
	for i, p := range payloads {
		snap, ok := progress.Reduce(p)
		require.True(t, ok, "payload %d rejected by reducer: %s", i, p)
		require.Equal(t, wantPct[i], snap.ProgressPercent)
		require.Equal(t, DefaultSteps[i].Step, snap.Step)
	}

	last, ok := progress.Reduce(payloads[len(payloads)-1])
	require.True(t, ok)
	require.Equal(t, progress.StatusCompleted, last.Status)
	require.NotNil(t, last.Result)
	require.Equal(t, "roadmap-abc", last.Result.ID)

	var f frame
	require.NoError(t, json.Unmarshal(payloads[0], &f))
	require.Equal(t, "abc", f.SessionID)

	latest, err := bus.Latest(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, payloads[len(payloads)-1], latest)
}

func TestSimulator_FailAt(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus(0, nil)
	defer bus.Close()
	sub, err := bus.Subscribe(ctx, "abc")
	require.NoError(t, err)

	sim := NewSimulator(bus, 0, nil)
	sim.FailAt = "planning"
	require.NoError(t, sim.Run(ctx, "abc"))

	payloads := collect(t, sub, 3)
	snap, ok := progress.Reduce(payloads[2])
	require.True(t, ok)
	require.Equal(t, progress.StatusError, snap.Status)
	require.Equal(t, "failed", snap.Step)
	require.Contains(t, snap.Message(), "simulated failure at planning")
	require.Empty(t, sub.C)
}

func TestSimulator_Cancelled(t *testing.T) {
	bus := NewMemoryBus(0, nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sim := NewSimulator(bus, time.Hour, nil)
	errc := make(chan error, 1)
	go func() { errc <- sim.Run(ctx, "abc") }()

	require.Eventually(t, func() bool {
		latest, _ := bus.Latest(context.Background(), "abc")
		return latest != nil
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		require.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("simulator did not stop")
	}
}

func TestSimulator_PublishError(t *testing.T) {
	bus := NewMemoryBus(0, nil)
	require.NoError(t, bus.Close())
	require.Error(t, NewSimulator(bus, 0, nil).Run(context.Background(), "abc"))
}
