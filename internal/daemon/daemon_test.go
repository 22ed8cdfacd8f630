package daemon

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/npratt/onboard/internal/controller"
	"github.com/npratt/onboard/internal/reconnect"
	"github.com/npratt/onboard/internal/testutil"
)

// shortSocketPath returns a socket path inside the system temp dir.
// t.TempDir paths can exceed the 104/108 byte Unix socket limit.
func shortSocketPath(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp("", "sock")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	path := f.Name()
	_ = f.Close()
	_ = os.Remove(path)
	t.Cleanup(func() { _ = os.Remove(path) })
	return path
}

func waitForSocket(t *testing.T, socketPath string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("socket %s did not become ready", socketPath)
}

func newController(t *testing.T) *controller.Controller {
	t.Helper()
	address := func(id string) (string, error) { return "ws://relay.test/ws/roadmap/" + id, nil }
	return controller.New(testutil.NewFakeOpener(), address, reconnect.Default(), nil, nil)
}

// startDaemon runs a daemon on a fresh socket until the test ends.
func startDaemon(t *testing.T, w Watch, cancel func()) *Daemon {
	t.Helper()
	d := New(shortSocketPath(t), w, cancel, nil)
	ctx, stop := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()
	t.Cleanup(func() {
		stop()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	waitForSocket(t, d.SocketPath())
	return d
}

func TestNew(t *testing.T) {
	d := New("/tmp/onboard-test.sock", nil, nil, nil)
	if d.SocketPath() != "/tmp/onboard-test.sock" {
		t.Errorf("SocketPath() = %q", d.SocketPath())
	}
	if d.logger == nil {
		t.Error("logger should default to slog.Default()")
	}
	if d.Listening() {
		t.Error("daemon should not be listening before Start")
	}
	if !d.Since().IsZero() {
		t.Error("Since should be zero before Start")
	}
}

func TestDaemon_StartStop(t *testing.T) {
	sock := shortSocketPath(t)
	d := New(sock, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	waitForSocket(t, sock)
	if !d.Listening() {
		t.Error("daemon should be listening after Start")
	}
	if d.Since().IsZero() {
		t.Error("Since should be set after Start")
	}
	info, err := os.Stat(sock)
	if err != nil {
		t.Fatalf("stat socket: %v", err)
	}
	if perm := info.Mode().Perm(); perm != socketPermissions {
		t.Errorf("socket perms = %o, want %o", perm, socketPermissions)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop within timeout")
	}

	if d.Listening() {
		t.Error("daemon should not be listening after Stop")
	}
	if _, err := os.Stat(sock); !os.IsNotExist(err) {
		t.Error("socket file should be removed after Stop")
	}
	if err := d.Stop(); err != nil {
		t.Errorf("second Stop() error: %v", err)
	}
}

func TestDaemon_StartRefusesLiveSocket(t *testing.T) {
	first := startDaemon(t, nil, nil)

	second := New(first.SocketPath(), nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := second.Start(ctx); err == nil {
		t.Fatal("Start() should fail while another daemon serves the socket")
	}
	if !NewClient(first.SocketPath()).IsRunning() {
		t.Error("first daemon should still be reachable")
	}
}

func TestDaemon_StartReplacesStaleSocket(t *testing.T) {
	sock := shortSocketPath(t)
	if err := os.WriteFile(sock, []byte("stale"), 0600); err != nil {
		t.Fatal(err)
	}

	d := New(sock, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()
	waitForSocket(t, sock)

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("Start() error: %v", err)
	}
}
