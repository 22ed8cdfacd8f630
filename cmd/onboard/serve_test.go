package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/npratt/onboard/internal/config"
	"github.com/npratt/onboard/internal/relay"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestOpenBus_Memory(t *testing.T) {
	cfg := config.Default()
	bus, err := openBus(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("openBus: %v", err)
	}
	defer func() { _ = bus.Close() }()
	if _, ok := bus.(*relay.MemoryBus); !ok {
		t.Errorf("bus = %T, want *relay.MemoryBus", bus)
	}
}

func TestOpenBus_RedisUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.Relay.RedisAddr = freeAddr(t)
	if _, err := openBus(context.Background(), cfg, discardLogger()); err == nil {
		t.Error("openBus should fail when redis is unreachable")
	}
}

func TestRunServe_HealthAndShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.Relay.Listen = freeAddr(t)
	cfg.Relay.SimulateInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg, "sess-sim", "", discardLogger()) }()

	url := "http://" + cfg.Relay.Listen + "/healthz"
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusNoContent {
				t.Errorf("healthz status = %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("relay did not come up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runServe = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServe did not stop")
	}
}
