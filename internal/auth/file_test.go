package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func waitForToken(t *testing.T, src Source, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if tok, err := src.Token(); err == nil && tok == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	tok, err := src.Token()
	t.Fatalf("Token() = %q, %v; want %q", tok, err, want)
}

func TestFileSource_ReadsOnDemand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	src := NewFileSource(path, nil)

	if _, err := src.Token(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
	if err := SaveToken(path, "one"); err != nil {
		t.Fatal(err)
	}
	if tok, err := src.Token(); err != nil || tok != "one" {
		t.Errorf("Token() = %q, %v", tok, err)
	}
	if src.Path() != path {
		t.Errorf("Path() = %q", src.Path())
	}
}

func TestFileSource_WatchesChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := SaveToken(path, "first"); err != nil {
		t.Fatal(err)
	}

	src := NewFileSource(path, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = src.Stop() }()

	if tok, err := src.Token(); err != nil || tok != "first" {
		t.Fatalf("initial Token() = %q, %v", tok, err)
	}
	if err := src.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	if err := SaveToken(path, "second"); err != nil {
		t.Fatal(err)
	}
	waitForToken(t, src, "second")
	if src.Reloads() < 2 {
		t.Errorf("Reloads() = %d, want at least 2", src.Reloads())
	}
}

func TestFileSource_StopFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	src := NewFileSource(path, nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := src.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := src.Stop(); err != nil {
		t.Errorf("second Stop() = %v", err)
	}

	if err := SaveToken(path, "later"); err != nil {
		t.Fatal(err)
	}
	if tok, err := src.Token(); err != nil || tok != "later" {
		t.Errorf("Token() after Stop = %q, %v", tok, err)
	}
}
