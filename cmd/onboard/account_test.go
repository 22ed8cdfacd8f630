package main

import (
	"bufio"
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/npratt/onboard/internal/api"
	"github.com/npratt/onboard/internal/config"
	"github.com/npratt/onboard/internal/relay"
	"github.com/npratt/onboard/internal/testutil"
)

func TestLogin_SavesToken(t *testing.T) {
	bus := relay.NewMemoryBus(time.Hour, nil)
	defer func() { _ = bus.Close() }()
	srv := httptest.NewServer(relay.NewServer(bus, testSecret, time.Hour, nil).Handler())
	defer srv.Close()

	cfg := config.Default()
	cfg.Server.BaseURL = srv.URL
	cfg.Auth.TokenFile = filepath.Join(t.TempDir(), "auth", "token")

	resp, err := login(context.Background(), cfg, " dev@example.com ", "pw", discardLogger())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.User.Email != "dev@example.com" {
		t.Errorf("user email = %q", resp.User.Email)
	}

	saved := testutil.ReadFile(t, cfg.Auth.TokenFile)
	if _, err := relay.VerifyToken(testSecret, strings.TrimSpace(saved)); err != nil {
		t.Errorf("saved token does not verify: %v", err)
	}
}

func TestLogin_Rejected(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.TokenFile = filepath.Join(t.TempDir(), "token")

	if _, err := login(context.Background(), cfg, "", "pw", discardLogger()); err == nil {
		t.Error("login with empty email should fail")
	}
	if testutil.FileExists(t, cfg.Auth.TokenFile) {
		t.Error("no token file should be written")
	}
}

func TestLoginName(t *testing.T) {
	tests := []struct {
		user api.User
		want string
	}{
		{api.User{ID: "u1", FullName: "Dev", Email: "dev@example.com"}, "Dev <dev@example.com>"},
		{api.User{ID: "u1", Email: "dev@example.com"}, "dev@example.com"},
		{api.User{ID: "u1"}, "u1"},
	}
	for _, tt := range tests {
		if got := loginName(tt.user); got != tt.want {
			t.Errorf("loginName(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}
}

func TestPrompt(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("  someone@example.com \nrest"))
	var out bytes.Buffer
	got, err := prompt(in, &out, "Email: ")
	if err != nil {
		t.Fatal(err)
	}
	if got != "someone@example.com" {
		t.Errorf("prompt = %q", got)
	}
	if out.String() != "Email: " {
		t.Errorf("label = %q", out.String())
	}

	// A final line without a newline is still returned.
	got, err = prompt(in, &out, "")
	if err != nil || got != "rest" {
		t.Errorf("prompt at EOF = (%q, %v)", got, err)
	}
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, &api.ChatHistory{
		SessionID: "s1",
		Title:     "Backend onboarding",
		Status:    "completed",
		History: []api.HistoryItem{
			{Question: "Which stack?", Answer: "Go", Order: 2},
			{Question: "Your role?", Answer: "Backend engineer", Order: 1},
		},
	})

	out := buf.String()
	if !strings.HasPrefix(out, "Backend onboarding [completed]\n") {
		t.Errorf("header missing:\n%s", out)
	}
	first := strings.Index(out, "1. Your role?")
	second := strings.Index(out, "2. Which stack?")
	if first < 0 || second < 0 || first > second {
		t.Errorf("questions not in answer order:\n%s", out)
	}
}

func TestPrintHistory_Empty(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, &api.ChatHistory{Status: "new"})
	if got := buf.String(); got != "(untitled) [new]\nNo answered questions\n" {
		t.Errorf("output = %q", got)
	}
}
