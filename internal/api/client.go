// Package api is a small client for the onboarding backend's REST
// endpoints and the builder for the roadmap stream address.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/npratt/onboard/internal/auth"
)

// defaultErrorMessage is used when a failed response carries no detail.
const defaultErrorMessage = "Request failed"

// Error is a non-2xx response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

// User is the account returned by login.
type User struct {
	ID        string  `json:"id"`
	FullName  string  `json:"full_name"`
	Email     string  `json:"email"`
	Profile   *string `json:"profile"`
	IsActive  bool    `json:"is_active"`
	LastLogin *string `json:"last_login"`
	CreatedAt *string `json:"created_at"`
	UpdatedAt *string `json:"updated_at"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// HistoryItem is one answered onboarding question.
type HistoryItem struct {
	Question     string   `json:"question"`
	Answer       string   `json:"answer"`
	Order        int      `json:"order"`
	QuestionType *string  `json:"question_type,omitempty"`
	Options      []string `json:"options,omitempty"`
}

// ChatHistory is the question and answer log of a session.
type ChatHistory struct {
	SessionID string        `json:"session_id"`
	Title     string        `json:"title"`
	Status    string        `json:"status"`
	History   []HistoryItem `json:"history"`
}

// Client calls the backend REST API.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens auth.Source
	logger *slog.Logger
}

// NewClient creates a Client for baseURL. tokens may be nil for
// unauthenticated calls.
func NewClient(baseURL string, tokens auth.Source, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	base, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: timeout},
		tokens: tokens,
		logger: logger.With("component", "api"),
	}, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/users/login", body, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, errors.New("login: response has no token")
	}
	return &resp, nil
}

// ChatHistory fetches the answered questions of a session.
func (c *Client) ChatHistory(ctx context.Context, sessionID string) (*ChatHistory, error) {
	if sessionID == "" {
		return nil, errors.New("chat history: empty session id")
	}
	var resp ChatHistory
	if err := c.do(ctx, http.MethodGet, "/chats/"+url.PathEscape(sessionID)+"/history", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		switch {
		case err == nil:
			req.Header.Set("Authorization", "Bearer "+tok)
		case !errors.Is(err, auth.ErrNoToken):
			return fmt.Errorf("read token: %w", err)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError builds an *Error from the detail field of a failed response.
func decodeError(resp *http.Response) error {
	var body struct {
		Detail any `json:"detail"`
	}
	msg := defaultErrorMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		if s, ok := body.Detail.(string); ok && s != "" {
			msg = s
		}
	}
	return &Error{Status: resp.StatusCode, Message: msg}
}

func parseBase(baseURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse base url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("parse base url: missing host")
	}
	return u, nil
}
