// Package auth supplies the bearer token used for the progress stream and
// REST calls.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoToken means no source had a token.
var ErrNoToken = errors.New("no auth token")

// Source provides the current token. Token is called on every connection
// attempt, so implementations should be cheap.
type Source interface {
	Token() (string, error)
}

// Static is a fixed token. The empty string reports ErrNoToken.
type Static string

// Token implements Source.
func (s Static) Token() (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// Chain tries each source in order and returns the first token found.
type Chain []Source

// Token implements Source.
func (c Chain) Token() (string, error) {
	for _, src := range c {
		tok, err := src.Token()
		if err == nil {
			return tok, nil
		}
		if !errors.Is(err, ErrNoToken) {
			return "", err
		}
	}
	return "", ErrNoToken
}

// SaveToken writes token to path with owner-only permissions, creating
// parent directories.
func SaveToken(path, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("save token: %w", ErrNoToken)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename token file: %w", err)
	}
	return nil
}

// readTokenFile returns the trimmed file contents. A missing or empty file
// reports ErrNoToken.
func readTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}
