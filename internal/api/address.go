package api

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/npratt/onboard/internal/auth"
)

// RoadmapAddress returns a function that builds the progress stream
// address for a session: ws(s)://host/ws/roadmap/{id}?token=<jwt>. The
// token is read from tokens on every call. With no token available the
// parameter is left out and the server rejects the handshake.
func RoadmapAddress(baseURL string, tokens auth.Source) (func(sessionID string) (string, error), error) {
	base, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}

	ws := *base
	switch base.Scheme {
	case "https":
		ws.Scheme = "wss"
	default:
		ws.Scheme = "ws"
	}

	return func(sessionID string) (string, error) {
		if sessionID == "" {
			return "", errors.New("roadmap address: empty session id")
		}
		// The id is one escaped segment, so "/" or ".." stay inside it.
		u := ws.JoinPath("ws", "roadmap")
		u.RawPath = u.EscapedPath() + "/" + url.PathEscape(sessionID)
		u.Path += "/" + sessionID

		q := url.Values{}
		if tokens != nil {
			tok, err := tokens.Token()
			switch {
			case err == nil:
				q.Set("token", tok)
			case !errors.Is(err, auth.ErrNoToken):
				return "", fmt.Errorf("roadmap address: %w", err)
			}
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}, nil
}
