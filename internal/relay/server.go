package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/npratt/onboard/internal/reconnect"
)

const writeWait = 5 * time.Second

// Server serves the progress stream and a development login endpoint.
type Server struct {
	bus      Bus
	secret   string
	tokenTTL time.Duration
	logger   *slog.Logger
	upgrader websocket.Upgrader
	engine   *gin.Engine

	active atomic.Int64
}

// NewServer creates a Server that verifies stream tokens with secret and
// issues login tokens valid for tokenTTL.
func NewServer(bus Bus, secret string, tokenTTL time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		bus:      bus,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   logger.With("component", "relay"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.engine = s.newRouter()
	return s
}

func (s *Server) newRouter() *gin.Engine {
	router := gin.New()
	// Session ids may contain escaped slashes.
	router.UseRawPath = true
	router.Use(gin.Recovery(), requestLogger(s.logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	router.GET("/ws/roadmap/:session_id", s.handleStream)

	users := router.Group("/users")
	{
		users.POST("/login", s.handleLogin)
	}
	return router
}

// requestLogger logs plain HTTP requests at debug level. Stream
// connections log their own lifecycle.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.IsWebsocket() {
			return
		}
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Active returns the number of open stream connections.
func (s *Server) Active() int64 {
	return s.active.Load()
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("relay listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStream(c *gin.Context) {
	sessionID := c.Param("session_id")
	log := s.logger.With("session_id", sessionID, "conn_id", uuid.NewString())

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("upgrade failed", "error", err)
		return
	}
	defer func() { _ = ws.Close() }()

	if _, err := VerifyToken(s.secret, c.Query("token")); err != nil {
		log.Info("stream rejected", "error", err)
		closeWith(ws, reconnect.CodeUnauthorized, "Unauthorized")
		return
	}

	s.active.Add(1)
	defer s.active.Add(-1)
	log.Info("stream connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe before reading the cache so nothing published in between
	// is missed.
	sub, err := s.bus.Subscribe(ctx, sessionID)
	if err != nil {
		log.Error("subscribe failed", "error", err)
		closeWith(ws, reconnect.CodeInternal, "Internal error")
		return
	}
	defer func() { _ = sub.Close() }()

	// Drain client frames so close and ping control frames are handled.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	latest, err := s.bus.Latest(ctx, sessionID)
	if err != nil {
		log.Error("read cached state failed", "error", err)
		closeWith(ws, reconnect.CodeInternal, "Internal error")
		return
	}
	if latest != nil {
		done, err := forward(ws, latest)
		if err != nil {
			log.Debug("write cached state failed", "error", err)
			return
		}
		if done {
			log.Info("cached state already completed")
			closeWith(ws, reconnect.CodeNormal, "")
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("stream disconnected")
			return
		case payload, ok := <-sub.C:
			if !ok {
				log.Error("subscription ended")
				closeWith(ws, reconnect.CodeInternal, "Internal error")
				return
			}
			done, err := forward(ws, payload)
			if err != nil {
				log.Debug("write failed", "error", err)
				return
			}
			if done {
				log.Info("generation completed, closing stream")
				closeWith(ws, reconnect.CodeNormal, "")
				return
			}
		}
	}
}

// forward writes one payload to the client and reports whether it was a
// completed frame. Payloads that are not JSON are wrapped as
// {"message": <text>}.
func forward(ws *websocket.Conn, payload []byte) (bool, error) {
	out := payload
	completed := false

	var obj map[string]any
	switch {
	case json.Unmarshal(payload, &obj) == nil:
		completed = obj["status"] == "completed"
	case !json.Valid(payload):
		wrapped, err := json.Marshal(map[string]string{"message": string(payload)})
		if err != nil {
			return false, err
		}
		out = wrapped
	}

	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteMessage(websocket.TextMessage, out); err != nil {
		return false, err
	}
	return completed, nil
}

func closeWith(ws *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginUser struct {
	ID        string  `json:"id"`
	FullName  string  `json:"full_name"`
	Email     string  `json:"email"`
	Profile   *string `json:"profile"`
	IsActive  bool    `json:"is_active"`
	LastLogin string  `json:"last_login"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  loginUser `json:"user"`
}

// handleLogin accepts any non-empty credentials and issues a token for a
// user id derived from the email.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": "Invalid request body"})
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid credentials"})
		return
	}

	userID := uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+strings.ToLower(email))).String()
	token, err := IssueToken(s.secret, userID, s.tokenTTL)
	if err != nil {
		s.logger.Error("issue token failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal error"})
		return
	}

	name, _, _ := strings.Cut(email, "@")
	c.JSON(http.StatusOK, loginResponse{
		Token: token,
		User: loginUser{
			ID:        userID,
			FullName:  name,
			Email:     email,
			IsActive:  true,
			LastLogin: time.Now().UTC().Format(time.RFC3339),
		},
	})
	s.logger.Info("dev login", "user_id", userID)
}
