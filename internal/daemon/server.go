package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	// maxMessageSize caps a single request (64KB).
	maxMessageSize = 64 * 1024
	// readTimeout bounds how long a client may take to send its request.
	readTimeout = 10 * time.Second
	// socketPermissions are the file permissions for the Unix socket.
	socketPermissions = 0600
)

// Start listens on the socket and serves requests until ctx is done.
// A stale socket left by a crashed watch is replaced.
func (d *Daemon) Start(ctx context.Context) error {
	if d.Listening() {
		return errors.New("daemon already listening")
	}

	if err := os.MkdirAll(filepath.Dir(d.socket), 0755); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if NewClient(d.socket).IsRunning() {
		return fmt.Errorf("another watch is serving %s", d.socket)
	}
	_ = os.Remove(d.socket)

	listener, err := net.Listen("unix", d.socket)
	if err != nil {
		return fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(d.socket, socketPermissions); err != nil {
		_ = listener.Close()
		return fmt.Errorf("set socket permissions: %w", err)
	}

	d.mu.Lock()
	d.listener = listener
	d.started = time.Now()
	d.mu.Unlock()

	d.logger.Info("control socket open")
	go d.serve(ctx, listener)

	<-ctx.Done()
	return d.Stop()
}

// Stop closes the listener and removes the socket. Safe to call twice.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.listener == nil {
		return nil
	}
	var err error
	if cerr := d.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = fmt.Errorf("close listener: %w", cerr)
	}
	d.listener = nil
	_ = os.Remove(d.socket)

	d.logger.Info("control socket closed")
	return err
}

func (d *Daemon) serve(ctx context.Context, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil || !d.Listening() {
				return
			}
			d.logger.Warn("accept failed", "error", err)
			continue
		}
		go d.handleConnection(ctx, conn)
	}
}

// handleConnection answers exactly one request per connection.
func (d *Daemon) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		d.logger.Debug("set read deadline failed", "error", err)
		return
	}

	encoder := json.NewEncoder(conn)
	var req Request
	if err := json.NewDecoder(io.LimitReader(conn, maxMessageSize)).Decode(&req); err != nil {
		_ = encoder.Encode(Response{Error: fmt.Sprintf("decode error: %v", err)})
		return
	}

	d.logger.Debug("request", "method", req.Method, "id", req.ID)
	resp := d.handleRequest(ctx, &req)
	resp.ID = req.ID
	if err := encoder.Encode(resp); err != nil {
		d.logger.Debug("write response failed", "error", err)
	}
}
