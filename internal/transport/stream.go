package transport

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehrlich-b/wingthing/internal/sync"
)

// StreamServer accepts raw TCP connections (the Telnet-style front end):
// one request per connection, read until the blank-line terminator, write
// the response, close.
type StreamServer struct {
	engine         *sync.Engine
	listener       net.Listener
	idleTimeout    time.Duration
	allowedOrigins map[string]bool
	limiter        *originLimiter
	log            *slog.Logger
}

// NewStreamServer wires engine into a line-oriented TCP listener. origins,
// if non-empty, restricts accepted connections to those remote IPs;
// CONNECTION_ORIGIN in the original configuration surface. Connections are
// additionally throttled per remote IP (10 req/s, burst 20).
func NewStreamServer(engine *sync.Engine, idleTimeout time.Duration, origins []string, log *slog.Logger) *StreamServer {
	var allowed map[string]bool
	if len(origins) > 0 {
		allowed = make(map[string]bool, len(origins))
		for _, o := range origins {
			allowed[o] = true
		}
	}
	return &StreamServer{
		engine:         engine,
		idleTimeout:    idleTimeout,
		allowedOrigins: allowed,
		limiter:        newOriginLimiter(10, 20),
		log:            log,
	}
}

// ListenAndServe opens addr and serves connections until the listener is
// closed (typically via Close from another goroutine on shutdown).
func (s *StreamServer) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("stream: listen %s: %w", addr, err)
	}
	s.listener = ln
	s.log.Info("stream transport listening", slog.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		if !s.originAllowed(conn) {
			conn.Close()
			continue
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *StreamServer) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *StreamServer) originAllowed(conn net.Conn) bool {
	if s.allowedOrigins == nil {
		return true
	}
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return false
	}
	return s.allowedOrigins[host]
}

func (s *StreamServer) handleConn(conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()

	if host, _, err := net.SplitHostPort(conn.RemoteAddr().String()); err == nil && !s.limiter.allow(host) {
		s.log.Debug("stream: rate limited", slog.String("conn", connID), slog.String("remote", host))
		return
	}

	raw, err := s.readRequest(conn)
	if err != nil {
		s.log.Debug("stream: request aborted", slog.String("conn", connID), slog.Any("err", err))
		return
	}

	resp := s.engine.ProcessRequest(raw)
	if _, err := conn.Write([]byte(resp)); err != nil {
		s.log.Debug("stream: write failed", slog.String("conn", connID), slog.Any("err", err))
	}
}

// readRequest reads lines until a blank-line terminator or the idle
// timeout elapses, whichever comes first. A timed-out or otherwise
// truncated read aborts the request.
func (s *StreamServer) readRequest(conn net.Conn) (string, error) {
	reader := bufio.NewReader(conn)
	var b strings.Builder

	for {
		if s.idleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		line, err := reader.ReadString('\n')
		b.WriteString(line)
		if err != nil {
			return "", fmt.Errorf("stream: read: %w", err)
		}
		if strings.TrimRight(line, "\r\n") == "" {
			break
		}
	}

	return b.String(), nil
}
