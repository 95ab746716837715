// Package server exposes a keyboard.Engine per TCP connection over a
// line-oriented protocol. Each request is one line; each reply is one JSON
// line, either the handler's result or an ApiError problem document.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Alia5/btkeyboard/device/keyboard"
	"github.com/Alia5/btkeyboard/internal/event"
	"github.com/Alia5/btkeyboard/internal/metrics"
	"github.com/Alia5/btkeyboard/internal/server/auth"
	"github.com/Alia5/btkeyboard/sink"
)

// maxLineSize bounds a single request line.
const maxLineSize = 64 * 1024

type Server struct {
	config  ServerConfig
	logger  *slog.Logger
	shared  *sink.Shared
	packing keyboard.Packing
	metrics *metrics.Metrics
	router  *Router
	key     []byte

	ready     chan struct{}
	readyOnce sync.Once
	mu        sync.Mutex
	ln        net.Listener
	conns     map[net.Conn]struct{}
	closed    bool
	wg        sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithPacking sets the packing used by every connection's engine.
func WithPacking(p keyboard.Packing) Option {
	return func(s *Server) { s.packing = p }
}

// WithMetrics enables connection and event metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a server writing to shared. The default routes (ping, state,
// reset and the event kinds) are registered.
func New(config ServerConfig, shared *sink.Shared, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		config: config,
		logger: logger,
		shared: shared,
		router: NewRouter(),
		ready:  make(chan struct{}),
		conns:  map[net.Conn]struct{}{},
	}
	for _, o := range opts {
		o(s)
	}
	if config.Password != "" {
		// DeriveKey only fails on an empty password.
		s.key, _ = auth.DeriveKey(config.Password)
	}
	s.router.Register("ping", Ping())
	s.router.Register("state", State())
	s.router.Register("reset", Reset())
	ev := Event(s.metrics)
	for _, k := range []event.Kind{event.KindChar, event.KindKey, event.KindMod, event.KindChord, event.KindText} {
		s.router.Register(string(k), ev)
	}
	return s
}

// Router returns the router so callers can register extra commands.
func (s *Server) Router() *Router { return s.router }

// Config returns the server configuration.
func (s *Server) Config() ServerConfig { return s.config }

// ListenAndServe binds the configured address and serves until Close.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Close. It returns nil once the
// listener is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
	s.logger.Info("Event server listening", "addr", ln.Addr().String())
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || strings.Contains(strings.ToLower(err.Error()), "use of closed network connection") {
				s.logger.Info("Event server stopped")
				return nil
			}
			s.logger.Error("Accept error", "error", err)
			continue
		}
		if !s.track(c, true) {
			continue
		}
		go func() {
			defer s.wg.Done()
			defer s.track(c, false)
			if err := s.handleConn(c); err != nil && !isClientDisconnect(err) {
				s.logger.Error("Connection handler error", "remote", c.RemoteAddr().String(), "error", err)
			}
		}()
	}
}

// Ready returns a channel that is closed once the server has successfully bound
// to its listen address and is ready to accept connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops accepting, closes open connections and waits for their
// handlers to return.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return nil
	}
	s.closed = true
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

// track registers or forgets c. Registering also adds c to the wait group; it
// fails, closing c, once Close has started.
func (s *Server) track(c net.Conn, open bool) bool {
	s.mu.Lock()
	if open {
		if s.closed {
			s.mu.Unlock()
			_ = c.Close()
			return false
		}
		s.conns[c] = struct{}{}
		s.wg.Add(1)
	} else {
		delete(s.conns, c)
	}
	s.mu.Unlock()
	if s.metrics != nil {
		if open {
			s.metrics.Connections.Inc()
		} else {
			s.metrics.Connections.Dec()
		}
	}
	return true
}

func (s *Server) writeError(w io.Writer, err error) error {
	apiErr := WrapError(err)
	problemJSON, _ := json.Marshal(apiErr)
	_, werr := fmt.Fprintf(w, "%s\n", string(problemJSON))
	return werr
}

func (s *Server) writeOK(w io.Writer, rest string) error {
	var err error
	if rest == "" {
		_, err = fmt.Fprintln(w)
	} else {
		_, err = fmt.Fprintf(w, "%s\n", rest)
	}
	return err
}

func (s *Server) handleConn(conn net.Conn) error {
	defer conn.Close()

	connCtx, connCancel := context.WithCancel(context.Background())
	defer connCancel()

	connLogger := s.logger.With("remote", conn.RemoteAddr().String())
	connLogger.Info("Client connected")
	defer connLogger.Info("Client disconnected")

	if s.config.ConnectionTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.config.ConnectionTimeout))
	}
	in, out, err := s.authenticate(conn, connLogger)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			connLogger.Info("Closing idle connection", "timeout", s.config.ConnectionTimeout)
			return nil
		}
		return err
	}
	if in == nil {
		return nil
	}

	// Each peer has its own accumulator.
	engine := keyboard.New(s.shared, keyboard.WithPacking(s.packing), keyboard.WithLogger(connLogger))

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	w := bufio.NewWriter(out)
	for {
		if s.config.ConnectionTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.config.ConnectionTimeout))
		}
		if !sc.Scan() {
			err := sc.Err()
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				connLogger.Info("Closing idle connection", "timeout", s.config.ConnectionTimeout)
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		command, payload, _ := strings.Cut(strings.TrimLeft(line, " \t"), " ")
		command = strings.ToLower(command)
		connLogger.Debug("cmd", "command", command)

		var werr error
		if h := s.router.Match(command); h != nil {
			req := &Request{Ctx: connCtx, Command: command, Payload: payload, Line: line, Engine: engine, Shared: s.shared}
			res := &Response{}
			if err := h(req, res, connLogger); err != nil {
				connLogger.Warn("handler error", "command", command, "error", err)
				werr = s.writeError(w, err)
			} else {
				werr = s.writeOK(w, res.JSON)
			}
		} else {
			connLogger.Warn("unknown command", "command", command)
			werr = s.writeError(w, ErrBadRequest(fmt.Sprintf("unknown command: %s", command)))
		}
		if werr == nil {
			werr = w.Flush()
		}
		if werr != nil {
			return werr
		}
	}
}

// authenticate runs the password handshake when the peer offers one and
// returns the streams to serve requests on. Peers that must authenticate but
// did not are sent a 401 problem document; in is nil then.
func (s *Server) authenticate(conn net.Conn, logger *slog.Logger) (io.Reader, io.Writer, error) {
	br := bufio.NewReader(conn)
	offered, err := auth.Offered(br)
	if err != nil {
		return nil, nil, err
	}
	if !offered {
		if s.config.RequireAuth || !isLoopback(conn.RemoteAddr()) {
			logger.Warn("Rejecting unauthenticated client")
			return nil, nil, s.writeError(conn, ErrUnauthorized("password handshake required"))
		}
		return br, conn, nil
	}
	if s.key == nil {
		_, _ = br.Discard(auth.HelloSize)
		logger.Warn("Client offered a handshake but no password is configured")
		return nil, nil, s.writeError(conn, ErrUnauthorized("no password configured"))
	}
	session, err := auth.Accept(br, conn, s.key)
	if errors.Is(err, auth.ErrBadPassword) {
		logger.Warn("Client sent an invalid password")
		return nil, nil, s.writeError(conn, ErrUnauthorized(err.Error()))
	}
	if err != nil {
		return nil, nil, err
	}
	sealed, err := auth.WrapConn(conn, session, false)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Client authenticated")
	return sealed, sealed, nil
}

func isLoopback(a net.Addr) bool {
	if ta, ok := a.(*net.TCPAddr); ok {
		return ta.IP.IsLoopback()
	}
	host, _, err := net.SplitHostPort(a.String())
	if err != nil {
		return false
	}
	ip, err := netip.ParseAddr(host)
	return err == nil && ip.IsLoopback()
}

func isClientDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		// On many platforms the underlying error will be a syscall.Errno
		switch t := opErr.Err.(type) {
		case syscall.Errno:
			if t == syscall.ECONNRESET || t == syscall.EPIPE {
				return true
			}
		}
	}
	// Fallback to checking the message for platform-specific strings.
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "connection reset by peer") || strings.Contains(e, "forcibly closed") || strings.Contains(e, "broken pipe")
}
