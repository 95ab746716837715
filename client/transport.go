package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/Alia5/btkeyboard/internal/server/auth"
)

// Config controls low-level transport behavior such as timeouts.
type Config struct {
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Password, when set, runs the handshake after connecting and seals the
	// session. Servers require it from non-loopback clients.
	Password string
}

func defaultConfig() Config {
	return Config{
		DialTimeout:  3 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// Transport is the low-level event protocol implementation.
// Request framing: one line `<command>[ SP <payload>] \n`. Response framing: one line per request.
// The connection stays open between requests because the server keeps a
// modifier accumulator per connection.
type Transport struct {
	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
	mock func(line string) (string, error)
	cfg  Config
}

// Dial connects to addr. cfg may be nil.
func Dial(ctx context.Context, addr string, cfg *Config) (*Transport, error) {
	c := defaultConfig()
	if cfg != nil {
		c = *cfg
	}
	d := &net.Dialer{Timeout: c.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			slog.Warn("failed to set TCP_NODELAY", "error", err)
		}
	}
	if c.Password == "" {
		return &Transport{conn: conn, r: bufio.NewReader(conn), cfg: c}, nil
	}

	key, err := auth.DeriveKey(c.Password)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	} else if c.ReadTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.ReadTimeout))
	}
	session, err := auth.Initiate(bufio.NewReader(conn), conn, key)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}
	_ = conn.SetDeadline(time.Time{})
	sealed, err := auth.WrapConn(conn, session, true)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Transport{conn: sealed, r: bufio.NewReader(sealed), cfg: c}, nil
}

// NewMockTransport creates a transport that returns canned responses without real networking.
// The responder receives the request line without its terminator.
func NewMockTransport(responder func(line string) (string, error)) *Transport {
	return &Transport{mock: responder, cfg: defaultConfig()}
}

// Do sends one request line and returns the response line without its
// trailing newline.
func (t *Transport) Do(ctx context.Context, line string) (string, error) {
	if strings.ContainsAny(line, "\r\n") {
		return "", errors.New("request must be a single line")
	}
	if t.mock != nil {
		return t.mock(line)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if dl, ok := ctx.Deadline(); ok {
		_ = t.conn.SetDeadline(dl)
		defer t.conn.SetDeadline(time.Time{})
	}
	if t.cfg.WriteTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	}
	if _, err := t.conn.Write([]byte(line + "\n")); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	if t.cfg.ReadTimeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
	}
	resp, err := t.r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	return strings.TrimRight(resp, "\r\n"), nil
}

// Close closes the connection.
func (t *Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
