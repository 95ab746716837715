// Package client talks to the btkeyboard event server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Alia5/btkeyboard/apitypes"
)

// Client provides typed calls over a Transport. It is bound to one server
// connection and therefore to one modifier accumulator.
type Client struct{ transport *Transport }

// New dials addr with default timeouts.
func New(ctx context.Context, addr string) (*Client, error) {
	return NewWithConfig(ctx, addr, nil)
}

// NewWithConfig dials addr with custom transport timeouts.
func NewWithConfig(ctx context.Context, addr string, cfg *Config) (*Client, error) {
	t, err := Dial(ctx, addr, cfg)
	if err != nil {
		return nil, err
	}
	return &Client{transport: t}, nil
}

// WithTransport constructs a Client using a custom Transport implementation.
// This is primarily useful for testing.
func WithTransport(t *Transport) *Client { return &Client{transport: t} }

// Close closes the underlying connection.
func (c *Client) Close() error { return c.transport.Close() }

// Ping returns the version and identity of the server.
func (c *Client) Ping(ctx context.Context) (*apitypes.PingResponse, error) {
	return do[apitypes.PingResponse](ctx, c.transport, "ping")
}

// State returns the connection's accumulator.
func (c *Client) State(ctx context.Context) (*apitypes.StateResponse, error) {
	return do[apitypes.StateResponse](ctx, c.transport, "state")
}

// Reset clears the connection's accumulator.
func (c *Client) Reset(ctx context.Context) (*apitypes.StateResponse, error) {
	return do[apitypes.StateResponse](ctx, c.transport, "reset")
}

// Char sends one character.
func (c *Client) Char(ctx context.Context, r rune) (*apitypes.EventResponse, error) {
	return do[apitypes.EventResponse](ctx, c.transport, "char "+string(r))
}

// Key sends a named key such as "Enter" or "F5".
func (c *Client) Key(ctx context.Context, name string) (*apitypes.EventResponse, error) {
	return do[apitypes.EventResponse](ctx, c.transport, "key "+name)
}

// Mod latches a modifier for the next char or key.
func (c *Client) Mod(ctx context.Context, name string) (*apitypes.EventResponse, error) {
	return do[apitypes.EventResponse](ctx, c.transport, "mod "+name)
}

// Chord sends parts joined with '+', e.g. Chord(ctx, "Ctrl", "Alt", "Del").
func (c *Client) Chord(ctx context.Context, parts ...string) (*apitypes.EventResponse, error) {
	if len(parts) == 0 {
		return nil, errors.New("empty chord")
	}
	return do[apitypes.EventResponse](ctx, c.transport, "chord "+strings.Join(parts, "+"))
}

// Text types s. Newlines and tabs are escaped on the wire.
func (c *Client) Text(ctx context.Context, s string) (*apitypes.EventResponse, error) {
	esc := strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\t", `\t`, "\r", "").Replace(s)
	return do[apitypes.EventResponse](ctx, c.transport, "text "+esc)
}

// Raw sends an already formatted event line.
func (c *Client) Raw(ctx context.Context, line string) (*apitypes.EventResponse, error) {
	return do[apitypes.EventResponse](ctx, c.transport, line)
}

func do[T any](ctx context.Context, t *Transport, line string) (*T, error) {
	raw, err := t.Do(ctx, line)
	if err != nil {
		return nil, err
	}
	return parse[T](raw)
}

func parse[T any](data string) (*T, error) {
	if data == "" {
		return nil, errors.New("empty response")
	}
	var problem apitypes.ApiError
	if err := json.Unmarshal([]byte(data), &problem); err == nil && (problem.Status != 0 || problem.Title != "") {
		return nil, &problem
	}
	var out T
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}
