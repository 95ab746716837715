package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Alia5/btkeyboard/device/keyboard"
	"github.com/Alia5/btkeyboard/sink"
)

// Request is one command line read from a connection.
type Request struct {
	Ctx context.Context
	// Command is the lower-cased first word of Line.
	Command string
	// Payload is everything after the first space.
	Payload string
	// Line is the raw line without its terminator.
	Line string

	// Engine belongs to the connection. Use Shared.Run around any call on it.
	Engine *keyboard.Engine
	Shared *sink.Shared
}

// Response holds the JSON string to return to the client.
type Response struct {
	JSON string
}

// HandlerFunc processes a request and populates the response.
// Returns an error on failure. The logger provided is a connection-scoped logger
// enriched with remote address metadata by the server.
type HandlerFunc func(req *Request, res *Response, logger *slog.Logger) error

// Router maps command words to handlers. Matching is case-insensitive.
type Router struct {
	routes map[string]HandlerFunc
}

// NewRouter returns a new Router instance.
func NewRouter() *Router { return &Router{routes: map[string]HandlerFunc{}} }

// Register registers a handler for a command word like "ping".
func (r *Router) Register(command string, handler HandlerFunc) {
	r.routes[strings.ToLower(command)] = handler
}

// Match returns the handler for command, or nil.
func (r *Router) Match(command string) HandlerFunc {
	return r.routes[strings.ToLower(command)]
}
