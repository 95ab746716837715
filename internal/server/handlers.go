package server

import (
	"encoding/json"
	"log/slog"

	"github.com/Alia5/btkeyboard/apitypes"
	"github.com/Alia5/btkeyboard/internal/event"
	"github.com/Alia5/btkeyboard/internal/metrics"
)

// Version is reported by "ping". Overridden at link time.
var Version = "dev"

func writeJSON(res *Response, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return ErrInternal(err.Error())
	}
	res.JSON = string(b)
	return nil
}

// Ping answers with the server name and version.
func Ping() HandlerFunc {
	return func(req *Request, res *Response, logger *slog.Logger) error {
		return writeJSON(res, apitypes.PingResponse{Server: "btkeyboard", Version: Version})
	}
}

// State reports the connection's accumulator.
func State() HandlerFunc {
	return func(req *Request, res *Response, logger *slog.Logger) error {
		var out apitypes.StateResponse
		req.Shared.Run(func() {
			out = stateOf(req)
		})
		return writeJSON(res, out)
	}
}

// Reset clears the connection's accumulator without sending anything.
func Reset() HandlerFunc {
	return func(req *Request, res *Response, logger *slog.Logger) error {
		var out apitypes.StateResponse
		req.Shared.Run(func() {
			req.Engine.Reset()
			out = stateOf(req)
		})
		return writeJSON(res, out)
	}
}

func stateOf(req *Request) apitypes.StateResponse {
	return apitypes.StateResponse{
		State:   req.Engine.State().String(),
		Packing: req.Engine.Packing().String(),
		Latched: nonNil(req.Engine.Latched()),
	}
}

// Event parses the whole line as an input event and applies it to the
// connection's engine. m may be nil.
func Event(m *metrics.Metrics) HandlerFunc {
	return func(req *Request, res *Response, logger *slog.Logger) error {
		ev, err := event.Parse(req.Line)
		if err != nil {
			return ErrBadRequest(err.Error())
		}
		var out apitypes.EventResponse
		req.Shared.Run(func() {
			r := event.Apply(req.Engine, ev)
			out = apitypes.EventResponse{Sent: r.Sent, Dropped: r.Dropped, Latched: nonNil(req.Engine.Latched())}
		})
		m.ObserveEvent(string(ev.Kind), out.Sent, out.Dropped)
		if out.Dropped > 0 {
			logger.Debug("event dropped input", "event", ev.String(), "dropped", out.Dropped)
		}
		return writeJSON(res, out)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
