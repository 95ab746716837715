// Package apitypes holds the JSON shapes exchanged over the event server.
package apitypes

import "fmt"

// ApiError represents an RFC 7807 (problem+json) error response.
type ApiError struct {
	// Status is the HTTP-style status code (e.g., 400, 404, 500)
	Status int `json:"status"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Detail is a human-readable explanation specific to this occurrence
	Detail string `json:"detail"`
}

func (e ApiError) Error() string {
	if e.Status == 0 && e.Title == "" {
		return "unknown error"
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
}

// --

type PingResponse struct {
	Server  string `json:"server"`
	Version string `json:"version"`
}

// EventResponse answers every event line.
type EventResponse struct {
	Sent    int      `json:"sent"`
	Dropped int      `json:"dropped"`
	Latched []string `json:"latched"`
}

// StateResponse answers "state" and "reset".
type StateResponse struct {
	State   string   `json:"state"`
	Packing string   `json:"packing"`
	Latched []string `json:"latched"`
}
