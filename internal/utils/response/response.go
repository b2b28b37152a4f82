// Package response provides helpers for writing consistent JSON HTTP
// responses. Only the machine-readable routes use it; the HTML pages go
// through the render package.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Response is the standard envelope returned for error cases.
//
//	{ "status": "error", "error": "unauthorized" }
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ErrUnauthorized is the body of a 401 from an admin-only JSON route.
var ErrUnauthorized = errors.New("unauthorized")

// WriteJSON writes a JSON-encoded response with the given HTTP status code.
// Header() → WriteHeader() → body, in that order: once WriteHeader is
// called, headers are locked.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// GeneralError wraps any Go error into the standard Response shape.
func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}
