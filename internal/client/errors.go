package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned by calls that need a session when none exists.
var ErrNotAuthenticated = errors.New("client: not authenticated")

// ErrSessionExpired is returned when a 401 could not be recovered by
// refreshing. The session has already been cleared when it is returned.
var ErrSessionExpired = errors.New("client: session expired")

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    json.RawMessage
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("client: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("client: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0 if err is not an APIError.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// CodeOf returns the error code carried by err, or "" if err is not an APIError.
func CodeOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}
