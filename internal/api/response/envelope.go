// Package response writes the {data, error, meta} envelope shared by every
// JSON endpoint.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Meta is attached to every envelope. Total is only set on list responses.
type Meta struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
	Total     *int   `json:"total,omitempty"`
}

// Error is the error member of a failed response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Envelope wraps every response body. Exactly one of Data and Error is meaningful.
type Envelope struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
	Meta  Meta   `json:"meta"`
}

// NewMeta stamps the current time. An empty requestID gets a fresh UUID.
func NewMeta(requestID string) Meta {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return Meta{
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// JSON writes env with the given status.
func JSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func Success(w http.ResponseWriter, status int, data any, requestID string) {
	JSON(w, status, Envelope{Data: data, Meta: NewMeta(requestID)})
}

// SuccessList is Success plus the item count in meta.total.
func SuccessList(w http.ResponseWriter, status int, data any, total int, requestID string) {
	meta := NewMeta(requestID)
	meta.Total = &total
	JSON(w, status, Envelope{Data: data, Meta: meta})
}

// Done writes {"success": true}, the body of deletes, assignments and logout.
func Done(w http.ResponseWriter, requestID string) {
	Success(w, http.StatusOK, map[string]bool{"success": true}, requestID)
}

// NoContent answers CORS preflights.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Err(w http.ResponseWriter, status int, code, message, requestID string) {
	ErrWithDetails(w, status, code, message, nil, requestID)
}

// ErrWithDetails carries per-field validation failures in error.details.
func ErrWithDetails(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	JSON(w, status, Envelope{
		Error: &Error{Code: code, Message: message, Details: details},
		Meta:  NewMeta(requestID),
	})
}
