package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tenantgate/tenantgate/internal/access"
	"github.com/tenantgate/tenantgate/internal/api/middleware"
	"github.com/tenantgate/tenantgate/internal/api/response"
	"github.com/tenantgate/tenantgate/internal/api/validation"
	"github.com/tenantgate/tenantgate/internal/auth"
)

const timeFormat = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// parseOptionalUUID parses a value that validation already accepted.
func parseOptionalUUID(s *string) *uuid.UUID {
	if s == nil || *s == "" {
		return nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil
	}
	return &id
}

func decodeBody(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// decodeJSON decodes the request body into dst and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, requestID string) bool {
	if err := decodeBody(r, dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Err(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body is too large", requestID)
			return false
		}
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return false
	}
	return true
}

func validationFailed(w http.ResponseWriter, fieldErrors []validation.FieldError, requestID string) bool {
	if len(fieldErrors) == 0 {
		return false
	}
	response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
	return true
}

// urlID parses the {id} URL parameter and writes a 400 when it is not a UUID.
func urlID(w http.ResponseWriter, r *http.Request, requestID string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return uuid.Nil, false
	}
	return id, true
}

// callerIdentity returns the authenticated caller or writes a 401.
func callerIdentity(w http.ResponseWriter, r *http.Request, requestID string) (*auth.Identity, bool) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", requestID)
		return nil, false
	}
	return identity, true
}

// writePolicyError maps an access check failure to a response. Other errors
// are logged and reported as 500 with the given message.
func writePolicyError(w http.ResponseWriter, err error, requestID, failure string) {
	if errors.Is(err, access.ErrForbidden) {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", requestID)
		return
	}
	slog.Error(failure, "error", err)
	response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", failure, requestID)
}
