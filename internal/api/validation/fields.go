package validation

import (
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

const maxNameLen = 255

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > 320 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func requireName(errs []FieldError, field, value string) []FieldError {
	v := strings.TrimSpace(value)
	if v == "" {
		return append(errs, FieldError{Field: field, Message: field + " is required"})
	}
	if len(v) > maxNameLen {
		return append(errs, FieldError{Field: field, Message: field + " must be at most 255 characters"})
	}
	return errs
}

func optionalName(errs []FieldError, field string, value *string) []FieldError {
	if value == nil {
		return errs
	}
	return requireName(errs, field, *value)
}

func requireEmail(errs []FieldError, field, value string) []FieldError {
	if strings.TrimSpace(value) == "" {
		return append(errs, FieldError{Field: field, Message: field + " is required"})
	}
	if !validEmail(value) {
		return append(errs, FieldError{Field: field, Message: field + " must be a valid email address"})
	}
	return errs
}

func optionalUUID(errs []FieldError, field string, value *string) []FieldError {
	if value == nil || *value == "" {
		return errs
	}
	if _, err := uuid.Parse(*value); err != nil {
		return append(errs, FieldError{Field: field, Message: field + " must be a valid UUID"})
	}
	return errs
}

func password(errs []FieldError, field, value string) []FieldError {
	if len(value) < 6 {
		return append(errs, FieldError{Field: field, Message: field + " must be at least 6 characters"})
	}
	if len(value) > 72 {
		return append(errs, FieldError{Field: field, Message: field + " must be at most 72 bytes"})
	}
	return errs
}
