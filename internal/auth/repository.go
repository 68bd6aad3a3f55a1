package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when a user record is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateEmail is returned when another user already owns the email.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrRefreshTokenNotFound is returned when no non-revoked refresh token matches.
var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// UserRepository provides operations on the users table.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, filter UserFilter) ([]User, error)
	ExistsInTenant(ctx context.Context, id uuid.UUID, tenantID *uuid.UUID) (bool, error)
	Update(ctx context.Context, id uuid.UUID, fields UserUpdate) (*User, error)
	SetAvatarURL(ctx context.Context, id uuid.UUID, url string) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByRole(ctx context.Context, role Role) (int, error)
}

// RefreshTokenRepository provides operations on the refresh_tokens table.
// Rows are never deleted: logout only flags a row revoked and expired rows
// stay as an audit trail.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error
	FindActive(ctx context.Context, tokenHash string) (*RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string) error
	Stats(ctx context.Context, now time.Time) (TokenStats, error)
}
