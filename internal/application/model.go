package application

import (
	"time"

	"github.com/google/uuid"
)

// Application represents a row in the applications table.
type Application struct {
	ID          uuid.UUID
	TenantID    *uuid.UUID // nil for tenant-less applications created by a superadmin
	Name        string
	Description *string
	CreatedAt   time.Time
}

// Filter selects which applications a listing returns. Exactly one mode applies:
// AssignedTo restricts to applications assigned to that user, otherwise
// Scoped restricts to TenantID (a nil TenantID then matches nothing),
// otherwise every application is returned.
type Filter struct {
	AssignedTo *uuid.UUID
	Scoped     bool
	TenantID   *uuid.UUID
}

// Update carries a partial update. Nil fields keep their stored value.
type Update struct {
	Name        *string
	Description *string
}
