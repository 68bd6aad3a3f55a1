package auth

import (
	"time"

	"github.com/google/uuid"
)

// Role is one of the three fixed roles. Roles form a flat set: a route
// lists every role it admits and no role implies another.
type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperadmin, RoleAdmin, RoleUser:
		return true
	}
	return false
}

// User represents a row in the users table.
type User struct {
	ID               uuid.UUID
	Email            string
	PasswordHash     *string // nil when created without a password
	Role             Role
	TenantID         *uuid.UUID // nil for superadmins and unassigned users
	CreatedByAdminID *uuid.UUID
	FirstName        string
	LastName         string
	Phone            *string
	Address          *string
	AvatarURL        *string
	CreatedAt        time.Time
}

// Identity is stored in the request context after authentication.
type Identity struct {
	UserID   uuid.UUID
	Role     Role
	TenantID *uuid.UUID // nil means no tenant
}

// InTenant reports whether tenantID names the identity's own tenant.
// An identity without a tenant is in no tenant, including the nil one.
func (i *Identity) InTenant(tenantID *uuid.UUID) bool {
	if i.TenantID == nil || tenantID == nil {
		return false
	}
	return *i.TenantID == *tenantID
}

// RefreshToken represents a row in the refresh_tokens table. Only the
// SHA-256 digest of the opaque token is stored.
type RefreshToken struct {
	TokenHash string
	UserID    uuid.UUID
	ExpiresAt time.Time
	IsRevoked bool
	CreatedAt time.Time
}

// TokenStats counts refresh token rows by state at a point in time. A revoked
// row is counted as revoked whatever its expiry.
type TokenStats struct {
	Active  int64
	Expired int64
	Revoked int64
}

// UserFilter narrows a user listing. When Scoped is set only users of
// TenantID are returned; a nil TenantID then matches nothing.
type UserFilter struct {
	Scoped   bool
	TenantID *uuid.UUID
}

// UserUpdate carries a partial update. Nil fields keep their stored value.
type UserUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	Role      *Role
	Phone     *string
	Address   *string
}
