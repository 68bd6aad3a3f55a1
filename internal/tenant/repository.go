package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrTenantNotFound is returned when a tenant record is not found.
var ErrTenantNotFound = errors.New("tenant not found")

// ErrTenantInUse is returned when attempting to delete a tenant that users
// or applications still reference.
var ErrTenantInUse = errors.New("tenant in use")

// Repository provides CRUD operations on the tenants table.
type Repository interface {
	Create(ctx context.Context, tenant *Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	Update(ctx context.Context, id uuid.UUID, name string) (*Tenant, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
