package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents a row in the tenants table.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}
