package application

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrApplicationNotFound is returned when an application record is not found.
var ErrApplicationNotFound = errors.New("application not found")

// Repository provides operations on the applications and user_applications tables.
type Repository interface {
	Create(ctx context.Context, app *Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*Application, error)
	List(ctx context.Context, filter Filter) ([]Application, error)
	ExistsInTenant(ctx context.Context, id uuid.UUID, tenantID *uuid.UUID) (bool, error)
	Update(ctx context.Context, id uuid.UUID, fields Update) (*Application, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Assign links an application to a user. Repeating an assignment is a no-op.
	Assign(ctx context.Context, appID, userID uuid.UUID) error
}
