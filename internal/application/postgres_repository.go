package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new application record.
func (r *PostgresRepository) Create(ctx context.Context, a *Application) error {
	query := `
		INSERT INTO applications (tenant_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	if err := r.pool.QueryRow(ctx, query, a.TenantID, a.Name, a.Description).Scan(&a.ID, &a.CreatedAt); err != nil {
		return fmt.Errorf("inserting application: %w", err)
	}

	return nil
}

// GetByID retrieves a single application by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Application, error) {
	query := `
		SELECT id, tenant_id, name, description, created_at
		FROM applications
		WHERE id = $1`

	var a Application
	err := r.pool.QueryRow(ctx, query, id).Scan(&a.ID, &a.TenantID, &a.Name, &a.Description, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("querying application: %w", err)
	}

	return &a, nil
}

// List retrieves applications matching filter, newest first.
func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]Application, error) {
	var (
		query string
		args  []any
	)
	switch {
	case filter.AssignedTo != nil:
		query = `
			SELECT a.id, a.tenant_id, a.name, a.description, a.created_at
			FROM applications a
			JOIN user_applications ua ON ua.application_id = a.id
			WHERE ua.user_id = $1
			ORDER BY a.created_at DESC`
		args = []any{*filter.AssignedTo}
	default:
		query = `
			SELECT id, tenant_id, name, description, created_at
			FROM applications
			WHERE ($1::boolean = FALSE OR tenant_id = $2)
			ORDER BY created_at DESC`
		args = []any{filter.Scoped, filter.TenantID}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	defer rows.Close()

	apps := []Application{}
	for rows.Next() {
		var a Application
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Name, &a.Description, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning application row: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating application rows: %w", err)
	}

	return apps, nil
}

// ExistsInTenant reports whether the application exists and belongs to tenantID.
func (r *PostgresRepository) ExistsInTenant(ctx context.Context, id uuid.UUID, tenantID *uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM applications WHERE id = $1 AND tenant_id = $2)",
		id, tenantID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking application tenant: %w", err)
	}
	return exists, nil
}

// Update applies a partial update and returns the stored row.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, fields Update) (*Application, error) {
	query := `
		UPDATE applications
		SET name        = COALESCE($1, name),
		    description = COALESCE($2, description)
		WHERE id = $3
		RETURNING id, tenant_id, name, description, created_at`

	var a Application
	err := r.pool.QueryRow(ctx, query, fields.Name, fields.Description, id).
		Scan(&a.ID, &a.TenantID, &a.Name, &a.Description, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("updating application: %w", err)
	}

	return &a, nil
}

// Delete removes an application and, by cascade, its assignments.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting application: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

// Assign inserts the (user, application) pair unless it already exists.
func (r *PostgresRepository) Assign(ctx context.Context, appID, userID uuid.UUID) error {
	query := `
		INSERT INTO user_applications (user_id, application_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, application_id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, userID, appID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrApplicationNotFound
		}
		return fmt.Errorf("assigning application: %w", err)
	}
	return nil
}
