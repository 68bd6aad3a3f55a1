package tenant

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

// Create inserts a new tenant record.
func (r *PostgresRepository) Create(ctx context.Context, t *Tenant) error {
	query := `
		INSERT INTO tenants (name)
		VALUES ($1)
		RETURNING id, created_at`

	if err := r.pool.QueryRow(ctx, query, t.Name).Scan(&t.ID, &t.CreatedAt); err != nil {
		return fmt.Errorf("inserting tenant: %w", err)
	}

	return nil
}

// GetByID retrieves a single tenant by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	query := `
		SELECT id, name, created_at
		FROM tenants
		WHERE id = $1`

	var t Tenant
	err := r.pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("querying tenant: %w", err)
	}

	return &t, nil
}

// List retrieves all tenants, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Tenant, error) {
	query := `
		SELECT id, name, created_at
		FROM tenants
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	tenants := []Tenant{}
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning tenant row: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tenant rows: %w", err)
	}

	return tenants, nil
}

// Update renames a tenant.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, name string) (*Tenant, error) {
	query := `
		UPDATE tenants SET name = $1
		WHERE id = $2
		RETURNING id, name, created_at`

	var t Tenant
	err := r.pool.QueryRow(ctx, query, name, id).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("updating tenant: %w", err)
	}

	return &t, nil
}

// Delete removes a tenant by its UUID. Returns ErrTenantInUse if users or
// applications still reference it (FK without cascade).
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrTenantInUse
		}
		return fmt.Errorf("deleting tenant: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrTenantNotFound
	}

	return nil
}
