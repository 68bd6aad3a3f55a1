package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, role, tenant_id, created_by_admin_id,
		       first_name, last_name, phone, address, avatar_url, created_at`

// PostgresRepository implements UserRepository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new UserRepository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) UserRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new user record.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (email, password_hash, role, tenant_id, created_by_admin_id,
		                   first_name, last_name, phone, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		u.Email,
		u.PasswordHash,
		string(u.Role),
		u.TenantID,
		u.CreatedByAdminID,
		u.FirstName,
		u.LastName,
		u.Phone,
		u.Address,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a single user by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}

	return u, nil
}

// GetByEmail retrieves a single user by its (lower-cased) email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user by email: %w", err)
	}

	return u, nil
}

// List retrieves users newest first, optionally restricted to one tenant.
func (r *PostgresRepository) List(ctx context.Context, filter UserFilter) ([]User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1::boolean = FALSE OR tenant_id = $2)
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, filter.Scoped, filter.TenantID)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}

	return users, nil
}

// ExistsInTenant reports whether the user exists and belongs to tenantID.
// A nil tenantID never matches.
func (r *PostgresRepository) ExistsInTenant(ctx context.Context, id uuid.UUID, tenantID *uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND tenant_id = $2)",
		id, tenantID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking user tenant: %w", err)
	}
	return exists, nil
}

// Update applies a partial update and returns the stored row.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, fields UserUpdate) (*User, error) {
	var role *string
	if fields.Role != nil {
		s := string(*fields.Role)
		role = &s
	}

	query := `
		UPDATE users
		SET first_name = COALESCE($1, first_name),
		    last_name  = COALESCE($2, last_name),
		    email      = COALESCE($3, email),
		    role       = COALESCE($4, role),
		    phone      = COALESCE($5, phone),
		    address    = COALESCE($6, address)
		WHERE id = $7
		RETURNING ` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, query,
		fields.FirstName,
		fields.LastName,
		fields.Email,
		role,
		fields.Phone,
		fields.Address,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("updating user: %w", err)
	}

	return u, nil
}

// SetAvatarURL records the public path of the user's uploaded avatar.
func (r *PostgresRepository) SetAvatarURL(ctx context.Context, id uuid.UUID, url string) error {
	result, err := r.pool.Exec(ctx, `UPDATE users SET avatar_url = $1 WHERE id = $2`, url, id)
	if err != nil {
		return fmt.Errorf("setting avatar url: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user by its UUID.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CountByRole returns the number of users holding role.
func (r *PostgresRepository) CountByRole(ctx context.Context, role Role) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users WHERE role = $1", string(role)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &role, &u.TenantID, &u.CreatedByAdminID,
		&u.FirstName, &u.LastName, &u.Phone, &u.Address, &u.AvatarURL, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
