package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRefreshTokenRepository implements RefreshTokenRepository using pgxpool.
type PostgresRefreshTokenRepository struct {
	pool *pgxpool.Pool
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository backed by the given pool.
func NewRefreshTokenRepository(pool *pgxpool.Pool) RefreshTokenRepository {
	return &PostgresRefreshTokenRepository{pool: pool}
}

// Create persists a freshly issued refresh token.
func (r *PostgresRefreshTokenRepository) Create(ctx context.Context, t *RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	if err := r.pool.QueryRow(ctx, query, t.TokenHash, t.UserID, t.ExpiresAt).Scan(&t.CreatedAt); err != nil {
		return fmt.Errorf("inserting refresh token: %w", err)
	}
	return nil
}

// FindActive returns the non-revoked token with the given digest. Expiry is
// left to the caller so it can be reported separately.
func (r *PostgresRefreshTokenRepository) FindActive(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	query := `
		SELECT token_hash, user_id, expires_at, is_revoked, created_at
		FROM refresh_tokens
		WHERE token_hash = $1 AND is_revoked = FALSE`

	var t RefreshToken
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&t.TokenHash, &t.UserID, &t.ExpiresAt, &t.IsRevoked, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("querying refresh token: %w", err)
	}
	return &t, nil
}

// Revoke flags the token revoked. Unknown tokens are not an error.
func (r *PostgresRefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	if _, err := r.pool.Exec(ctx, `UPDATE refresh_tokens SET is_revoked = TRUE WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("revoking refresh token: %w", err)
	}
	return nil
}

// Stats counts rows by state relative to now.
func (r *PostgresRefreshTokenRepository) Stats(ctx context.Context, now time.Time) (TokenStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE NOT is_revoked AND expires_at >= $1),
			COUNT(*) FILTER (WHERE NOT is_revoked AND expires_at < $1),
			COUNT(*) FILTER (WHERE is_revoked)
		FROM refresh_tokens`

	var st TokenStats
	if err := r.pool.QueryRow(ctx, query, now).Scan(&st.Active, &st.Expired, &st.Revoked); err != nil {
		return TokenStats{}, fmt.Errorf("counting refresh tokens: %w", err)
	}
	return st, nil
}
