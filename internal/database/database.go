package database

import (
	"context"
	"crypto/tls"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the idempotent bootstrap schema applied at startup.
func Schema() string {
	return schemaSQL
}

// Option tweaks the pool configuration before the pool is created.
type Option func(*pgxpool.Config)

// WithTLS enables TLS for every pooled connection, verifying the server
// certificate against the host in the connection string.
func WithTLS() Option {
	return func(cfg *pgxpool.Config) {
		if cfg.ConnConfig.TLSConfig != nil {
			return
		}
		cfg.ConnConfig.TLSConfig = &tls.Config{
			ServerName: cfg.ConnConfig.Host,
			MinVersion: tls.VersionTLS12,
		}
	}
}

// DB wraps a pgxpool.Pool shared by every repository.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new DB by parsing the given database URL and establishing a connection pool.
func New(ctx context.Context, databaseURL string, opts ...Option) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	for _, opt := range opts {
		opt(poolCfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// EnsureSchema creates the tables and indexes if they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Pool returns the underlying pgxpool.Pool for repository use.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}
