package resultcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"article-inference/internal/inference"
)

// PostgresCache persists results in Postgres, the durable side of the
// article store. Unlike Redis there is no native expiry; rows carry an
// expires_at column checked on read.
type PostgresCache struct {
	db *sql.DB
}

// NewPostgres opens a connection and ensures the results table exists.
func NewPostgres(dsn string) (*PostgresCache, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	c := &PostgresCache{db: db}
	if err := c.migrate(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *PostgresCache) migrate(ctx context.Context) error {
	// Advisory lock so concurrent service starts don't race the migration.
	const lockID = 874201553

	var acquired bool
	if err := c.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !acquired {
		// Another service is running the migration; wait briefly and skip.
		time.Sleep(2 * time.Second)
		return nil
	}
	defer func() {
		_, _ = c.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	_, err := c.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS inference_results (
		cache_key TEXT PRIMARY KEY,
		output TEXT NOT NULL,
		provider TEXT NOT NULL,
		tokens_used INT,
		completed_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("failed to create inference_results: %w", err)
	}
	return nil
}

// Get retrieves a cached result by key. An expired row reads as a miss.
func (c *PostgresCache) Get(ctx context.Context, key string) (*inference.Result, error) {
	var (
		result inference.Result
		tokens sql.NullInt64
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT output, provider, tokens_used, completed_at
		FROM inference_results
		WHERE cache_key = $1 AND expires_at > now()`, key).
		Scan(&result.Output, &result.Provider, &tokens, &result.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if tokens.Valid {
		result.TokensUsed = int(tokens.Int64)
	}
	return &result, nil
}

// Put stores a result, replacing any previous row for the key.
func (c *PostgresCache) Put(ctx context.Context, key string, result *inference.Result, ttl time.Duration) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO inference_results (cache_key, output, provider, tokens_used, completed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cache_key) DO UPDATE
		SET output = EXCLUDED.output,
		    provider = EXCLUDED.provider,
		    tokens_used = EXCLUDED.tokens_used,
		    completed_at = EXCLUDED.completed_at,
		    expires_at = EXCLUDED.expires_at`,
		key, result.Output, string(result.Provider), result.TokensUsed, result.CompletedAt, time.Now().Add(ttl))
	return err
}

// Close closes the database connection.
func (c *PostgresCache) Close() error {
	return c.db.Close()
}
