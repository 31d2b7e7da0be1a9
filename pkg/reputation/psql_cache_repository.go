package reputation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCacheRepository implements CacheRepository using PostgreSQL
type PostgresCacheRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCacheRepository creates a new PostgreSQL reputation cache repository
func NewPostgresCacheRepository(pool *pgxpool.Pool) *PostgresCacheRepository {
	return &PostgresCacheRepository{
		pool: pool,
	}
}

// Get retrieves a cached entry by IP
func (r *PostgresCacheRepository) Get(ctx context.Context, ip string) (CacheEntry, error) {
	query := `
		SELECT ip_address, status, score, last_checked
		FROM ip_reputation_cache
		WHERE ip_address = $1
	`

	var entry CacheEntry
	err := r.pool.QueryRow(ctx, query, ip).Scan(
		&entry.IPAddress,
		&entry.Status,
		&entry.Score,
		&entry.LastChecked,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CacheEntry{}, ErrCacheMiss
		}
		return CacheEntry{}, fmt.Errorf("failed to get reputation cache entry: %w", err)
	}

	return entry, nil
}

// Upsert stores or replaces a cached entry
func (r *PostgresCacheRepository) Upsert(ctx context.Context, entry CacheEntry) error {
	query := `
		INSERT INTO ip_reputation_cache (ip_address, status, score, last_checked)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ip_address)
		DO UPDATE SET status = EXCLUDED.status, score = EXCLUDED.score, last_checked = EXCLUDED.last_checked
	`

	_, err := r.pool.Exec(ctx, query, entry.IPAddress, entry.Status, entry.Score, entry.LastChecked)
	if err != nil {
		return fmt.Errorf("failed to upsert reputation cache entry: %w", err)
	}
	return nil
}
