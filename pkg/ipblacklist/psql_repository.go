package ipblacklist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL blacklist repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

// Get retrieves a blacklist entry by IP
func (r *PostgresRepository) Get(ctx context.Context, ip string) (Entry, error) {
	query := `
		SELECT ip_address, reason, expires_at
		FROM ip_blacklist
		WHERE ip_address = $1
	`

	var entry Entry
	var expiresAt sql.NullTime
	err := r.pool.QueryRow(ctx, query, ip).Scan(
		&entry.IPAddress,
		&entry.Reason,
		&expiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotBlacklisted
		}
		return Entry{}, fmt.Errorf("failed to get blacklist entry: %w", err)
	}

	if expiresAt.Valid {
		entry.ExpiresAt = &expiresAt.Time
	}
	return entry, nil
}

// Add adds or replaces a blacklist entry
func (r *PostgresRepository) Add(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO ip_blacklist (ip_address, reason, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (ip_address)
		DO UPDATE SET reason = EXCLUDED.reason, expires_at = EXCLUDED.expires_at
	`

	_, err := r.pool.Exec(ctx, query, entry.IPAddress, entry.Reason, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to add blacklist entry: %w", err)
	}
	return nil
}

// Remove deletes a blacklist entry
func (r *PostgresRepository) Remove(ctx context.Context, ip string) error {
	query := `
		DELETE FROM ip_blacklist
		WHERE ip_address = $1
	`

	_, err := r.pool.Exec(ctx, query, ip)
	if err != nil {
		return fmt.Errorf("failed to remove blacklist entry: %w", err)
	}
	return nil
}
