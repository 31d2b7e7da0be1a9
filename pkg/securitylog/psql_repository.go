package securitylog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/device-trust/pkg/utils"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL security log repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

// Create appends a security event
func (r *PostgresRepository) Create(ctx context.Context, event Event) error {
	query := `
		INSERT INTO security_logs (
			id, user_id, action, description, ip_address, user_agent, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		utils.ToNullUUID(event.UserID),
		event.Action,
		event.Description,
		utils.ToNullString(event.IPAddress),
		utils.ToNullString(event.UserAgent),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create security log: %w", err)
	}

	return nil
}
