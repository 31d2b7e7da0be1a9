package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL session repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

// Create stores a new session
func (r *PostgresRepository) Create(ctx context.Context, session Session) (Session, error) {
	if session.ID == "" {
		session.ID = NewSessionID()
	}

	query := `
		INSERT INTO sessions (
			session_id, user_id, device_fingerprint_id, ip_address, user_agent, last_activity, created_at
		) VALUES (
			$1, $2, $3, $4, $5, NOW(), NOW()
		) RETURNING
			session_id, user_id, device_fingerprint_id, ip_address, user_agent, last_activity, created_at
	`

	var created Session
	err := r.pool.QueryRow(ctx, query,
		session.ID,
		session.UserID,
		session.DeviceID,
		session.IPAddress,
		session.UserAgent,
	).Scan(
		&created.ID,
		&created.UserID,
		&created.DeviceID,
		&created.IPAddress,
		&created.UserAgent,
		&created.LastActivity,
		&created.CreatedAt,
	)
	if err != nil {
		return Session{}, fmt.Errorf("failed to create session: %w", err)
	}

	return created, nil
}

// GetByID retrieves a session by its id
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Session, error) {
	query := `
		SELECT session_id, user_id, device_fingerprint_id, ip_address, user_agent, last_activity, created_at
		FROM sessions
		WHERE session_id = $1
	`

	var session Session
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.DeviceID,
		&session.IPAddress,
		&session.UserAgent,
		&session.LastActivity,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// ListByUser returns all sessions belonging to a user
func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	query := `
		SELECT session_id, user_id, device_fingerprint_id, ip_address, user_agent, last_activity, created_at
		FROM sessions
		WHERE user_id = $1
		ORDER BY last_activity DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var session Session
		err := rows.Scan(
			&session.ID,
			&session.UserID,
			&session.DeviceID,
			&session.IPAddress,
			&session.UserAgent,
			&session.LastActivity,
			&session.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", rows.Err())
	}

	return sessions, nil
}

// UpdateActivity refreshes the last activity timestamp. The GREATEST
// guard keeps the refresh monotonic under concurrent validations.
func (r *PostgresRepository) UpdateActivity(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE sessions
		SET last_activity = GREATEST(last_activity, $2)
		WHERE session_id = $1
	`

	_, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to update session activity: %w", err)
	}
	return nil
}

// Delete removes a session
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM sessions
		WHERE session_id = $1
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteByDevice removes every session bound to a device
func (r *PostgresRepository) DeleteByDevice(ctx context.Context, deviceID uuid.UUID) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE device_fingerprint_id = $1
	`

	result, err := r.pool.Exec(ctx, query, deviceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions for device: %w", err)
	}
	return result.RowsAffected(), nil
}

// DeleteAllByUser removes all of a user's sessions except the given one
func (r *PostgresRepository) DeleteAllByUser(ctx context.Context, userID uuid.UUID, exceptID string) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE user_id = $1
		  AND session_id != $2
	`

	result, err := r.pool.Exec(ctx, query, userID, exceptID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions for user: %w", err)
	}
	return result.RowsAffected(), nil
}

// DeleteIdleBefore removes sessions idle since before the cutoff
func (r *PostgresRepository) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE last_activity < $1
	`

	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete idle sessions: %w", err)
	}
	return result.RowsAffected(), nil
}
