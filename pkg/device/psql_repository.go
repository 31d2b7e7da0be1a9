package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/device-trust/pkg/session"
)

const deviceColumns = `
	id, user_id, fingerprint, user_agent, trust_status, risk_score, ip_reputation, last_used_at, created_at, updated_at
`

// PostgresDeviceRepository implements DeviceRepository using PostgreSQL
type PostgresDeviceRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresDeviceRepository creates a new PostgreSQL device repository
func NewPostgresDeviceRepository(pool *pgxpool.Pool) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{
		pool: pool,
	}
}

func scanDevice(row pgx.Row) (Device, error) {
	var dev Device
	err := row.Scan(
		&dev.ID,
		&dev.UserID,
		&dev.Fingerprint,
		&dev.UserAgent,
		&dev.TrustStatus,
		&dev.RiskScore,
		&dev.IPReputation,
		&dev.LastUsedAt,
		&dev.CreatedAt,
		&dev.UpdatedAt,
	)
	return dev, err
}

// CreateDeviceWithSession inserts the device and its first session in a
// single transaction. Neither row is committed without the other.
func (r *PostgresDeviceRepository) CreateDeviceWithSession(ctx context.Context, dev Device, sess session.Session) (Device, session.Session, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Device{}, session.Session{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if dev.ID == uuid.Nil {
		dev.ID = uuid.New()
	}
	if dev.TrustStatus == "" {
		dev.TrustStatus = TrustStatusPending
	}

	deviceQuery := `
		INSERT INTO device_fingerprints (
			id, user_id, fingerprint, user_agent, trust_status, risk_score, ip_reputation, last_used_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW(), NOW(), NOW()
		) RETURNING` + deviceColumns

	created, err := scanDevice(tx.QueryRow(ctx, deviceQuery,
		dev.ID,
		dev.UserID,
		dev.Fingerprint,
		dev.UserAgent,
		dev.TrustStatus,
		dev.RiskScore,
		dev.IPReputation,
	))
	if err != nil {
		return Device{}, session.Session{}, fmt.Errorf("failed to create device: %w", err)
	}

	if sess.ID == "" {
		sess.ID = session.NewSessionID()
	}
	sessionQuery := `
		INSERT INTO sessions (
			session_id, user_id, device_fingerprint_id, ip_address, user_agent, last_activity, created_at
		) VALUES (
			$1, $2, $3, $4, $5, NOW(), NOW()
		) RETURNING
			session_id, user_id, device_fingerprint_id, ip_address, user_agent, last_activity, created_at
	`

	var createdSess session.Session
	err = tx.QueryRow(ctx, sessionQuery,
		sess.ID,
		created.UserID,
		created.ID,
		sess.IPAddress,
		sess.UserAgent,
	).Scan(
		&createdSess.ID,
		&createdSess.UserID,
		&createdSess.DeviceID,
		&createdSess.IPAddress,
		&createdSess.UserAgent,
		&createdSess.LastActivity,
		&createdSess.CreatedAt,
	)
	if err != nil {
		return Device{}, session.Session{}, fmt.Errorf("failed to create paired session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Device{}, session.Session{}, fmt.Errorf("failed to commit device registration: %w", err)
	}

	return created, createdSess, nil
}

// GetDeviceByID retrieves a device by its id
func (r *PostgresDeviceRepository) GetDeviceByID(ctx context.Context, id uuid.UUID) (Device, error) {
	query := `SELECT` + deviceColumns + `FROM device_fingerprints WHERE id = $1`

	dev, err := scanDevice(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrDeviceNotFound
		}
		return Device{}, fmt.Errorf("failed to get device: %w", err)
	}
	return dev, nil
}

// GetDeviceByUserAndFingerprint retrieves a user's device by fingerprint
func (r *PostgresDeviceRepository) GetDeviceByUserAndFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (Device, error) {
	query := `SELECT` + deviceColumns + `FROM device_fingerprints WHERE user_id = $1 AND fingerprint = $2`

	dev, err := scanDevice(r.pool.QueryRow(ctx, query, userID, fingerprint))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrDeviceNotFound
		}
		return Device{}, fmt.Errorf("failed to get device: %w", err)
	}
	return dev, nil
}

// FindActiveDevicesByUser returns the user's devices used at or after
// activeSince, most recently used first
func (r *PostgresDeviceRepository) FindActiveDevicesByUser(ctx context.Context, userID uuid.UUID, activeSince time.Time) ([]Device, error) {
	query := `
		SELECT` + deviceColumns + `
		FROM device_fingerprints
		WHERE user_id = $1
		  AND last_used_at >= $2
		ORDER BY last_used_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID, activeSince)
	if err != nil {
		return nil, fmt.Errorf("failed to find devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		dev, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, dev)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating devices: %w", rows.Err())
	}
	return devices, nil
}

// CountActiveDevicesByUser counts the user's devices used at or after
// activeSince
func (r *PostgresDeviceRepository) CountActiveDevicesByUser(ctx context.Context, userID uuid.UUID, activeSince time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM device_fingerprints
		WHERE user_id = $1
		  AND last_used_at >= $2
	`

	var count int64
	if err := r.pool.QueryRow(ctx, query, userID, activeSince).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return count, nil
}

// FindLeastRecentlyUsedDevice returns the user's device with the oldest
// last_used_at
func (r *PostgresDeviceRepository) FindLeastRecentlyUsedDevice(ctx context.Context, userID uuid.UUID) (Device, error) {
	query := `
		SELECT` + deviceColumns + `
		FROM device_fingerprints
		WHERE user_id = $1
		ORDER BY last_used_at ASC
		LIMIT 1
	`

	dev, err := scanDevice(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrDeviceNotFound
		}
		return Device{}, fmt.Errorf("failed to find least recently used device: %w", err)
	}
	return dev, nil
}

// UpdateDeviceActivity refreshes the device's last used timestamp. The
// GREATEST guard keeps it monotonic under concurrent updates.
func (r *PostgresDeviceRepository) UpdateDeviceActivity(ctx context.Context, id uuid.UUID, at time.Time) (Device, error) {
	query := `
		UPDATE device_fingerprints
		SET last_used_at = GREATEST(last_used_at, $2),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING` + deviceColumns

	dev, err := scanDevice(r.pool.QueryRow(ctx, query, id, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrDeviceNotFound
		}
		return Device{}, fmt.Errorf("failed to update device activity: %w", err)
	}
	return dev, nil
}

// UpdateDeviceTrustStatus sets the device's trust lifecycle state
func (r *PostgresDeviceRepository) UpdateDeviceTrustStatus(ctx context.Context, id uuid.UUID, status TrustStatus) (Device, error) {
	query := `
		UPDATE device_fingerprints
		SET trust_status = $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING` + deviceColumns

	dev, err := scanDevice(r.pool.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrDeviceNotFound
		}
		return Device{}, fmt.Errorf("failed to update device trust status: %w", err)
	}
	return dev, nil
}

// UpdateDeviceRisk records the latest risk assessment on the device
func (r *PostgresDeviceRepository) UpdateDeviceRisk(ctx context.Context, id uuid.UUID, riskScore int, ipReputation string) (Device, error) {
	query := `
		UPDATE device_fingerprints
		SET risk_score = $2,
		    ip_reputation = $3,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING` + deviceColumns

	dev, err := scanDevice(r.pool.QueryRow(ctx, query, id, riskScore, ipReputation))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrDeviceNotFound
		}
		return Device{}, fmt.Errorf("failed to update device risk: %w", err)
	}
	return dev, nil
}

// DeleteDevice removes the device and every session bound to it in a
// single transaction
func (r *PostgresDeviceRepository) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE device_fingerprint_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete sessions for device: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM device_fingerprints WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit device deletion: %w", err)
	}
	return nil
}
