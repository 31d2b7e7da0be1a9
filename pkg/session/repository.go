package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for session storage operations
type Repository interface {
	Create(ctx context.Context, session Session) (Session, error)
	GetByID(ctx context.Context, id string) (Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Session, error)
	UpdateActivity(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error

	// DeleteByDevice removes every session bound to a device. Used for
	// the cascade when a device is removed or evicted.
	DeleteByDevice(ctx context.Context, deviceID uuid.UUID) (int64, error)

	// DeleteAllByUser removes all of a user's sessions, optionally
	// sparing one (the caller's current session). exceptID may be empty.
	DeleteAllByUser(ctx context.Context, userID uuid.UUID, exceptID string) (int64, error)

	// DeleteIdleBefore removes sessions whose last_activity is older than
	// the cutoff. Maintenance helper; expiry detection itself is lazy.
	DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
