package device

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/device-trust/pkg/session"
)

// ErrDeviceNotFound is returned by repositories when no device exists
// for the given lookup
var ErrDeviceNotFound = errors.New("device not found")

// TrustStatus is the trust lifecycle state of a registered device
type TrustStatus string

const (
	TrustStatusPending   TrustStatus = "pending"
	TrustStatusTrusted   TrustStatus = "trusted"
	TrustStatusUntrusted TrustStatus = "untrusted"
)

// Valid reports whether the status is one of the known lifecycle states
func (s TrustStatus) Valid() bool {
	switch s {
	case TrustStatusPending, TrustStatusTrusted, TrustStatusUntrusted:
		return true
	}
	return false
}

// Device is a fingerprinted device registered to a user. The
// (user_id, fingerprint) pair is unique; the same physical device used by
// two users produces two independent records with independent trust.
type Device struct {
	ID           uuid.UUID   `json:"id"`
	UserID       uuid.UUID   `json:"user_id"`
	Fingerprint  string      `json:"fingerprint"`
	UserAgent    string      `json:"user_agent"`
	TrustStatus  TrustStatus `json:"trust_status"`
	RiskScore    int         `json:"risk_score"`
	IPReputation string      `json:"ip_reputation"`
	LastUsedAt   time.Time   `json:"last_used_at"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// ActiveSince reports whether the device has been used within the active
// window ending at now
func (d Device) ActiveSince(now time.Time, window time.Duration) bool {
	return now.Sub(d.LastUsedAt) <= window
}

// DeviceRepository defines the interface for device storage operations.
// Devices and their sessions live in the same store so that registration
// can pair them atomically and deletion can cascade.
type DeviceRepository interface {
	// CreateDeviceWithSession inserts the device and its first session as
	// one atomic operation. Neither row is visible without the other.
	CreateDeviceWithSession(ctx context.Context, dev Device, sess session.Session) (Device, session.Session, error)

	GetDeviceByID(ctx context.Context, id uuid.UUID) (Device, error)
	GetDeviceByUserAndFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (Device, error)

	// FindActiveDevicesByUser returns the user's devices used at or after
	// activeSince, most recently used first.
	FindActiveDevicesByUser(ctx context.Context, userID uuid.UUID, activeSince time.Time) ([]Device, error)
	CountActiveDevicesByUser(ctx context.Context, userID uuid.UUID, activeSince time.Time) (int64, error)

	// FindLeastRecentlyUsedDevice returns the user's device with the
	// oldest last_used_at, the eviction victim when the cap is reached.
	FindLeastRecentlyUsedDevice(ctx context.Context, userID uuid.UUID) (Device, error)

	UpdateDeviceActivity(ctx context.Context, id uuid.UUID, at time.Time) (Device, error)
	UpdateDeviceTrustStatus(ctx context.Context, id uuid.UUID, status TrustStatus) (Device, error)
	UpdateDeviceRisk(ctx context.Context, id uuid.UUID, riskScore int, ipReputation string) (Device, error)

	// DeleteDevice removes the device and every session bound to it
	DeleteDevice(ctx context.Context, id uuid.UUID) error
}
