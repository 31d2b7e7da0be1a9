package securitylog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the trust engine. The audit store is shared with the
// surrounding application, so action names are stable identifiers.
const (
	ActionDeviceRegistered = "device_registered"
	ActionDeviceTrusted    = "device_trusted"
	ActionDeviceUntrusted  = "device_untrusted"
	ActionDeviceRemoved    = "device_removed"
	ActionDeviceEvicted    = "device_evicted"
	ActionSessionRevoked   = "session_revoked"
	ActionSessionExpired   = "session_expired"
	ActionSessionDrift     = "session_drift"
	ActionBlacklistReject  = "ip_blacklist_reject"
	ActionUntrustedReject  = "untrusted_device_reject"
)

// Event is a single append-only security log entry. UserID is nil for
// events that cannot be attributed to a user (e.g. blacklist rejections
// of unauthenticated requests).
type Event struct {
	ID          uuid.UUID  `json:"id"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	Action      string     `json:"action"`
	Description string     `json:"description"`
	IPAddress   string     `json:"ip_address"`
	UserAgent   string     `json:"user_agent"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Repository defines the interface for the append-only audit store.
// The trust engine only ever writes; reading is owned by the surrounding
// application.
type Repository interface {
	Create(ctx context.Context, event Event) error
}
