package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by repositories when no session exists
// for the given id
var ErrSessionNotFound = errors.New("session not found")

// Session is a persisted authentication session. A session always
// references the device fingerprint record it was paired with at
// registration; a session never exists without its device.
type Session struct {
	ID           string    `json:"session_id"`
	UserID       uuid.UUID `json:"user_id"`
	DeviceID     uuid.UUID `json:"device_fingerprint_id"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
}

// IdleSince reports whether the session has been idle longer than the
// given window at the given time
func (s Session) IdleSince(now time.Time, window time.Duration) bool {
	return now.Sub(s.LastActivity) > window
}

// NewSessionID generates an opaque session token. The token carries no
// structure and cannot be derived from user or device identity.
func NewSessionID() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the process cannot do anything
		// security-relevant; fall back to a random UUID pair rather
		// than returning a predictable value
		return uuid.NewString() + uuid.NewString()
	}
	return hex.EncodeToString(buf)
}

// SessionSummary is a simplified session view for listing
type SessionSummary struct {
	ID           string    `json:"session_id"`
	DeviceID     uuid.UUID `json:"device_fingerprint_id"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	IsCurrent    bool      `json:"is_current_session"`
}
