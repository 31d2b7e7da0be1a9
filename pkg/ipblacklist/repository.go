package ipblacklist

import (
	"context"
	"time"
)

// Entry is a blacklisted IP address. A nil ExpiresAt means the entry
// never expires; an entry past its ExpiresAt no longer blocks anything
// but is not eagerly purged.
type Entry struct {
	IPAddress string     `json:"ip_address"`
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Active reports whether the entry still blocks requests at the given time
func (e Entry) Active(now time.Time) bool {
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// Repository defines the interface for blacklist storage operations
type Repository interface {
	Get(ctx context.Context, ip string) (Entry, error)
	Add(ctx context.Context, entry Entry) error
	Remove(ctx context.Context, ip string) error
}
