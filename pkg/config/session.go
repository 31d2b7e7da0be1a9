package config

import "time"

// SessionConfig contains session validation settings.
// Fields have no env tags - populate manually or use NewSessionConfigFromEnv() for standard env var names.
type SessionConfig struct {
	// IdleTimeout is the sliding inactivity window. A session whose
	// last_activity is older than this is deleted on next validation.
	IdleTimeout time.Duration
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		IdleTimeout: 30 * time.Minute,
	}
}

// NewSessionConfigFromEnv loads SessionConfig from standard environment variables.
//
// Environment variables:
//   - SESSION_IDLE_TIMEOUT: Sliding inactivity window (default: 30m)
func NewSessionConfigFromEnv() SessionConfig {
	return SessionConfig{
		IdleTimeout: GetEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
	}
}
