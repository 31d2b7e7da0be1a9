package config

import "time"

// DeviceConfig contains device registry settings.
// Fields have no env tags - populate manually or use NewDeviceConfigFromEnv() for standard env var names.
type DeviceConfig struct {
	// MaxDevicesPerUser is the cap on active devices per user. When a new
	// fingerprint would exceed it, the least recently used device is evicted.
	MaxDevicesPerUser int

	// ActiveWindow is how long since last use a device still counts as
	// active for cap accounting and listing.
	ActiveWindow time.Duration
}

// DefaultDeviceConfig returns a DeviceConfig with sensible defaults
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		MaxDevicesPerUser: 10,
		ActiveWindow:      90 * 24 * time.Hour,
	}
}

// NewDeviceConfigFromEnv loads DeviceConfig from standard environment variables.
//
// Environment variables:
//   - DEVICE_MAX_PER_USER: Active device cap per user (default: 10)
//   - DEVICE_ACTIVE_WINDOW: Activity window for cap accounting (default: 2160h)
func NewDeviceConfigFromEnv() DeviceConfig {
	return DeviceConfig{
		MaxDevicesPerUser: GetEnvInt("DEVICE_MAX_PER_USER", 10),
		ActiveWindow:      GetEnvDuration("DEVICE_ACTIVE_WINDOW", 90*24*time.Hour),
	}
}
