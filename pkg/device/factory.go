package device

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/device-trust/pkg/session"
)

// RepositoryConfig contains configuration for creating a device repository
type RepositoryConfig struct {
	// Pool is required for PostgreSQL repositories
	Pool *pgxpool.Pool
	// Sessions is required for in-memory repositories, which delegate
	// session rows to a session repository
	Sessions session.Repository
}

// NewDeviceRepository creates a new device repository based on the
// persistence type
func NewDeviceRepository(persistenceType string, config RepositoryConfig) (DeviceRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.Pool == nil {
			return nil, fmt.Errorf("pool required for postgres repository")
		}
		return NewPostgresDeviceRepository(config.Pool), nil
	case "memory", "inmem":
		if config.Sessions == nil {
			return nil, fmt.Errorf("session repository required for in-memory repository")
		}
		return NewInMemDeviceRepository(config.Sessions), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, memory)", persistenceType)
	}
}
