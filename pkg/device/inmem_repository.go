package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/device-trust/pkg/session"
)

// InMemDeviceRepository implements DeviceRepository using in-memory maps.
// Session rows are delegated to a session.Repository so the cascade and
// pairing semantics match the PostgreSQL implementation.
type InMemDeviceRepository struct {
	devices  map[uuid.UUID]Device
	sessions session.Repository
	mu       sync.Mutex
}

// NewInMemDeviceRepository creates a new in-memory device repository
// backed by the given session repository
func NewInMemDeviceRepository(sessions session.Repository) *InMemDeviceRepository {
	return &InMemDeviceRepository{
		devices:  make(map[uuid.UUID]Device),
		sessions: sessions,
	}
}

// CreateDeviceWithSession inserts the device and its first session
// together. On session creation failure the device insert is rolled back.
func (r *InMemDeviceRepository) CreateDeviceWithSession(ctx context.Context, dev Device, sess session.Session) (Device, session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if dev.ID == uuid.Nil {
		dev.ID = uuid.New()
	}
	if dev.TrustStatus == "" {
		dev.TrustStatus = TrustStatusPending
	}
	if dev.CreatedAt.IsZero() {
		dev.CreatedAt = now
	}
	if dev.LastUsedAt.IsZero() {
		dev.LastUsedAt = now
	}
	dev.UpdatedAt = now

	for _, existing := range r.devices {
		if existing.UserID == dev.UserID && existing.Fingerprint == dev.Fingerprint {
			return Device{}, session.Session{}, fmt.Errorf("device already registered for user %s", dev.UserID)
		}
	}

	r.devices[dev.ID] = dev

	sess.DeviceID = dev.ID
	sess.UserID = dev.UserID
	created, err := r.sessions.Create(ctx, sess)
	if err != nil {
		delete(r.devices, dev.ID)
		return Device{}, session.Session{}, fmt.Errorf("failed to create paired session: %w", err)
	}

	return dev, created, nil
}

// GetDeviceByID retrieves a device by its id
func (r *InMemDeviceRepository) GetDeviceByID(ctx context.Context, id uuid.UUID) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, exists := r.devices[id]
	if !exists {
		return Device{}, ErrDeviceNotFound
	}
	return dev, nil
}

// GetDeviceByUserAndFingerprint retrieves a user's device by fingerprint
func (r *InMemDeviceRepository) GetDeviceByUserAndFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, dev := range r.devices {
		if dev.UserID == userID && dev.Fingerprint == fingerprint {
			return dev, nil
		}
	}
	return Device{}, ErrDeviceNotFound
}

// FindActiveDevicesByUser returns the user's devices used at or after
// activeSince, most recently used first
func (r *InMemDeviceRepository) FindActiveDevicesByUser(ctx context.Context, userID uuid.UUID, activeSince time.Time) ([]Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var devices []Device
	for _, dev := range r.devices {
		if dev.UserID == userID && !dev.LastUsedAt.Before(activeSince) {
			devices = append(devices, dev)
		}
	}
	// insertion sort by last_used_at descending, device lists are tiny
	for i := 1; i < len(devices); i++ {
		for j := i; j > 0 && devices[j].LastUsedAt.After(devices[j-1].LastUsedAt); j-- {
			devices[j], devices[j-1] = devices[j-1], devices[j]
		}
	}
	return devices, nil
}

// CountActiveDevicesByUser counts the user's devices used at or after
// activeSince
func (r *InMemDeviceRepository) CountActiveDevicesByUser(ctx context.Context, userID uuid.UUID, activeSince time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, dev := range r.devices {
		if dev.UserID == userID && !dev.LastUsedAt.Before(activeSince) {
			count++
		}
	}
	return count, nil
}

// FindLeastRecentlyUsedDevice returns the user's device with the oldest
// last_used_at
func (r *InMemDeviceRepository) FindLeastRecentlyUsedDevice(ctx context.Context, userID uuid.UUID) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lru Device
	found := false
	for _, dev := range r.devices {
		if dev.UserID != userID {
			continue
		}
		if !found || dev.LastUsedAt.Before(lru.LastUsedAt) {
			lru = dev
			found = true
		}
	}
	if !found {
		return Device{}, ErrDeviceNotFound
	}
	return lru, nil
}

// UpdateDeviceActivity refreshes the device's last used timestamp.
// Monotonic; an older timestamp never rewinds the stored value.
func (r *InMemDeviceRepository) UpdateDeviceActivity(ctx context.Context, id uuid.UUID, at time.Time) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, exists := r.devices[id]
	if !exists {
		return Device{}, ErrDeviceNotFound
	}
	if at.After(dev.LastUsedAt) {
		dev.LastUsedAt = at
	}
	dev.UpdatedAt = time.Now().UTC()
	r.devices[id] = dev
	return dev, nil
}

// UpdateDeviceTrustStatus sets the device's trust lifecycle state
func (r *InMemDeviceRepository) UpdateDeviceTrustStatus(ctx context.Context, id uuid.UUID, status TrustStatus) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, exists := r.devices[id]
	if !exists {
		return Device{}, ErrDeviceNotFound
	}
	dev.TrustStatus = status
	dev.UpdatedAt = time.Now().UTC()
	r.devices[id] = dev
	return dev, nil
}

// UpdateDeviceRisk records the latest risk assessment on the device
func (r *InMemDeviceRepository) UpdateDeviceRisk(ctx context.Context, id uuid.UUID, riskScore int, ipReputation string) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, exists := r.devices[id]
	if !exists {
		return Device{}, ErrDeviceNotFound
	}
	dev.RiskScore = riskScore
	dev.IPReputation = ipReputation
	dev.UpdatedAt = time.Now().UTC()
	r.devices[id] = dev
	return dev, nil
}

// DeleteDevice removes the device and every session bound to it
func (r *InMemDeviceRepository) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[id]; !exists {
		return ErrDeviceNotFound
	}
	if _, err := r.sessions.DeleteByDevice(ctx, id); err != nil {
		return fmt.Errorf("failed to delete sessions for device: %w", err)
	}
	delete(r.devices, id)
	return nil
}
