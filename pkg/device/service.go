package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/device-trust/pkg/config"
	"github.com/tendant/device-trust/pkg/errors"
	"github.com/tendant/device-trust/pkg/securitylog"
	"github.com/tendant/device-trust/pkg/session"
)

// RegisterDeviceParams carries the inputs for a device registration
type RegisterDeviceParams struct {
	UserID      uuid.UUID
	Fingerprint string
	UserAgent   string
	IPAddress   string
}

// DeviceService handles device registration, trust lifecycle and the
// per-user active device cap
type DeviceService struct {
	repo        DeviceRepository
	sessions    session.Repository
	securityLog *securitylog.Service
	cfg         config.DeviceConfig

	// per-user locks serialize registration so concurrent registrations
	// cannot overshoot the device cap
	userLocks map[uuid.UUID]*sync.Mutex
	locksMu   sync.Mutex
}

// NewDeviceService creates a new device service with the given
// repositories
func NewDeviceService(repo DeviceRepository, sessions session.Repository, securityLog *securitylog.Service, cfg config.DeviceConfig) *DeviceService {
	return &DeviceService{
		repo:        repo,
		sessions:    sessions,
		securityLog: securityLog,
		cfg:         cfg,
		userLocks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *DeviceService) userLock(userID uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, exists := s.userLocks[userID]
	if !exists {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

// RegisterDevice registers a device for a user and returns the device
// together with a freshly created session paired to it.
//
// A fingerprint already registered to the user refreshes that device's
// activity and keeps its trust status. A new fingerprint creates the
// device in pending status; if the user is at the active device cap the
// least recently used device is evicted first, along with its sessions.
func (s *DeviceService) RegisterDevice(ctx context.Context, params RegisterDeviceParams) (Device, session.Session, error) {
	if params.Fingerprint == "" {
		return Device{}, session.Session{}, errors.InvalidInput("fingerprint", "must not be empty")
	}

	lock := s.userLock(params.UserID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()

	existing, err := s.repo.GetDeviceByUserAndFingerprint(ctx, params.UserID, params.Fingerprint)
	if err == nil {
		slog.Info("device already registered, refreshing activity",
			"userID", params.UserID, "deviceID", existing.ID, "trustStatus", existing.TrustStatus)
		updated, err := s.repo.UpdateDeviceActivity(ctx, existing.ID, now)
		if err != nil {
			return Device{}, session.Session{}, fmt.Errorf("failed to update device activity: %w", err)
		}
		return s.createSessionForDevice(ctx, updated, params)
	}
	if err != ErrDeviceNotFound {
		return Device{}, session.Session{}, fmt.Errorf("failed to look up device: %w", err)
	}

	activeSince := now.Add(-s.cfg.ActiveWindow)
	count, err := s.repo.CountActiveDevicesByUser(ctx, params.UserID, activeSince)
	if err != nil {
		return Device{}, session.Session{}, fmt.Errorf("failed to count active devices: %w", err)
	}

	if count >= int64(s.cfg.MaxDevicesPerUser) {
		if err := s.evictLeastRecentlyUsed(ctx, params.UserID); err != nil {
			return Device{}, session.Session{}, err
		}
	}

	slog.Info("registering new device", "userID", params.UserID)
	dev := Device{
		UserID:      params.UserID,
		Fingerprint: params.Fingerprint,
		UserAgent:   params.UserAgent,
		TrustStatus: TrustStatusPending,
	}
	sess := session.Session{
		IPAddress: params.IPAddress,
		UserAgent: params.UserAgent,
	}
	createdDev, createdSess, err := s.repo.CreateDeviceWithSession(ctx, dev, sess)
	if err != nil {
		return Device{}, session.Session{}, fmt.Errorf("failed to register device: %w", err)
	}

	s.securityLog.Log(ctx, securitylog.Event{
		UserID:      &params.UserID,
		Action:      securitylog.ActionDeviceRegistered,
		Description: "new device registered in pending status",
		IPAddress:   params.IPAddress,
		UserAgent:   params.UserAgent,
	})
	return createdDev, createdSess, nil
}

// createSessionForDevice pairs a new session with an already registered
// device. Only used on re-registration; first registration pairs
// atomically in the repository.
func (s *DeviceService) createSessionForDevice(ctx context.Context, dev Device, params RegisterDeviceParams) (Device, session.Session, error) {
	sess := session.Session{
		UserID:    dev.UserID,
		DeviceID:  dev.ID,
		IPAddress: params.IPAddress,
		UserAgent: params.UserAgent,
	}
	created, err := s.sessions.Create(ctx, sess)
	if err != nil {
		return Device{}, session.Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	return dev, created, nil
}

func (s *DeviceService) evictLeastRecentlyUsed(ctx context.Context, userID uuid.UUID) error {
	victim, err := s.repo.FindLeastRecentlyUsedDevice(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find eviction victim: %w", err)
	}

	slog.Info("evicting least recently used device",
		"userID", userID, "deviceID", victim.ID, "lastUsedAt", victim.LastUsedAt.Format(time.RFC3339))
	if err := s.repo.DeleteDevice(ctx, victim.ID); err != nil {
		return fmt.Errorf("failed to evict device: %w", err)
	}

	s.securityLog.Log(ctx, securitylog.Event{
		UserID:      &userID,
		Action:      securitylog.ActionDeviceEvicted,
		Description: fmt.Sprintf("device evicted to stay under the cap of %d active devices", s.cfg.MaxDevicesPerUser),
		UserAgent:   victim.UserAgent,
	})
	return nil
}

// ListActiveDevices returns the user's devices used within the active
// window, most recently used first
func (s *DeviceService) ListActiveDevices(ctx context.Context, userID uuid.UUID) ([]Device, error) {
	activeSince := time.Now().UTC().Add(-s.cfg.ActiveWindow)
	devices, err := s.repo.FindActiveDevicesByUser(ctx, userID, activeSince)
	if err != nil {
		return nil, fmt.Errorf("failed to find devices: %w", err)
	}
	return devices, nil
}

// GetDevice returns one of the user's devices. A device owned by another
// user is reported as not found.
func (s *DeviceService) GetDevice(ctx context.Context, userID, deviceID uuid.UUID) (Device, error) {
	dev, err := s.repo.GetDeviceByID(ctx, deviceID)
	if err != nil {
		if err == ErrDeviceNotFound {
			return Device{}, errors.New(errors.ErrCodeDeviceNotFound, "device not found")
		}
		return Device{}, fmt.Errorf("failed to get device: %w", err)
	}
	if dev.UserID != userID {
		return Device{}, errors.New(errors.ErrCodeDeviceNotFound, "device not found")
	}
	return dev, nil
}

// TrustDevice marks one of the user's devices as trusted
func (s *DeviceService) TrustDevice(ctx context.Context, userID, deviceID uuid.UUID) (Device, error) {
	return s.setTrustStatus(ctx, userID, deviceID, TrustStatusTrusted, securitylog.ActionDeviceTrusted)
}

// UntrustDevice marks one of the user's devices as untrusted. Sessions
// bound to the device are rejected on their next validation.
func (s *DeviceService) UntrustDevice(ctx context.Context, userID, deviceID uuid.UUID) (Device, error) {
	return s.setTrustStatus(ctx, userID, deviceID, TrustStatusUntrusted, securitylog.ActionDeviceUntrusted)
}

func (s *DeviceService) setTrustStatus(ctx context.Context, userID, deviceID uuid.UUID, status TrustStatus, action string) (Device, error) {
	dev, err := s.GetDevice(ctx, userID, deviceID)
	if err != nil {
		return Device{}, err
	}

	updated, err := s.repo.UpdateDeviceTrustStatus(ctx, dev.ID, status)
	if err != nil {
		return Device{}, fmt.Errorf("failed to update trust status: %w", err)
	}

	slog.Info("device trust status changed", "userID", userID, "deviceID", deviceID, "status", status)
	s.securityLog.Log(ctx, securitylog.Event{
		UserID:      &userID,
		Action:      action,
		Description: fmt.Sprintf("device trust status set to %s", status),
		UserAgent:   dev.UserAgent,
	})
	return updated, nil
}

// RemoveDevice deletes one of the user's devices and every session bound
// to it
func (s *DeviceService) RemoveDevice(ctx context.Context, userID, deviceID uuid.UUID) error {
	dev, err := s.GetDevice(ctx, userID, deviceID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteDevice(ctx, dev.ID); err != nil && err != ErrDeviceNotFound {
		return fmt.Errorf("failed to remove device: %w", err)
	}

	slog.Info("device removed", "userID", userID, "deviceID", deviceID)
	s.securityLog.Log(ctx, securitylog.Event{
		UserID:      &userID,
		Action:      securitylog.ActionDeviceRemoved,
		Description: "device removed by user",
		UserAgent:   dev.UserAgent,
	})
	return nil
}

// RecordAssessment persists a risk assessment on the device record
func (s *DeviceService) RecordAssessment(ctx context.Context, deviceID uuid.UUID, riskScore int, ipReputation string) (Device, error) {
	updated, err := s.repo.UpdateDeviceRisk(ctx, deviceID, riskScore, ipReputation)
	if err != nil {
		if err == ErrDeviceNotFound {
			return Device{}, errors.New(errors.ErrCodeDeviceNotFound, "device not found")
		}
		return Device{}, fmt.Errorf("failed to record assessment: %w", err)
	}
	return updated, nil
}

// IsDeviceUntrusted reports whether the device has been explicitly
// untrusted. A missing device record fails closed: the session cascade
// should make this unreachable, but if it happens the session is blocked.
func (s *DeviceService) IsDeviceUntrusted(ctx context.Context, deviceID uuid.UUID) (bool, error) {
	dev, err := s.repo.GetDeviceByID(ctx, deviceID)
	if err != nil {
		if err == ErrDeviceNotFound {
			return true, nil
		}
		return false, fmt.Errorf("failed to get device: %w", err)
	}
	return dev.TrustStatus == TrustStatusUntrusted, nil
}
