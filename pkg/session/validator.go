package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/device-trust/pkg/errors"
	"github.com/tendant/device-trust/pkg/securitylog"
)

// DeviceChecker answers whether the device a session is bound to has been
// explicitly untrusted. Implemented by the device registry.
type DeviceChecker interface {
	IsDeviceUntrusted(ctx context.Context, deviceID uuid.UUID) (bool, error)
}

// BlacklistChecker answers whether a source address currently has a
// non-expired blacklist entry. Implemented by the ipblacklist service.
type BlacklistChecker interface {
	IsBlacklisted(ctx context.Context, ip string) (bool, error)
}

// ValidateParams carries the ambient request values the validator compares
// against the stored session
type ValidateParams struct {
	SessionID string
	IPAddress string
	UserAgent string
}

// Context is the per-request view of a validated session. It is loaded
// once per request and threaded through callers; the persisted row stays
// the single source of truth.
type Context struct {
	SessionID    string
	UserID       uuid.UUID
	DeviceID     uuid.UUID
	IPAddress    string
	UserAgent    string
	LastActivity time.Time
	CreatedAt    time.Time
}

// Validator owns the session lifecycle checks performed on every request.
//
// Checks run in a fixed order, each able to short-circuit:
//  1. IP blacklist
//  2. bound device trust
//  3. idle expiry (lazy delete on detection)
//  4. IP/user-agent drift (observed and logged, never blocking)
//
// Outcomes are structured errors carrying ErrCodeAuthenticationRequired
// or ErrCodeAccessRestricted so callers can branch deterministically.
type Validator struct {
	repo        Repository
	devices     DeviceChecker
	blacklist   BlacklistChecker
	securityLog *securitylog.Service
	idleTimeout time.Duration
}

// NewValidator creates a session validator
func NewValidator(repo Repository, devices DeviceChecker, blacklist BlacklistChecker, securityLog *securitylog.Service, idleTimeout time.Duration) *Validator {
	return &Validator{
		repo:        repo,
		devices:     devices,
		blacklist:   blacklist,
		securityLog: securityLog,
		idleTimeout: idleTimeout,
	}
}

// Validate runs the ordered checks for a request and, on success,
// refreshes the session's activity timestamp (sliding expiry) and returns
// the request-scoped session context.
func (v *Validator) Validate(ctx context.Context, params ValidateParams) (*Context, error) {
	blocked, err := v.blacklist.IsBlacklisted(ctx, params.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to check ip blacklist: %w", err)
	}
	if blocked {
		slog.Info("rejected request from blacklisted ip", "ip", params.IPAddress)
		v.securityLog.Log(ctx, securitylog.Event{
			Action:      securitylog.ActionBlacklistReject,
			Description: "request rejected: source ip is blacklisted",
			IPAddress:   params.IPAddress,
			UserAgent:   params.UserAgent,
		})
		return nil, errors.AccessRestricted("source address is blocked")
	}

	if params.SessionID == "" {
		return nil, errors.AuthenticationRequired("no session")
	}

	sess, err := v.repo.GetByID(ctx, params.SessionID)
	if err != nil {
		if err == ErrSessionNotFound {
			return nil, errors.AuthenticationRequired("unknown session")
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	untrusted, err := v.devices.IsDeviceUntrusted(ctx, sess.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to check device trust: %w", err)
	}
	if untrusted {
		slog.Info("rejected session bound to untrusted device", "deviceID", sess.DeviceID, "userID", sess.UserID)
		v.securityLog.Log(ctx, securitylog.Event{
			UserID:      &sess.UserID,
			Action:      securitylog.ActionUntrustedReject,
			Description: "request rejected: session device is untrusted",
			IPAddress:   params.IPAddress,
			UserAgent:   params.UserAgent,
		})
		return nil, errors.AccessRestricted("device is untrusted")
	}

	now := time.Now().UTC()
	if sess.IdleSince(now, v.idleTimeout) {
		// Lazy GC: the expired row is removed the moment expiry is
		// observed, not by a background sweep.
		if err := v.repo.Delete(ctx, sess.ID); err != nil && err != ErrSessionNotFound {
			return nil, fmt.Errorf("failed to delete expired session: %w", err)
		}
		v.securityLog.Log(ctx, securitylog.Event{
			UserID:      &sess.UserID,
			Action:      securitylog.ActionSessionExpired,
			Description: "session expired after inactivity",
			IPAddress:   params.IPAddress,
			UserAgent:   params.UserAgent,
		})
		return nil, errors.New(errors.ErrCodeAuthenticationRequired, "session expired")
	}

	v.observeDrift(ctx, sess, params)

	if err := v.repo.UpdateActivity(ctx, sess.ID, now); err != nil {
		return nil, fmt.Errorf("failed to refresh session activity: %w", err)
	}

	return &Context{
		SessionID:    sess.ID,
		UserID:       sess.UserID,
		DeviceID:     sess.DeviceID,
		IPAddress:    sess.IPAddress,
		UserAgent:    sess.UserAgent,
		LastActivity: now,
		CreatedAt:    sess.CreatedAt,
	}, nil
}

// observeDrift records IP or user-agent changes against the stored
// session. Drift is a soft signal: it is logged for investigation but
// does not block the request.
func (v *Validator) observeDrift(ctx context.Context, sess Session, params ValidateParams) {
	ipChanged := params.IPAddress != "" && params.IPAddress != sess.IPAddress
	uaChanged := params.UserAgent != "" && params.UserAgent != sess.UserAgent
	if !ipChanged && !uaChanged {
		return
	}

	slog.Warn("session drift detected",
		"sessionUserID", sess.UserID,
		"storedIP", sess.IPAddress, "requestIP", params.IPAddress,
		"uaChanged", uaChanged)
	v.securityLog.Log(ctx, securitylog.Event{
		UserID: &sess.UserID,
		Action: securitylog.ActionSessionDrift,
		Description: fmt.Sprintf("session drift: ip_changed=%t ua_changed=%t (stored ip %s)",
			ipChanged, uaChanged, sess.IPAddress),
		IPAddress: params.IPAddress,
		UserAgent: params.UserAgent,
	})
}
