package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/tendant/device-trust/pkg/errors"
	"github.com/tendant/device-trust/pkg/securitylog"
)

// Service provides session management operations on top of a Repository
type Service struct {
	repo        Repository
	securityLog *securitylog.Service
	idleTimeout time.Duration
}

// NewService creates a session service
func NewService(repo Repository, securityLog *securitylog.Service, idleTimeout time.Duration) *Service {
	return &Service{
		repo:        repo,
		securityLog: securityLog,
		idleTimeout: idleTimeout,
	}
}

// ListSessions returns summaries of the user's sessions, most recently
// active first. Sessions already past the idle window are filtered out of
// the listing but left for lazy deletion on their next validation.
func (s *Service) ListSessions(ctx context.Context, userID uuid.UUID, currentSessionID string) ([]SessionSummary, error) {
	sessions, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	now := time.Now().UTC()
	summaries := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		if sess.IdleSince(now, s.idleTimeout) {
			continue
		}
		var summary SessionSummary
		if err := copier.Copy(&summary, &sess); err != nil {
			return nil, fmt.Errorf("failed to map session: %w", err)
		}
		summary.IsCurrent = sess.ID == currentSessionID
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// RevokeSession deletes one of the user's sessions. Revoking a session
// belonging to another user is reported as not found, never as a
// permission hint.
func (s *Service) RevokeSession(ctx context.Context, userID uuid.UUID, sessionID string) error {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		if err == ErrSessionNotFound {
			return errors.New(errors.ErrCodeSessionNotFound, "session not found")
		}
		return fmt.Errorf("failed to load session: %w", err)
	}
	if sess.UserID != userID {
		return errors.New(errors.ErrCodeSessionNotFound, "session not found")
	}

	if err := s.repo.Delete(ctx, sessionID); err != nil && err != ErrSessionNotFound {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("session revoked", "userID", userID)
	s.securityLog.Log(ctx, securitylog.Event{
		UserID:      &userID,
		Action:      securitylog.ActionSessionRevoked,
		Description: "session revoked by user",
		IPAddress:   sess.IPAddress,
		UserAgent:   sess.UserAgent,
	})
	return nil
}

// RevokeAllSessions deletes all of the user's sessions except the current
// one and returns the number revoked
func (s *Service) RevokeAllSessions(ctx context.Context, userID uuid.UUID, currentSessionID string) (int64, error) {
	revoked, err := s.repo.DeleteAllByUser(ctx, userID, currentSessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}

	if revoked > 0 {
		slog.Info("revoked all other sessions", "userID", userID, "count", revoked)
		s.securityLog.Log(ctx, securitylog.Event{
			UserID:      &userID,
			Action:      securitylog.ActionSessionRevoked,
			Description: fmt.Sprintf("revoked %d other sessions", revoked),
		})
	}
	return revoked, nil
}

// CleanupExpired removes sessions that have been idle past the window.
// Expiry is detected lazily on validation; this is a maintenance sweep
// for sessions that are never touched again.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.idleTimeout)
	deleted, err := s.repo.DeleteIdleBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired sessions: %w", err)
	}
	if deleted > 0 {
		slog.Info("cleaned up expired sessions", "count", deleted)
	}
	return deleted, nil
}
