package securitylog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service writes security events to the shared audit store.
type Service struct {
	repo Repository
}

// NewService creates a new security log service
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// Log appends a security event. The sink is best-effort: a store failure
// is logged and swallowed so that auditing can never block a request.
func (s *Service) Log(ctx context.Context, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.Create(ctx, event); err != nil {
		slog.Error("failed to write security event", "action", event.Action, "err", err)
	}
}
