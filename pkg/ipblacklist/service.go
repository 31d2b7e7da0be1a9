package ipblacklist

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotBlacklisted is returned by repositories when no entry exists for an IP
var ErrNotBlacklisted = errors.New("ip not blacklisted")

// Service answers blacklist membership questions for the session validator
type Service struct {
	repo Repository
}

// NewService creates a new blacklist service
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// IsBlacklisted reports whether the IP has a non-expired blacklist entry.
// Expired entries are ignored, which makes blacklisting self-healing
// without a background sweep.
func (s *Service) IsBlacklisted(ctx context.Context, ip string) (bool, error) {
	entry, err := s.repo.Get(ctx, ip)
	if err != nil {
		if errors.Is(err, ErrNotBlacklisted) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}

	return entry.Active(time.Now().UTC()), nil
}

// Block adds or replaces a blacklist entry
func (s *Service) Block(ctx context.Context, entry Entry) error {
	if entry.IPAddress == "" {
		return errors.New("ip_address is required")
	}
	return s.repo.Add(ctx, entry)
}

// Unblock removes a blacklist entry
func (s *Service) Unblock(ctx context.Context, ip string) error {
	return s.repo.Remove(ctx, ip)
}
