package reputation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCacheMiss is returned when no cached entry exists for an address
var ErrCacheMiss = errors.New("reputation cache miss")

// CacheEntry is a memo of a past lookup. It is not authoritative; the
// client re-queries providers once LastChecked falls outside the TTL.
type CacheEntry struct {
	IPAddress   string    `json:"ip_address"`
	Status      Status    `json:"status"`
	Score       int       `json:"score"`
	LastChecked time.Time `json:"last_checked"`
}

// CacheRepository defines the interface for reputation cache storage
type CacheRepository interface {
	Get(ctx context.Context, ip string) (CacheEntry, error)
	Upsert(ctx context.Context, entry CacheEntry) error
}

// InMemCacheRepository implements CacheRepository using an in-memory map
type InMemCacheRepository struct {
	entries map[string]CacheEntry
	mu      sync.Mutex
}

// NewInMemCacheRepository creates a new in-memory reputation cache
func NewInMemCacheRepository() *InMemCacheRepository {
	return &InMemCacheRepository{
		entries: make(map[string]CacheEntry),
	}
}

// Get retrieves a cached entry by IP
func (r *InMemCacheRepository) Get(ctx context.Context, ip string) (CacheEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[ip]
	if !exists {
		return CacheEntry{}, ErrCacheMiss
	}
	return entry, nil
}

// Upsert stores or replaces a cached entry
func (r *InMemCacheRepository) Upsert(ctx context.Context, entry CacheEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[entry.IPAddress] = entry
	return nil
}
