package ipblacklist

import (
	"context"
	"sync"
)

// InMemRepository implements Repository using an in-memory map
type InMemRepository struct {
	entries map[string]Entry
	mu      sync.Mutex
}

// NewInMemRepository creates a new in-memory blacklist repository
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		entries: make(map[string]Entry),
	}
}

// Get retrieves a blacklist entry by IP
func (r *InMemRepository) Get(ctx context.Context, ip string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[ip]
	if !exists {
		return Entry{}, ErrNotBlacklisted
	}
	return entry, nil
}

// Add adds or replaces a blacklist entry
func (r *InMemRepository) Add(ctx context.Context, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[entry.IPAddress] = entry
	return nil
}

// Remove deletes a blacklist entry
func (r *InMemRepository) Remove(ctx context.Context, ip string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, ip)
	return nil
}
