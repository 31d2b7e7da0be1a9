package securitylog

import (
	"context"
	"sync"
)

// InMemRepository implements Repository using an in-memory slice
type InMemRepository struct {
	events []Event
	mu     sync.Mutex
}

// NewInMemRepository creates a new in-memory security log repository
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{}
}

// Create appends an event in memory
func (r *InMemRepository) Create(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of all recorded events. Test helper.
func (r *InMemRepository) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// EventsByAction returns recorded events matching the given action. Test helper.
func (r *InMemRepository) EventsByAction(action string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, e := range r.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
