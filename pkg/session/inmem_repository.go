package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemRepository implements Repository using an in-memory map
type InMemRepository struct {
	sessions map[string]Session
	mu       sync.Mutex
}

// NewInMemRepository creates a new in-memory session repository
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		sessions: make(map[string]Session),
	}
}

// Create stores a new session
func (r *InMemRepository) Create(ctx context.Context, session Session) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if session.ID == "" {
		session.ID = NewSessionID()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastActivity.IsZero() {
		session.LastActivity = now
	}

	r.sessions[session.ID] = session
	return session, nil
}

// GetByID retrieves a session by its id
func (r *InMemRepository) GetByID(ctx context.Context, id string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

// ListByUser returns all sessions belonging to a user
func (r *InMemRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sessions []Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

// UpdateActivity refreshes the last activity timestamp. Last-writer-wins;
// no error if the session vanished between load and refresh.
func (r *InMemRepository) UpdateActivity(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil
	}
	if at.After(session.LastActivity) {
		session.LastActivity = at
		r.sessions[id] = session
	}
	return nil
}

// Delete removes a session
func (r *InMemRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; !exists {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// DeleteByDevice removes every session bound to a device
func (r *InMemRepository) DeleteByDevice(ctx context.Context, deviceID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, s := range r.sessions {
		if s.DeviceID == deviceID {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// DeleteAllByUser removes all of a user's sessions except the given one
func (r *InMemRepository) DeleteAllByUser(ctx context.Context, userID uuid.UUID, exceptID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, s := range r.sessions {
		if s.UserID == userID && id != exceptID {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// DeleteIdleBefore removes sessions idle since before the cutoff
func (r *InMemRepository) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, s := range r.sessions {
		if s.LastActivity.Before(cutoff) {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}
