package store

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/cognify/internal/domain"
)

// MemoryStore implements Repository in process memory. Nothing survives a
// restart, which matches the purely in-memory deployment.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	sessions map[domain.SessionKey]domain.StoredSession
	profiles []domain.ProfileRecord
	now      func() time.Time
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		sessions: make(map[domain.SessionKey]domain.StoredSession),
		now:      time.Now,
	}
}

// GetUser retrieves a user by their user ID.
func (m *MemoryStore) GetUser(_ context.Context, userID string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// UpsertUser creates or updates a user record.
func (m *MemoryStore) UpsertUser(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[user.UserID]; ok {
		existing.DisplayName = user.DisplayName
		existing.LastSeenAt = user.LastSeenAt
		existing.UpdatedAt = user.UpdatedAt
		m.users[user.UserID] = existing
		return nil
	}
	m.users[user.UserID] = *user
	return nil
}

// UpdateLastSeen updates the last seen time for a user.
func (m *MemoryStore) UpdateLastSeen(_ context.Context, userID string, lastSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return nil
	}
	user.LastSeenAt = lastSeen
	user.UpdatedAt = m.now()
	m.users[userID] = user
	return nil
}

// GetSession retrieves the stored flow state of a session.
func (m *MemoryStore) GetSession(_ context.Context, key domain.SessionKey) (*domain.StoredSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[key]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

// SaveSession creates or replaces the stored flow state of a session.
func (m *MemoryStore) SaveSession(_ context.Context, sess *domain.StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *sess
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = m.now()
	}
	if existing, ok := m.sessions[sess.Key]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = stored.UpdatedAt
	}
	m.sessions[sess.Key] = stored
	return nil
}

// DeleteSession removes a session's state.
func (m *MemoryStore) DeleteSession(_ context.Context, key domain.SessionKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

// GetExpiredSessions lists sessions not updated within ttl.
func (m *MemoryStore) GetExpiredSessions(_ context.Context, ttl time.Duration) ([]domain.SessionKey, error) {
	threshold := m.now().Add(-ttl)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []domain.SessionKey
	for key, sess := range m.sessions {
		if sess.UpdatedAt.Before(threshold) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// AppendProfile keeps an onboarding record in memory.
func (m *MemoryStore) AppendProfile(_ context.Context, rec domain.ProfileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles = append(m.profiles, rec)
	return nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

var (
	_ Repository = (*MemoryStore)(nil)
	_ Repository = (*SQLiteStore)(nil)
)
