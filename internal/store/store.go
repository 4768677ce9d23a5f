// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/cognify/internal/domain"
)

// Repository defines the interface for persisting devices, session state and
// locally kept profile rows.
type Repository interface {
	// GetUser retrieves a device user by ID. Returns nil, nil when absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a device user.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// GetSession retrieves the stored flow state of a session.
	// Returns nil, nil when the session has no state yet.
	GetSession(ctx context.Context, key domain.SessionKey) (*domain.StoredSession, error)

	// SaveSession creates or replaces the stored flow state of a session.
	SaveSession(ctx context.Context, session *domain.StoredSession) error

	// DeleteSession removes a session's state. Deleting a missing session is not an error.
	DeleteSession(ctx context.Context, key domain.SessionKey) error

	// GetExpiredSessions lists sessions not updated within ttl.
	GetExpiredSessions(ctx context.Context, ttl time.Duration) ([]domain.SessionKey, error)

	// AppendProfile stores an onboarding record locally.
	AppendProfile(ctx context.Context, rec domain.ProfileRecord) error

	// Ping verifies connectivity and returns an error if the store is unreachable.
	Ping(ctx context.Context) error

	// Close releases the store.
	Close() error
}
