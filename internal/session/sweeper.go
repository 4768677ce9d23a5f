package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/cognify/internal/domain"
	"github.com/ashureev/cognify/internal/metrics"
	"github.com/ashureev/cognify/internal/shared"
	"github.com/ashureev/cognify/internal/store"
)

// DefaultSweepInterval is used when no interval is configured.
const DefaultSweepInterval = 5 * time.Minute

// CleanupCallback is called for every session removed by the sweeper.
type CleanupCallback func(key domain.SessionKey)

// Sweeper deletes sessions that have not been touched within the TTL.
type Sweeper struct {
	repo      store.Repository
	locks     *keyLocks
	ttl       time.Duration
	interval  time.Duration
	onCleanup CleanupCallback
	metrics   *metrics.Metrics
}

// NewSweeper creates a sweeper that shares svc's session locks, so a session
// is never deleted halfway through a command.
func NewSweeper(svc *Service, ttl, interval time.Duration, onCleanup CleanupCallback) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		repo:      svc.repo,
		locks:     svc.locks,
		ttl:       ttl,
		interval:  interval,
		onCleanup: onCleanup,
		metrics:   svc.metrics,
	}
}

// Run sweeps on every tick until ctx is cancelled. It always returns nil.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	slog.Info("Session sweeper started", "interval", s.interval, "ttl", s.ttl)

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			slog.Info("Session sweeper shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

// Sweep removes every expired session once and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	expired, err := s.repo.GetExpiredSessions(ctx, s.ttl)
	if err != nil {
		slog.Error("Session sweeper failed to list expired sessions", "error", err)
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	slog.Info("Session sweeper found expired sessions", "count", len(expired))

	removed := 0
	for _, key := range expired {
		if s.remove(ctx, key) {
			removed++
		}
	}

	s.metrics.Swept(removed)
	slog.Info("Session sweeper cleanup completed", "removed", removed)
	return removed
}

func (s *Sweeper) remove(ctx context.Context, key domain.SessionKey) bool {
	unlock := s.locks.lock(key.String())
	defer unlock()

	err := shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, "delete session", func() error {
		return s.repo.DeleteSession(ctx, key)
	})
	if err != nil {
		slog.Warn("Session sweeper failed to delete session",
			"error", err,
			"user_id", key.UserID,
			"session_id", key.SessionID)
		return false
	}

	if s.onCleanup != nil {
		s.onCleanup(key)
	}
	return true
}
