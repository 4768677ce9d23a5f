package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/cognify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *SQLiteStore) countProfiles(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n)
	return n, err
}

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "cognify.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// repositories returns every implementation so behavior is checked once for all.
func repositories(t *testing.T) map[string]Repository {
	return map[string]Repository{
		"sqlite": newSQLite(t),
		"memory": NewMemory(),
	}
}

func TestUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			got, err := repo.GetUser(ctx, "anon_missing")
			require.NoError(t, err)
			assert.Nil(t, got)

			now := time.Unix(1_700_000_000, 0)
			require.NoError(t, repo.UpsertUser(ctx, &domain.User{
				UserID: "anon_1", DisplayName: "guest-1",
				LastSeenAt: now, CreatedAt: now, UpdatedAt: now,
			}))
			require.NoError(t, repo.UpdateLastSeen(ctx, "anon_1", now.Add(time.Hour)))

			got, err = repo.GetUser(ctx, "anon_1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "guest-1", got.DisplayName)
			assert.Equal(t, now.Add(time.Hour).Unix(), got.LastSeenAt.Unix())
			assert.Equal(t, now.Unix(), got.CreatedAt.Unix())
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	key := domain.SessionKey{UserID: "anon_1", SessionID: "tab-1"}

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			got, err := repo.GetSession(ctx, key)
			require.NoError(t, err)
			assert.Nil(t, got)

			old := time.Now().Add(-2 * time.Hour)
			require.NoError(t, repo.SaveSession(ctx, &domain.StoredSession{
				Key: key, StateJSON: `{"stage":"setup"}`, CreatedAt: old, UpdatedAt: old,
			}))
			fresh := domain.SessionKey{UserID: "anon_1", SessionID: "tab-2"}
			require.NoError(t, repo.SaveSession(ctx, &domain.StoredSession{
				Key: fresh, StateJSON: `{"stage":"execution"}`,
			}))

			got, err = repo.GetSession(ctx, key)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, `{"stage":"setup"}`, got.StateJSON)

			expired, err := repo.GetExpiredSessions(ctx, time.Hour)
			require.NoError(t, err)
			assert.Equal(t, []domain.SessionKey{key}, expired)

			require.NoError(t, repo.DeleteSession(ctx, key))
			require.NoError(t, repo.DeleteSession(ctx, key), "deleting twice is fine")
			got, err = repo.GetSession(ctx, key)
			require.NoError(t, err)
			assert.Nil(t, got)

			got, err = repo.GetSession(ctx, fresh)
			require.NoError(t, err)
			require.NotNil(t, got)
		})
	}
}

func TestSaveSessionKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	repo := newSQLite(t)
	key := domain.SessionKey{UserID: "anon_1", SessionID: "default"}
	created := time.Unix(1_700_000_000, 0)

	require.NoError(t, repo.SaveSession(ctx, &domain.StoredSession{Key: key, StateJSON: "{}", CreatedAt: created, UpdatedAt: created}))
	require.NoError(t, repo.SaveSession(ctx, &domain.StoredSession{Key: key, StateJSON: `{"a":1}`, CreatedAt: time.Now(), UpdatedAt: time.Now()}))

	got, err := repo.GetSession(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, created.Unix(), got.CreatedAt.Unix())
	assert.Equal(t, `{"a":1}`, got.StateJSON)
}

func TestAppendProfile(t *testing.T) {
	ctx := context.Background()
	repo := newSQLite(t)
	rec := domain.ProfileRecord{Name: "Ada", Age: 36, Occupation: "Engineer", Gender: "Female", Goal: "Focus", Timestamp: time.Now()}

	require.NoError(t, repo.AppendProfile(ctx, rec))
	require.NoError(t, repo.AppendProfile(ctx, rec))

	n, err := repo.countProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPing(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, repo.Ping(context.Background()))
		})
	}
}
