// Package identity provides anonymous per-device identity primitives.
package identity

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/cognify/internal/domain"
	"github.com/ashureev/cognify/internal/store"
	"github.com/google/uuid"
)

const (
	AnonCookieName        = "cognify_anon_id"
	SessionHeaderName     = "X-Cognify-Session-ID"
	DefaultSessionIDValue = "default"
	anonCookieMaxAge      = 30 * 24 * time.Hour
	lastSeenGranularity   = time.Minute
)

type contextKey int

const (
	userIDKey contextKey = iota
	sessionIDKey
)

var (
	anonIDPattern    = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// UserIDFromContext extracts the device user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the tab session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return DefaultSessionIDValue
}

// KeyFromContext returns the session key of the request.
func KeyFromContext(ctx context.Context) domain.SessionKey {
	return domain.SessionKey{
		UserID:    UserIDFromContext(ctx),
		SessionID: SessionIDFromContext(ctx),
	}
}

// WithKey returns ctx carrying key, for code paths outside Middleware.
func WithKey(ctx context.Context, key domain.SessionKey) context.Context {
	ctx = context.WithValue(ctx, userIDKey, key.UserID)
	return context.WithValue(ctx, sessionIDKey, sanitizeSessionID(key.SessionID))
}

func generateAnonID() string {
	id := uuid.New()
	return "anon_" + strings.ReplaceAll(id.String(), "-", "")
}

func isValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !sessionIDPattern.MatchString(id) {
		return DefaultSessionIDValue
	}
	return id
}

func deriveDisplayName(userID string) string {
	if len(userID) > 13 {
		return "guest-" + userID[len(userID)-8:]
	}
	return "guest"
}

// touchUser creates the device row on first sight and refreshes last_seen at
// most once per lastSeenGranularity.
func touchUser(ctx context.Context, repo store.Repository, userID string) error {
	user, err := repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	now := time.Now()
	if user == nil {
		return repo.UpsertUser(ctx, &domain.User{
			UserID:      userID,
			DisplayName: deriveDisplayName(userID),
			LastSeenAt:  now,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	if user.IdleFor(now) < lastSeenGranularity {
		return nil
	}
	if err := repo.UpdateLastSeen(ctx, userID, now); err != nil {
		slog.Warn("Failed to update last seen", "user_id", userID, "error", err)
	}
	return nil
}

func setAnonCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func getOrCreateAnonID(w http.ResponseWriter, r *http.Request, isDev bool) string {
	id := ""
	if c, err := r.Cookie(AnonCookieName); err == nil && isValidAnonID(c.Value) {
		id = c.Value
	} else {
		id = generateAnonID()
	}
	setAnonCookie(w, id, isDev)
	return id
}

func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get("session_id")
	}
	return sanitizeSessionID(sid)
}

// Middleware injects anonymous per-device identity and per-request session ID.
func Middleware(repo store.Repository, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := getOrCreateAnonID(w, r, isDev)

			if err := touchUser(r.Context(), repo, userID); err != nil {
				slog.Error("Failed to initialize anonymous user", "user_id", userID, "error", err)
				http.Error(w, `{"error":"failed to initialize anonymous user"}`, http.StatusInternalServerError)
				return
			}

			ctx := WithKey(r.Context(), domain.SessionKey{
				UserID:    userID,
				SessionID: sessionIDFromRequest(r),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
