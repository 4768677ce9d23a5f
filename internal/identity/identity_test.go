package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/cognify/internal/domain"
	"github.com/ashureev/cognify/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAnonIDIsValid(t *testing.T) {
	id := generateAnonID()
	assert.True(t, isValidAnonID(id), id)
	assert.NotEqual(t, id, generateAnonID())
}

func TestSanitizeSessionID(t *testing.T) {
	assert.Equal(t, "tab-1", sanitizeSessionID(" tab-1 "))
	assert.Equal(t, DefaultSessionIDValue, sanitizeSessionID(""))
	assert.Equal(t, DefaultSessionIDValue, sanitizeSessionID("bad id/with slash"))
}

func TestMiddlewareIssuesCookieAndKey(t *testing.T) {
	repo := store.NewMemory()
	var got domain.SessionKey
	h := Middleware(repo, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = KeyFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set(SessionHeaderName, "tab-7")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, isValidAnonID(got.UserID))
	assert.Equal(t, "tab-7", got.SessionID)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, AnonCookieName, cookies[0].Name)
	assert.Equal(t, got.UserID, cookies[0].Value)

	user, err := repo.GetUser(context.Background(), got.UserID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, deriveDisplayName(got.UserID), user.DisplayName)
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	repo := store.NewMemory()
	existing := generateAnonID()
	var got domain.SessionKey
	h := Middleware(repo, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = KeyFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/session?session_id=tab-q", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: existing})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, existing, got.UserID)
	assert.Equal(t, "tab-q", got.SessionID)
}

func TestMiddlewareReplacesForgedCookie(t *testing.T) {
	var got string
	h := Middleware(store.NewMemory(), true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "anon_../../etc"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotEqual(t, "anon_../../etc", got)
	assert.True(t, isValidAnonID(got))
}

func TestContextDefaults(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", UserIDFromContext(ctx))
	assert.Equal(t, DefaultSessionIDValue, SessionIDFromContext(ctx))
}
