package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, AllowedOrigins("http://localhost:5173", true))
	assert.Equal(t, []string{"https://cognify.example"}, AllowedOrigins("https://cognify.example/", false))
	assert.Nil(t, AllowedOrigins("", false))
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name        string
		allowed     []string
		origin      string
		method      string
		wantStatus  int
		wantOrigin  string
		wantCreds   string
		wantHeaders string
	}{
		{
			name:        "explicit origin",
			allowed:     []string{"https://cognify.example"},
			origin:      "https://cognify.example",
			method:      http.MethodGet,
			wantStatus:  http.StatusNoContent,
			wantOrigin:  "https://cognify.example",
			wantCreds:   "true",
			wantHeaders: "Content-Type, X-Cognify-Session-ID",
		},
		{
			name:        "wildcard without credentials",
			allowed:     []string{"*"},
			origin:      "http://localhost:5173",
			method:      http.MethodGet,
			wantStatus:  http.StatusNoContent,
			wantOrigin:  "http://localhost:5173",
			wantHeaders: "Content-Type, X-Cognify-Session-ID",
		},
		{
			name:       "foreign origin",
			allowed:    []string{"https://cognify.example"},
			origin:     "https://evil.example",
			method:     http.MethodGet,
			wantStatus: http.StatusNoContent,
		},
		{
			name:        "preflight",
			allowed:     []string{"https://cognify.example"},
			origin:      "https://cognify.example",
			method:      http.MethodOptions,
			wantStatus:  http.StatusOK,
			wantOrigin:  "https://cognify.example",
			wantCreds:   "true",
			wantHeaders: "Content-Type, X-Cognify-Session-ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/session", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			CORS(tt.allowed)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, rec.Header().Get("Access-Control-Allow-Credentials"))
			assert.Equal(t, tt.wantHeaders, rec.Header().Get("Access-Control-Allow-Headers"))
		})
	}
}
