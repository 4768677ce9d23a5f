// Package middleware provides HTTP middleware for the Cognify API.
package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/ashureev/cognify/internal/identity"
)

var allowHeaders = strings.Join([]string{"Content-Type", identity.SessionHeaderName}, ", ")

// AllowedOrigins returns the CORS origins for a deployment. Development
// accepts any origin; otherwise only the configured frontend may call in.
func AllowedOrigins(frontendURL string, isDev bool) []string {
	if isDev {
		return []string{"*"}
	}
	origin := strings.TrimRight(frontendURL, "/")
	if origin == "" {
		return nil
	}
	return []string{origin}
}

// CORS returns middleware that handles CORS headers.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			w.Header().Add("Vary", "Origin")

			explicit := origin != "" && slices.Contains(allowedOrigins, origin)
			if origin != "" && (explicit || slices.Contains(allowedOrigins, "*")) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
				// Credentials only for explicit origins; echoing a wildcard
				// match with credentials enables CSRF.
				if explicit {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
