package middleware

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/healthz": true,
}

// Auth returns middleware that validates the caller's API key against the
// configured bcrypt hash. With an empty hash authentication is disabled and
// every request passes through.
func Auth(apiKeyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKeyHash == "" || publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := apiKeyFromRequest(r)
			if key == "" {
				http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(apiKeyHash), []byte(key)); err != nil {
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// apiKeyFromRequest looks for the key in X-API-Key, then a Bearer token,
// then the ?token= query parameter used by WebSocket clients.
func apiKeyFromRequest(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token := strings.TrimPrefix(auth, "Bearer "); token != auth {
			return token
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
