package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health": true,
}

// BearerKey returns middleware that requires a static service key, sent as
// "Authorization: Bearer <key>" or in the X-API-Key header. The /ws endpoint
// also accepts ?token=<key> because browsers cannot set headers on a
// WebSocket handshake. An empty key disables the check.
func BearerKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := presentedKey(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "authorization required")
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
				writeAuthError(w, http.StatusForbidden, "invalid credentials")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func presentedKey(r *http.Request) string {
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
		return ""
	}
	if r.URL.Path == "/ws" {
		return r.URL.Query().Get("token")
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
