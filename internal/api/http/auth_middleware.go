package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dmstore/dmstore/internal/domain/session"
)

// requireAPIKey guards the control plane when an operator key is configured.
// Keys are compared by digest so the comparison is constant time regardless of length.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	if s.deps.APIKey == "" {
		return next
	}
	want := session.FingerprintOf(s.deps.APIKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing api key")
			return
		}
		got := session.FingerprintOf(token)
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
