package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jimiolaniyan/blockhub"
)

// RequireAuth rejects requests without a valid bearer token and records the
// token's username as the requestor.
func RequireAuth(tokens *Issuer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, err := tokens.Verify(bearerToken(r))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(blockhub.WithRequestor(r.Context(), username)))
	})
}

// OptionalAuth records the requestor when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(tokens *Issuer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if username, err := tokens.Verify(bearerToken(r)); err == nil {
			r = r.WithContext(blockhub.WithRequestor(r.Context(), username))
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return h[len(prefix):]
}
