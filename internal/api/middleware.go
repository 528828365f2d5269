// Package api implements the Ariadna REST API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenQueryParam carries the token for clients that cannot set headers,
// such as a browser EventSource on /events.
const TokenQueryParam = "access_token"

// AuthMiddleware returns middleware that validates a Bearer token.
// With enabled false every request passes. Otherwise a request needs
// "Authorization: Bearer <token>", or for GET requests the token in the
// access_token query parameter.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if enabled && (len(want) == 0 || subtle.ConstantTimeCompare([]byte(requestToken(r)), want) != 1) {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(r *http.Request) string {
	if got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return got
	}
	if r.Method == http.MethodGet {
		return r.URL.Query().Get(TokenQueryParam)
	}
	return ""
}
