// Package middleware provides HTTP middleware for bearer-token authentication.
package middleware

import (
	"context"
	"net/http"
	"strings"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

const subjectKey ContextKey = "subject"

// TokenValidator validates a bearer token and returns its subject.
type TokenValidator interface {
	ValidateToken(tokenString string) (string, error)
}

// Unauthorized writes the rejection response
type Unauthorized func(w http.ResponseWriter, r *http.Request)

func defaultUnauthorized(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// Auth rejects requests without a valid "Authorization: Bearer" token and
// stores the token subject in the request context.
func Auth(validator TokenValidator, reject Unauthorized) func(http.Handler) http.Handler {
	if reject == nil {
		reject = defaultUnauthorized
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.Fields(r.Header.Get("Authorization"))
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				reject(w, r)
				return
			}

			subject, err := validator.ValidateToken(parts[1])
			if err != nil {
				reject(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Subject returns the authenticated subject, or "" for anonymous requests.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}
