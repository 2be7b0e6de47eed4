package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const staffIDKey contextKey = "staffID"

// AdminJWT guards the admin API with an HMAC-signed JWT. Tokens must
// carry a subject (the staff member acting) and an expiry.
func AdminJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "admin auth disabled", http.StatusUnauthorized)
				return
			}

			header := r.Header.Get("Authorization")
			raw := strings.TrimPrefix(header, "Bearer ")
			if raw == "" || raw == header {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if claims.Subject == "" || claims.ExpiresAt == nil {
				http.Error(w, "token missing subject or expiry", http.StatusUnauthorized)
				return
			}
			if claims.ExpiresAt.Before(time.Now()) {
				http.Error(w, "token expired", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), staffIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StaffIDFromContext returns the authenticated staff member's subject.
func StaffIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(staffIDKey).(string)
	return id, ok
}
