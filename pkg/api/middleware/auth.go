// Package middleware provides HTTP middleware for the flightd API.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/avionyx/flightd/pkg/auth"
	"github.com/avionyx/flightd/pkg/models"
)

// TokenValidator resolves a bearer token string to claims.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// Context key type for storing claims
type contextKey string

const claimsContextKey contextKey = "claims"

// GetClaimsFromContext retrieves token claims from the request context.
// Returns nil on unauthenticated requests, which optional-auth routes
// treat as the anonymous principal.
func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

// ContextWithClaims injects claims into a context, for handler tests.
func ContextWithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// extractBearerToken pulls the token from a Bearer Authorization header.
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// problem writes a minimal RFC 7807 response. The handlers package has the
// full helpers; middleware keeps its own to stay import-cycle free.
func problem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  title,
		"status": status,
		"detail": detail,
	})
}

// Auth validates the Bearer token and stores the claims in the request
// context. Missing or invalid credentials end the request with 401.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				problem(w, http.StatusUnauthorized, "Unauthorized", "Authorization header required")
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				detail := "Invalid token"
				if errors.Is(err, models.ErrTokenExpired) {
					detail = "Token expired"
				}
				problem(w, http.StatusUnauthorized, "Unauthorized", detail)
				return
			}

			ctx := ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth is like Auth but lets unauthenticated requests through
// without claims, so no-auth permissions can apply. A present but invalid
// token is still rejected rather than silently downgraded.
func OptionalAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				problem(w, http.StatusUnauthorized, "Unauthorized", "Invalid token")
				return
			}

			ctx := ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

