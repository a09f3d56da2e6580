// Package middleware provides HTTP middleware for the rolesync API.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/ambnuf14-max/saes-discord-bot/internal/controlplane/api/auth"
	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// GetClaimsFromContext returns the token claims stored by JWTAuth, or nil.
func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// JWTAuth rejects requests without a valid bearer token and stores the
// token's claims in the request context.
func JWTAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Missing or malformed Authorization header")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				detail := "Invalid token"
				if errors.Is(err, auth.ErrExpiredToken) {
					detail = "Token has expired"
				}
				logger.Debug("API token rejected", "path", r.URL.Path, logger.Err(err))
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", detail)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalJWTAuth stores claims when a valid token is present and lets the
// request through either way.
func OptionalJWTAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := extractBearerToken(r); ok {
				if claims, err := jwtService.ValidateToken(token); err == nil {
					r = r.WithContext(WithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole allows the request only when the token carries one of roles.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
				return
			}
			if !slices.Contains(roles, claims.Role) {
				writeProblem(w, http.StatusForbidden, "Forbidden", "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin allows the request only for admin tokens.
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(auth.RoleAdmin)
}

// extractBearerToken reads the token from "Authorization: Bearer <token>".
// The scheme is case-insensitive.
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  title,
		"status": status,
		"detail": detail,
	})
}
