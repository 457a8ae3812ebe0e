package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"clinic-management-api/internal/access"
	"clinic-management-api/internal/auth"
	"clinic-management-api/internal/httpx"
)

// TokenCookie carries the session token for browser clients.
const TokenCookie = "token"

type SessionResolver interface {
	Session(ctx context.Context, c *auth.Claims) (*access.Session, error)
}

// tokenFrom prefers Authorization: Bearer <jwt> and falls back to the cookie.
func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// Session authenticates the request and attaches the caller's access.Session
// to its context.
func Session(secret string, resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFrom(r)
			if raw == "" {
				httpx.Fail(w, http.StatusUnauthorized, "authentication required")
				return
			}

			claims, err := auth.ParseToken(raw, secret)
			if err != nil {
				httpx.Fail(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			sess, err := resolver.Session(r.Context(), claims)
			if err != nil {
				log.Error().Err(err).Str("role", claims.Role).Msg("resolve session")
				httpx.Fail(w, http.StatusInternalServerError, "internal error")
				return
			}

			next.ServeHTTP(w, r.WithContext(access.WithSession(r.Context(), sess)))
		})
	}
}

// Require rejects callers whose session lacks perm. A role with
// hasAllAccess always passes.
func Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := access.FromContext(r.Context())
			if !ok {
				httpx.Fail(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !sess.Can(perm) {
				log.Debug().Str("user_id", sess.UserID).Str("perm", perm).Msg("permission denied")
				httpx.Fail(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireModule admits callers holding any permission in module.
func RequireModule(module string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := access.FromContext(r.Context())
			if !ok {
				httpx.Fail(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !sess.CanAccessModule(module) {
				httpx.Fail(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
