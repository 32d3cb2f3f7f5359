package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"advisory-cms/internal/model"
)

type accessVerifier interface {
	VerifyAccess(tokenString string) (*model.AuthClaims, error)
}

type sessionChecker interface {
	VerifySession(ctx context.Context, claims *model.AuthClaims) error
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

// AuthMiddleware is the gate in front of every protected route: it verifies
// the bearer token's signature and expiry, then re-reads the principal so a
// deactivated account is locked out even while its token is still unexpired.
type AuthMiddleware struct {
	verifier accessVerifier
	sessions sessionChecker
}

func NewAuthMiddleware(verifier accessVerifier, sessions sessionChecker) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, sessions: sessions}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			writeAuthError(w, http.StatusUnauthorized, "MISSING_TOKEN", "missing or invalid authorization header")
			return
		}

		tokenString := strings.TrimSpace(header[7:])
		claims, err := m.verifier.VerifyAccess(tokenString)
		if err != nil {
			// The client pipeline decides whether a refresh is worth
			// attempting, so expired and malformed stay distinguishable.
			if errors.Is(err, model.ErrExpiredToken) {
				writeAuthError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "access token expired")
			} else {
				writeAuthError(w, http.StatusUnauthorized, "TOKEN_MALFORMED", "access token is not valid")
			}
			return
		}

		if err := m.sessions.VerifySession(r.Context(), claims); err != nil {
			writeAuthError(w, http.StatusUnauthorized, "INVALID_SESSION", "session is no longer valid")
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a route on model.RoleSatisfies. Registered per route
// rather than capturing role sets in closures.
func (m *AuthMiddleware) RequireRole(required model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "MISSING_TOKEN", "authentication required")
				return
			}

			if !model.RoleSatisfies(required, claims.Role) {
				writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok
}

func writeAuthError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	})
}
