package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisory-cms/internal/model"
	"advisory-cms/internal/token"
)

type stubSessions struct {
	err error
}

func (s stubSessions) VerifySession(_ context.Context, _ *model.AuthClaims) error {
	return s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var parsed model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	require.NotNil(t, parsed.Error)
	return parsed.Error.Code
}

func newGate(t *testing.T, sessionErr error) (*AuthMiddleware, *token.Manager) {
	t.Helper()

	tokens := token.NewManager("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	return NewAuthMiddleware(tokens, stubSessions{err: sessionErr}), tokens
}

func TestRequireAuthMissingHeader(t *testing.T) {
	gate, _ := newGate(t, nil)

	req := httptest.NewRequest("GET", "/admin/pages", nil)
	rec := httptest.NewRecorder()
	gate.RequireAuth(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "MISSING_TOKEN", decodeErrorCode(t, rec))
}

func TestRequireAuthExpiredVersusMalformed(t *testing.T) {
	gate, _ := newGate(t, nil)
	expiredIssuer := token.NewManager("access-secret", "refresh-secret", -time.Minute, 24*time.Hour)

	expired, err := expiredIssuer.IssueAccess(model.Admin{ID: "id-1", Email: "a@b.com", Role: model.RoleAdmin})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/admin/pages", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec := httptest.NewRecorder()
	gate.RequireAuth(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_EXPIRED", decodeErrorCode(t, rec))

	req = httptest.NewRequest("GET", "/admin/pages", nil)
	req.Header.Set("Authorization", "Bearer junk")
	rec = httptest.NewRecorder()
	gate.RequireAuth(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_MALFORMED", decodeErrorCode(t, rec))
}

func TestRequireAuthRejectsDeadSession(t *testing.T) {
	gate, tokens := newGate(t, model.ErrInvalidSession)

	signed, err := tokens.IssueAccess(model.Admin{ID: "id-1", Email: "a@b.com", Role: model.RoleAdmin})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/admin/pages", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	gate.RequireAuth(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_SESSION", decodeErrorCode(t, rec))
}

func TestRequireAuthAttachesClaims(t *testing.T) {
	gate, tokens := newGate(t, nil)

	signed, err := tokens.IssueAccess(model.Admin{ID: "id-1", Email: "a@b.com", DisplayName: "A", Role: model.RoleSuperAdmin})
	require.NoError(t, err)

	var got *model.AuthClaims
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/admin/pages", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	gate.RequireAuth(inner).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "id-1", got.AdminID)
	assert.Equal(t, model.RoleSuperAdmin, got.Role)
}

func TestRequireRole(t *testing.T) {
	gate, tokens := newGate(t, nil)

	adminToken, err := tokens.IssueAccess(model.Admin{ID: "id-1", Email: "a@b.com", Role: model.RoleAdmin})
	require.NoError(t, err)
	superToken, err := tokens.IssueAccess(model.Admin{ID: "id-2", Email: "s@b.com", Role: model.RoleSuperAdmin})
	require.NoError(t, err)

	handler := gate.RequireAuth(gate.RequireRole(model.RoleSuperAdmin)(okHandler()))

	req := httptest.NewRequest("DELETE", "/admin/pages/home", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest("DELETE", "/admin/pages/home", nil)
	req.Header.Set("Authorization", "Bearer "+superToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
