//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisory-cms/internal/model"
	"advisory-cms/pkg/apiclient"
)

func TestLoginSetsCookieAndClaims(t *testing.T) {
	env := newTestEnv(t, 15*time.Minute)

	accessToken, cookie := login(t, env)

	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, "/admin/auth", cookie.Path)
	assert.Greater(t, cookie.MaxAge, 0)

	claims, err := env.tokens.VerifyAccess(accessToken)
	require.NoError(t, err)
	assert.Equal(t, testAdminEmail, claims.Email)
	assert.Equal(t, model.RoleAdmin, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t, 15*time.Minute)

	resp := postJSON(t, env.server.URL+"/admin/auth/login", model.LoginRequest{
		Email:    testAdminEmail,
		Password: "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	parsed := decodeEnvelope(t, resp)
	require.NotNil(t, parsed.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", parsed.Error.Code)
}

func TestLoginDeactivatedAccount(t *testing.T) {
	env := newTestEnv(t, 15*time.Minute)

	admin, err := env.store.FindByEmail(context.Background(), testAdminEmail)
	require.NoError(t, err)
	env.store.SetActive(admin.ID, false)

	resp := postJSON(t, env.server.URL+"/admin/auth/login", model.LoginRequest{
		Email:    testAdminEmail,
		Password: testAdminPassword,
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	parsed := decodeEnvelope(t, resp)
	require.NotNil(t, parsed.Error)
	assert.Equal(t, "ACCOUNT_DEACTIVATED", parsed.Error.Code)
}

func TestRefreshWithoutCookie(t *testing.T) {
	env := newTestEnv(t, 15*time.Minute)

	resp := doWithCookie(t, http.MethodPost, env.server.URL+"/admin/auth/refresh-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	parsed := decodeEnvelope(t, resp)
	require.NotNil(t, parsed.Error)
	assert.Equal(t, "MISSING_TOKEN", parsed.Error.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	env := newTestEnv(t, 15*time.Minute)

	_, cookie := login(t, env)

	resp := doWithCookie(t, http.MethodPost, env.server.URL+"/admin/auth/refresh-token", cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rotated := refreshCookie(t, resp)
	require.NotNil(t, rotated)
	assert.NotEqual(t, cookie.Value, rotated.Value)

	// The pre-rotation cookie is revoked even though still signed-valid.
	replay := doWithCookie(t, http.MethodPost, env.server.URL+"/admin/auth/refresh-token", cookie)
	require.Equal(t, http.StatusUnauthorized, replay.StatusCode)
	parsed := decodeEnvelope(t, replay)
	require.NotNil(t, parsed.Error)
	assert.Equal(t, "TOKEN_REVOKED", parsed.Error.Code)
}

func TestLogoutRevokesAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t, 15*time.Minute)

	_, cookie := login(t, env)

	first := doWithCookie(t, http.MethodPost, env.server.URL+"/admin/auth/logout", cookie)
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := doWithCookie(t, http.MethodPost, env.server.URL+"/admin/auth/logout", cookie)
	assert.Equal(t, http.StatusOK, second.StatusCode)

	noCookie := doWithCookie(t, http.MethodPost, env.server.URL+"/admin/auth/logout", nil)
	assert.Equal(t, http.StatusOK, noCookie.StatusCode)

	refresh := doWithCookie(t, http.MethodPost, env.server.URL+"/admin/auth/refresh-token", cookie)
	assert.Equal(t, http.StatusUnauthorized, refresh.StatusCode)
}

func TestDeactivationLocksOutLiveToken(t *testing.T) {
	env := newTestEnv(t, 15*time.Minute)

	accessToken, _ := login(t, env)

	ok := doWithBearer(t, http.MethodGet, env.server.URL+"/admin/auth/profile", accessToken, nil)
	require.Equal(t, http.StatusOK, ok.StatusCode)

	admin, err := env.store.FindByEmail(context.Background(), testAdminEmail)
	require.NoError(t, err)
	env.store.SetActive(admin.ID, false)

	// Signature verification alone would still pass; the gate's storage
	// recheck must reject the session.
	locked := doWithBearer(t, http.MethodGet, env.server.URL+"/admin/auth/profile", accessToken, nil)
	require.Equal(t, http.StatusUnauthorized, locked.StatusCode)
	parsed := decodeEnvelope(t, locked)
	require.NotNil(t, parsed.Error)
	assert.Equal(t, "INVALID_SESSION", parsed.Error.Code)
}

func TestProfileResponseNeverLeaksSecrets(t *testing.T) {
	env := newTestEnv(t, 15*time.Minute)

	accessToken, _ := login(t, env)

	resp := doWithBearer(t, http.MethodGet, env.server.URL+"/admin/auth/profile", accessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	parsed := decodeEnvelope(t, resp)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(parsed.Data, &raw))
	assert.NotContains(t, raw, "password_hash")
	assert.NotContains(t, raw, "refresh_token")
	assert.Contains(t, raw, "email")
}

func TestChangePasswordFlow(t *testing.T) {
	env := newTestEnv(t, 15*time.Minute)

	accessToken, _ := login(t, env)

	bad := doWithBearer(t, http.MethodPut, env.server.URL+"/admin/auth/change-password", accessToken,
		model.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "brand-new-1"})
	assert.Equal(t, http.StatusUnauthorized, bad.StatusCode)

	good := doWithBearer(t, http.MethodPut, env.server.URL+"/admin/auth/change-password", accessToken,
		model.ChangePasswordRequest{CurrentPassword: testAdminPassword, NewPassword: "brand-new-1"})
	assert.Equal(t, http.StatusOK, good.StatusCode)

	relogin := postJSON(t, env.server.URL+"/admin/auth/login", model.LoginRequest{
		Email:    testAdminEmail,
		Password: "brand-new-1",
	})
	assert.Equal(t, http.StatusOK, relogin.StatusCode)
}

func TestRegisterRequiresSuperAdmin(t *testing.T) {
	env := newTestEnv(t, 15*time.Minute)

	accessToken, _ := login(t, env)

	resp := doWithBearer(t, http.MethodPost, env.server.URL+"/admin/auth/register", accessToken,
		model.RegisterRequest{Email: "new@b.com", DisplayName: "New", Password: "secret12"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestProtectedRouteWithoutToken(t *testing.T) {
	env := newTestEnv(t, 15*time.Minute)

	resp := doWithCookie(t, http.MethodGet, env.server.URL+"/admin/pages/", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// TestClientRecoversExpiredSession runs the full loop: the api client logs
// in, its access token expires, two concurrent protected calls 401 at the
// same time, one refresh goes out, and both calls succeed on replay.
func TestClientRecoversExpiredSession(t *testing.T) {
	env := newTestEnv(t, 700*time.Millisecond)

	client, err := apiclient.New(env.server.URL)
	require.NoError(t, err)

	_, err = client.Login(context.Background(), testAdminEmail, testAdminPassword)
	require.NoError(t, err)

	time.Sleep(900 * time.Millisecond)

	type result struct{ err error }
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			var admin model.PublicAdmin
			results <- result{err: client.Get(context.Background(), "/admin/auth/profile", &admin)}
		}()
	}

	for i := 0; i < 2; i++ {
		res := <-results
		assert.NoError(t, res.err)
	}

	// The rotation happened exactly once: the new token differs and works.
	var admin model.PublicAdmin
	require.NoError(t, client.Get(context.Background(), "/admin/auth/profile", &admin))
	assert.Equal(t, testAdminEmail, admin.Email)
}
