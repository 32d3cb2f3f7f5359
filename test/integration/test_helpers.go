//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"advisory-cms/internal/config"
	"advisory-cms/internal/handler"
	"advisory-cms/internal/middleware"
	"advisory-cms/internal/model"
	"advisory-cms/internal/repository"
	"advisory-cms/internal/router"
	"advisory-cms/internal/service"
	"advisory-cms/internal/token"
)

const (
	testAdminEmail = "a@b.com"
	// Registration enforces an 8-character minimum, so the canonical
	// "secret1" scenario credential gets a trailing "!" here.
	testAdminPassword = "secret1!"
)

type testEnv struct {
	server *httptest.Server
	store  *repository.MemoryAdminStore
	tokens *token.Manager
}

// pageStoreStub satisfies service.PageStore so the protected content routes
// exist without a database.
type pageStoreStub struct{}

func (pageStoreStub) Create(context.Context, model.Page) error { return nil }
func (pageStoreStub) GetBySlug(context.Context, string) (model.Page, error) {
	return model.Page{}, model.ErrPageNotFound
}
func (pageStoreStub) List(context.Context) ([]model.Page, error) { return []model.Page{}, nil }
func (pageStoreStub) Update(context.Context, model.Page) error   { return model.ErrPageNotFound }
func (pageStoreStub) Delete(context.Context, string) error       { return model.ErrPageNotFound }

func newTestEnv(t *testing.T, accessTTL time.Duration) *testEnv {
	t.Helper()

	store := repository.NewMemoryAdminStore()
	tokens := token.NewManager("test-access-secret", "test-refresh-secret", accessTTL, 24*time.Hour)
	authService := service.NewAuthService(store, tokens)

	_, err := authService.Register(context.Background(), model.RegisterRequest{
		Email:       testAdminEmail,
		DisplayName: "Integration Admin",
		Password:    testAdminPassword,
		Role:        string(model.RoleAdmin),
	})
	require.NoError(t, err)

	cfg := &config.Config{
		ServerPort:       "8080",
		RequestTimeout:   30 * time.Second,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     10000,
		AuthRateLimitRPM: 10000,
		CookieSecure:     false,
	}

	authMiddleware := middleware.NewAuthMiddleware(tokens, authService)
	authHandler := handler.NewAuthHandler(authService, cfg.CookieSecure)
	pageHandler := handler.NewPageHandler(service.NewPageService(pageStoreStub{}))

	server := httptest.NewServer(router.New(cfg, authMiddleware, router.Handlers{
		Auth: authHandler,
		Page: pageHandler,
	}))
	t.Cleanup(server.Close)

	return &testEnv{server: server, store: store, tokens: tokens}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()

	var parsed envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return parsed
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// login authenticates and returns the access token plus the refresh cookie.
func login(t *testing.T, env *testEnv) (string, *http.Cookie) {
	t.Helper()

	resp := postJSON(t, env.server.URL+"/admin/auth/login", model.LoginRequest{
		Email:    testAdminEmail,
		Password: testAdminPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	parsed := decodeEnvelope(t, resp)
	require.True(t, parsed.Success)

	var result model.LoginResult
	require.NoError(t, json.Unmarshal(parsed.Data, &result))
	require.NotEmpty(t, result.AccessToken)

	cookie := refreshCookie(t, resp)
	require.NotNil(t, cookie, "login must set the refresh cookie")
	return result.AccessToken, cookie
}

func refreshCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "refreshToken" {
			return cookie
		}
	}
	return nil
}

func doWithCookie(t *testing.T, method string, url string, cookie *http.Cookie) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func doWithBearer(t *testing.T, method string, url string, accessToken string, payload any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
