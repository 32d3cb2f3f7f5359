package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisory-cms/internal/model"
)

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{Success: status < 400, Data: data})
}

func writeEnvelopeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   &model.APIError{Code: code, Message: code},
	})
}

// newRefreshServer serves a protected endpoint that only accepts freshToken,
// and a refresh endpoint that issues it after refreshDelay.
func newRefreshServer(t *testing.T, freshToken string, refreshDelay time.Duration, refreshCalls *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		time.Sleep(refreshDelay)
		writeEnvelope(w, http.StatusOK, model.LoginResult{AccessToken: freshToken, TokenType: "Bearer"})
	})
	mux.HandleFunc("GET /admin/pages", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+freshToken {
			writeEnvelopeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED")
			return
		}
		writeEnvelope(w, http.StatusOK, []model.Page{})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestConcurrent401sTriggerSingleRefresh(t *testing.T) {
	var refreshCalls atomic.Int32
	server := newRefreshServer(t, "fresh", 150*time.Millisecond, &refreshCalls)

	client, err := New(server.URL)
	require.NoError(t, err)
	client.accessToken = "stale"

	const concurrency = 8
	var wg sync.WaitGroup
	results := make([]error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var pages []model.Page
			results[i] = client.Get(context.Background(), "/admin/pages", &pages)
		}(i)
	}
	wg.Wait()

	for i, err := range results {
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, int32(1), refreshCalls.Load(), "exactly one refresh call expected")
	assert.Equal(t, "fresh", client.AccessToken())
}

func TestRetryCapStopsFurtherRefreshes(t *testing.T) {
	var refreshCalls atomic.Int32
	var redirects atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeEnvelopeError(w, http.StatusUnauthorized, "TOKEN_REVOKED")
	})
	mux.HandleFunc("GET /admin/pages", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelopeError(w, http.StatusUnauthorized, "TOKEN_MALFORMED")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := New(server.URL, WithUnauthorizedHandler(func() { redirects.Add(1) }))
	require.NoError(t, err)
	client.accessToken = "broken"

	// First two calls each burn one refresh attempt.
	for i := 0; i < 2; i++ {
		err := client.Get(context.Background(), "/admin/pages", nil)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrRefreshExhausted)
	}
	assert.Equal(t, int32(2), refreshCalls.Load())

	// The cap is reached: a further 401 surfaces immediately without
	// touching the refresh endpoint again.
	err = client.Get(context.Background(), "/admin/pages", nil)
	assert.ErrorIs(t, err, ErrRefreshExhausted)
	assert.Equal(t, int32(2), refreshCalls.Load())

	// User is redirected to sign-in exactly once, never looped.
	assert.Equal(t, int32(1), redirects.Load())
}

func TestFailedRefreshRejectsAllWaiters(t *testing.T) {
	var refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		time.Sleep(150 * time.Millisecond)
		writeEnvelopeError(w, http.StatusUnauthorized, "TOKEN_REVOKED")
	})
	mux.HandleFunc("GET /admin/pages", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelopeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := New(server.URL)
	require.NoError(t, err)
	client.accessToken = "stale"

	const concurrency = 5
	var wg sync.WaitGroup
	results := make([]error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = client.Get(context.Background(), "/admin/pages", nil)
		}(i)
	}
	wg.Wait()

	for i, err := range results {
		assert.Error(t, err, "request %d must fail", i)
	}
	assert.Equal(t, int32(1), refreshCalls.Load(), "waiters must not start their own refresh")
}

func TestSuccessfulLoginResetsRetryBudget(t *testing.T) {
	var refreshCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, model.LoginResult{AccessToken: "fresh", TokenType: "Bearer"})
	})
	mux.HandleFunc("POST /admin/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeEnvelopeError(w, http.StatusUnauthorized, "TOKEN_REVOKED")
	})
	mux.HandleFunc("GET /admin/pages", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelopeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := New(server.URL, WithMaxGlobalRetries(1))
	require.NoError(t, err)
	client.accessToken = "stale"

	require.Error(t, client.Get(context.Background(), "/admin/pages", nil))
	assert.ErrorIs(t, client.Get(context.Background(), "/admin/pages", nil), ErrRefreshExhausted)

	_, err = client.Login(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)

	// The budget is back: the next 401 attempts a refresh again.
	require.Error(t, client.Get(context.Background(), "/admin/pages", nil))
	assert.Equal(t, int32(2), refreshCalls.Load())
}

func TestLoginFailurePropagatesAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelopeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := New(server.URL)
	require.NoError(t, err)

	_, err = client.Login(context.Background(), "a@b.com", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_CREDENTIALS")
}

func TestUploadKeepsRawContentType(t *testing.T) {
	var gotContentType string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/uploads", func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		writeEnvelope(w, http.StatusCreated, map[string]string{"path": "/uploads/x.bin"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := New(server.URL)
	require.NoError(t, err)
	client.accessToken = "token"

	body := bytes.NewReader([]byte{0x01, 0x02, 0x03})
	var out map[string]string
	require.NoError(t, client.Upload(context.Background(), "/admin/uploads", "application/octet-stream", body, &out))

	assert.Equal(t, "application/octet-stream", gotContentType)
	assert.Equal(t, "/uploads/x.bin", out["path"])
}

func TestMissingRefreshSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelopeError(w, http.StatusUnauthorized, "MISSING_TOKEN")
	})
	mux.HandleFunc("GET /admin/pages", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelopeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := New(server.URL)
	require.NoError(t, err)
	client.accessToken = "stale"

	err = client.Get(context.Background(), "/admin/pages", nil)
	assert.True(t, errors.Is(err, ErrNoRefreshSession), "expected ErrNoRefreshSession, got %v", err)
}

func TestBaseURLTrimmed(t *testing.T) {
	client, err := New("http://example.com/")
	require.NoError(t, err)
	assert.False(t, strings.HasSuffix(client.baseURL, "/"))
}
