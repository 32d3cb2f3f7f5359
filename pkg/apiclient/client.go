// Package apiclient is the single egress point the admin dashboard uses to
// talk to the CMS backend. It attaches the current access token to every
// request and owns the refresh coordination protocol: when concurrent calls
// lose authorization at the same instant, exactly one refresh request goes
// out and every other caller waits for its outcome.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"advisory-cms/internal/model"
	"advisory-cms/pkg/apierror"
)

const defaultMaxGlobalRetries = 2

type refreshResult struct {
	token string
	err   error
}

// Client coordinates all API traffic for one application instance.
//
// The refresh state (refreshInFlight, waiters, retryCount) is owned by the
// struct and guarded by mu; it is never package-global, so the single-flight
// invariant can be tested against an isolated instance.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	onUnauthorized func()

	mu              sync.Mutex
	accessToken     string
	refreshInFlight bool
	waiters         []chan refreshResult
	retryCount      int
	maxRetries      int
	signedOut       bool
}

type Option func(*Client)

// WithHTTPClient substitutes the transport. The client installs its own
// cookie jar if the given client has none, since the refresh token lives in
// a cookie.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUnauthorizedHandler registers the redirect-to-sign-in hook. It fires
// at most once per signed-in period: once the client has given up on a
// session it stays quiet until the next successful login.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func WithMaxGlobalRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxRetries: defaultMaxGlobalRetries,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}

	return c, nil
}

// AccessToken returns the token currently attached to outgoing requests.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// Login authenticates and primes the client: the access token is stored,
// the refresh cookie lands in the jar, and the refresh retry budget resets.
func (c *Client) Login(ctx context.Context, email string, password string) (*model.LoginResult, error) {
	var result model.LoginResult
	if err := c.call(ctx, http.MethodPost, "/admin/auth/login", model.LoginRequest{Email: email, Password: password}, &result, false); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.accessToken = result.AccessToken
	c.retryCount = 0
	c.signedOut = false
	c.mu.Unlock()

	return &result, nil
}

// Logout revokes the server-side session and drops local state.
func (c *Client) Logout(ctx context.Context) error {
	err := c.call(ctx, http.MethodPost, "/admin/auth/logout", nil, nil, false)

	c.mu.Lock()
	c.accessToken = ""
	c.signedOut = true
	c.mu.Unlock()

	return err
}

func (c *Client) Profile(ctx context.Context) (*model.PublicAdmin, error) {
	var admin model.PublicAdmin
	if err := c.call(ctx, http.MethodGet, "/admin/auth/profile", nil, &admin, true); err != nil {
		return nil, err
	}
	return &admin, nil
}

func (c *Client) UpdateProfile(ctx context.Context, req model.UpdateProfileRequest) (*model.PublicAdmin, error) {
	var admin model.PublicAdmin
	if err := c.call(ctx, http.MethodPut, "/admin/auth/profile", req, &admin, true); err != nil {
		return nil, err
	}
	return &admin, nil
}

func (c *Client) ChangePassword(ctx context.Context, current string, next string) error {
	return c.call(ctx, http.MethodPut, "/admin/auth/change-password",
		model.ChangePasswordRequest{CurrentPassword: current, NewPassword: next}, nil, true)
}

// Get/Post/Put/Delete are the generic JSON verbs the dashboard's content
// screens use for the CRUD endpoints.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodGet, path, nil, out, true)
}

func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	return c.call(ctx, http.MethodPost, path, body, out, true)
}

func (c *Client) Put(ctx context.Context, path string, body any, out any) error {
	return c.call(ctx, http.MethodPut, path, body, out, true)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.call(ctx, http.MethodDelete, path, nil, nil, true)
}

// Upload sends a raw byte stream without forcing a JSON content type onto
// it. The 401-retry only replays the body when it is seekable; a one-shot
// stream is sent at most once.
func (c *Client) Upload(ctx context.Context, path string, contentType string, body io.Reader, out any) error {
	newReq := func() (*http.Request, error) {
		if seeker, ok := body.(io.Seeker); ok {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return nil, fmt.Errorf("rewind upload body: %w", err)
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		return req, nil
	}

	_, seekable := body.(io.Seeker)
	return c.send(ctx, newReq, seekable, out)
}

func (c *Client) call(ctx context.Context, method string, path string, body any, out any, retryable bool) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = encoded
	}

	newReq := func() (*http.Request, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}

	return c.send(ctx, newReq, retryable, out)
}

// send performs one request, and on a 401 runs the coordinated refresh and
// replays the request exactly once. The retried attempt's own 401 is final.
func (c *Client) send(ctx context.Context, newReq func() (*http.Request, error), retryable bool, out any) error {
	status, raw, err := c.attempt(newReq)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && retryable {
		if _, refreshErr := c.refreshAccessToken(ctx); refreshErr != nil {
			return refreshErr
		}

		status, raw, err = c.attempt(newReq)
		if err != nil {
			return err
		}
	}

	if status >= 400 {
		return decodeFailure(status, raw)
	}
	return decodeSuccess(raw, out)
}

// attempt issues the request once and returns the status plus the buffered
// body; the caller decides how to decode it.
func (c *Client) attempt(newReq func() (*http.Request, error)) (int, []byte, error) {
	req, err := newReq()
	if err != nil {
		return 0, nil, err
	}

	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, raw, nil
}

func decodeSuccess(raw []byte, out any) error {
	if out == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response envelope: %w", err)
	}
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

func decodeFailure(status int, raw []byte) error {
	var envelope struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details string `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		return apierror.New(envelope.Error.Code, envelope.Error.Message, envelope.Error.Details, status)
	}

	return apierror.New("HTTP_ERROR", http.StatusText(status), "", status)
}

// refreshAccessToken is the single-flight coordinator. The first caller to
// observe a 401 performs the network refresh; every concurrent caller joins
// the waiter queue and is resolved or rejected FIFO with the in-flight
// outcome. A global cap bounds consecutive attempts, because a token can be
// broken in a way no refresh will fix (for example a rotated signing key
// after a deploy) and without the cap every call-site would retry forever.
func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()

	if c.refreshInFlight {
		// Someone else already initiated the refresh; join the queue and
		// share its outcome instead of issuing a second call.
		waiter := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, waiter)
		c.mu.Unlock()

		select {
		case res := <-waiter:
			return res.token, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if c.retryCount >= c.maxRetries {
		c.mu.Unlock()
		c.fireUnauthorized()
		return "", ErrRefreshExhausted
	}
	c.retryCount++

	c.refreshInFlight = true
	c.mu.Unlock()

	token, err := c.callRefreshEndpoint(ctx)

	c.mu.Lock()
	c.refreshInFlight = false
	waiters := c.waiters
	c.waiters = nil
	if err == nil {
		c.accessToken = token
		c.retryCount = 0
	}
	c.mu.Unlock()

	for _, waiter := range waiters {
		waiter <- refreshResult{token: token, err: err}
	}

	if err != nil {
		c.fireUnauthorized()
		return "", err
	}
	return token, nil
}

func (c *Client) callRefreshEndpoint(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/admin/auth/refresh-token", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read refresh response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope struct {
			Error *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if jsonErr := json.Unmarshal(raw, &envelope); jsonErr == nil && envelope.Error != nil {
			if envelope.Error.Code == "MISSING_TOKEN" {
				return "", ErrNoRefreshSession
			}
			return "", apierror.New(envelope.Error.Code, envelope.Error.Message, "", resp.StatusCode)
		}
		return "", apierror.New("HTTP_ERROR", http.StatusText(resp.StatusCode), "", resp.StatusCode)
	}

	var envelope struct {
		Data model.LoginResult `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if envelope.Data.AccessToken == "" {
		return "", fmt.Errorf("refresh response missing access token")
	}

	return envelope.Data.AccessToken, nil
}

func (c *Client) fireUnauthorized() {
	c.mu.Lock()
	alreadyOut := c.signedOut
	c.signedOut = true
	hook := c.onUnauthorized
	c.mu.Unlock()

	if !alreadyOut && hook != nil {
		hook()
	}
}
