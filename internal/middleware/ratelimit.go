package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"advisory-cms/internal/model"
)

const (
	authPathPrefix  = "/admin/auth"
	maxTrackedIPs   = 1000
	staleVisitorAge = 10 * time.Minute
)

type visitor struct {
	general *rate.Limiter
	auth    *rate.Limiter
	seen    time.Time
}

// RateLimitMiddleware keeps a token bucket per client IP. The auth endpoints
// get a second, much smaller bucket so credential stuffing burns out long
// before the general limit does.
type RateLimitMiddleware struct {
	generalRPM int
	authRPM    int

	mu       sync.Mutex
	visitors map[string]*visitor
}

func NewRateLimitMiddleware(generalRPM int, authRPM int) *RateLimitMiddleware {
	if generalRPM <= 0 {
		generalRPM = 300
	}
	if authRPM <= 0 {
		authRPM = 20
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		authRPM:    authRPM,
		visitors:   make(map[string]*visitor),
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := m.visitor(clientIP(r))

		bucket := v.general
		if strings.HasPrefix(strings.ToLower(r.URL.Path), authPathPrefix) {
			bucket = v.auth
		}

		if !bucket.Allow() {
			m.reject(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) reject(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "60")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    "RATE_LIMITED",
			Message: "Too many requests",
		},
	})
}

func (m *RateLimitMiddleware) visitor(ip string) *visitor {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.visitors[ip]; ok {
		v.seen = time.Now()
		return v
	}

	if len(m.visitors) >= maxTrackedIPs {
		m.evictStaleLocked()
	}

	v := &visitor{
		general: rate.NewLimiter(perMinute(m.generalRPM), m.generalRPM),
		auth:    rate.NewLimiter(perMinute(m.authRPM), m.authRPM),
		seen:    time.Now(),
	}
	m.visitors[ip] = v
	return v
}

func (m *RateLimitMiddleware) evictStaleLocked() {
	cutoff := time.Now().Add(-staleVisitorAge)
	for ip, v := range m.visitors {
		if v.seen.Before(cutoff) {
			delete(m.visitors, ip)
		}
	}
}

func perMinute(rpm int) rate.Limit {
	return rate.Every(time.Minute / time.Duration(rpm))
}

// clientIP trusts proxy headers first; the service is expected to sit behind
// a reverse proxy in production.
func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}
