package middleware

import (
	"net/http"
	"time"
)

const timeoutBody = `{"success":false,"error":{"code":"REQUEST_TIMEOUT","message":"Request timed out"}}`

// Timeout bounds handler execution so a stalled database call cannot hold a
// connection open indefinitely.
func Timeout(limit time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = 30 * time.Second
	}

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, limit, timeoutBody)
	}
}
