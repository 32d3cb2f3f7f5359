package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows credentialed requests so the browser sends the refresh cookie
// to /admin/auth/refresh-token. Credentials cannot be combined with a
// wildcard origin, so "*" falls back to reflecting the request origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Length", "X-Request-ID"},
		MaxAge:           3600,
		AllowCredentials: true,
	}

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		options.AllowedOrigins = nil
		options.AllowOriginFunc = func(origin string) bool { return origin != "" }
	}

	return cors.New(options).Handler
}
