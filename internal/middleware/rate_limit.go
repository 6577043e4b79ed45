package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/saurabhp75/epic-web/internal/auth"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultAuthRateLimit returns the rate limit for credential endpoints.
// Login, signup, and code submission all share this budget per IP.
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
	}
}

// DefaultAPIRateLimit returns the general per-user rate limit
func DefaultAPIRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 120,
	}
}

func writeLimitExceeded(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"Rate limit exceeded"}`))
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(writeLimitExceeded),
	)
}

// RateLimitByUser creates a middleware that rate limits by authenticated user,
// falling back to client IP for anonymous requests
func RateLimitByUser(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if user := auth.GetUserFromContext(r); user != nil {
				return "user:" + user.ID, nil
			}
			return httprate.KeyByRealIP(r)
		}),
		httprate.WithLimitHandler(writeLimitExceeded),
	)
}
