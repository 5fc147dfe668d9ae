/**
 * @description
 * Rate limiting middleware for the public place-search endpoints. Counting happens
 * in Redis so every replica shares the same window.
 */
package api

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/swipesavvy/claim-service/internal/app"
)

// RateLimiter counts one request per scope and subject in a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (app.RateDecision, error)
}

// RateLimitMiddleware rejects clients that exceed perMinute requests with 429. Limiter
// errors are logged and the request is allowed through.
func RateLimitMiddleware(limiter RateLimiter, scope string, perMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || perMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)
			decision, err := limiter.Allow(r.Context(), scope, clientIP, perMinute, time.Minute)
			if err != nil {
				log.Printf("level=warn component=rate_limit scope=%s msg=\"limiter unavailable; allowing request\" err=%v", scope, err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfterSeconds()))
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP returns the caller address. middleware.RealIP has already folded
// X-Forwarded-For and X-Real-IP into RemoteAddr.
func getClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
