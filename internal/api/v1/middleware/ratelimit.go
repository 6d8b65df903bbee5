package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/caia/concierge/internal/config"
	"github.com/caia/concierge/pkg/httpext"
	"github.com/caia/concierge/pkg/logger"
	"github.com/caia/concierge/pkg/ratelimit"
)

// RateLimit applies the RATELIMIT_* settings registered under limitKey.
func RateLimit(limitKey string) func(http.Handler) http.Handler {
	cfg := config.GetRateLimitConfig(limitKey)
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return RateLimitWith(limitKey, ratelimit.NewLimiter(cfg.Window, cfg.MaxHits), int(cfg.Window.Seconds()))
}

// RateLimitWith limits requests per client address with an explicit limiter.
func RateLimitWith(limitKey string, limiter *ratelimit.Limiter, retryAfterSeconds int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !limiter.Allow(ip) {
				logger.Warn(logger.MIDDLEWARE, "Rate limit exceeded for %s on %s", ip, limitKey)
				if retryAfterSeconds > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
				}
				httpext.JsonError(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP uses the first X-Forwarded-For hop when behind a proxy, otherwise
// the remote address without its port.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
