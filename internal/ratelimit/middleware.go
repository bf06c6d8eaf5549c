package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// Middleware rejects requests with 429 once the client IP exhausts its bucket.
// onLimited writes the rejection body; nil writes a bare status.
func Middleware(krl *KeyedRateLimiter, logger *slog.Logger, onLimited http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if krl.Allow(ip) {
				next.ServeHTTP(w, r)
				return
			}

			if logger != nil {
				logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			}
			w.Header().Set("Retry-After", strconv.Itoa(1))
			if onLimited != nil {
				onLimited(w, r)
				return
			}
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the remote address without port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
