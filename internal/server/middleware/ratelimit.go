package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// RateLimitOptions tunes RateLimit.
type RateLimitOptions struct {
	Limit  int
	Window time.Duration
	// Exempt paths are not counted.
	Exempt []string
	// TrustedProxies are the peers whose forwarding headers name the client.
	TrustedProxies []netip.Prefix
}

// RateLimit allows each client IP opts.Limit requests per opts.Window. A
// limiter error lets the request through.
func RateLimit(limiter domain.RateLimiter, opts RateLimitOptions, logger *slog.Logger) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(max(1, int(opts.Window.Seconds())))
	limitHeader := strconv.Itoa(opts.Limit)
	skip := make(map[string]bool, len(opts.Exempt))
	for _, p := range opts.Exempt {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := "api:" + clientIP(r, opts.TrustedProxies)
			allowed, err := limiter.Allow(r.Context(), key, opts.Limit, opts.Window)
			if err != nil {
				logger.WarnContext(r.Context(), "ratelimit: limiter unavailable",
					slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", limitHeader)
			if !allowed {
				w.Header().Set("Retry-After", retryAfter)
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP is the peer address unless the peer is a trusted proxy. Behind a
// trusted proxy, X-Forwarded-For is walked right to left and the first hop
// that is not itself trusted is the client; X-Real-IP is the fallback.
// Addresses are normalised so "::ffff:1.2.3.4" and "1.2.3.4" share a bucket.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	peerAddr, err := netip.ParseAddr(peer)
	if err != nil {
		return peer
	}
	peerAddr = peerAddr.Unmap()
	if !isTrusted(peerAddr, trusted) {
		return peerAddr.String()
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			hop = hop.Unmap()
			if !isTrusted(hop, trusted) {
				return hop.String()
			}
		}
	}
	if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xri.Unmap().String()
	}
	return peerAddr.String()
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
