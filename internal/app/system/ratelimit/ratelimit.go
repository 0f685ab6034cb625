// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"golang.org/x/time/rate"
)

// Limiter is a token bucket per key (user handle or client IP).
// It is safe for concurrent use.
type Limiter struct {
	mu         sync.Mutex
	entries    map[string]*entry
	rate       rate.Limit
	burst      int
	idle       time.Duration
	maxEntries int
	now        func() time.Time
}

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// PerMinute builds a limiter allowing n events per minute per key with a
// burst of n. n <= 0 disables limiting.
func PerMinute(n int) *Limiter {
	if n <= 0 {
		return New(rate.Inf, 0)
	}
	return New(rate.Limit(float64(n)/60.0), n)
}

// New creates a limiter. Keys idle for 10 minutes are forgotten.
func New(r rate.Limit, burst int) *Limiter {
	return &Limiter{
		entries:    make(map[string]*entry),
		rate:       r,
		burst:      burst,
		idle:       10 * time.Minute,
		maxEntries: 10000,
		now:        time.Now,
	}
}

// Allow reports whether one more event for key fits in its bucket.
func (l *Limiter) Allow(key string) bool {
	if l == nil || l.rate == rate.Inf {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= l.maxEntries {
			l.sweep(now)
		}
		e = &entry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.entries[key] = e
	}
	e.lastAccess = now
	return e.limiter.AllowN(now, 1)
}

// sweep drops idle keys; if none are idle, the oldest goes.
func (l *Limiter) sweep(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, e := range l.entries {
		if now.Sub(e.lastAccess) > l.idle {
			delete(l.entries, k)
			continue
		}
		if oldestKey == "" || e.lastAccess.Before(oldest) {
			oldestKey, oldest = k, e.lastAccess
		}
	}
	if len(l.entries) >= l.maxEntries && oldestKey != "" {
		delete(l.entries, oldestKey)
	}
}

// Middleware rejects requests over the limit for key(r) with 429.
// An empty key is never limited.
func (l *Limiter) Middleware(key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if k := key(r); k != "" && !l.Allow(k) {
				w.Header().Set("Retry-After", "60")
				apperr.Write(w, nil, apperr.RateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client IP from an HTTP request.
// It checks X-Forwarded-For and X-Real-IP headers first (for proxied requests),
// then falls back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
