package rpc

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"nftstake/observability"
)

const visitorTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter applies a token bucket per client address.
type rateLimiter struct {
	perMinute int
	burst     int

	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

func newRateLimiter(perMinute, burst int) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &rateLimiter{
		perMinute: perMinute,
		burst:     burst,
		visitors:  make(map[string]*visitor),
		now:       time.Now,
	}
}

func (l *rateLimiter) allow(source string) bool {
	if l == nil || l.perMinute <= 0 {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(l.visitors, key)
		}
	}
	v, ok := l.visitors[source]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.burst)}
		l.visitors[source] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware rejects requests once the client exhausts its bucket.
func (l *rateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientSource(r)) {
			observability.ModuleMetrics().RecordThrottle("rpc", "rate_limit")
			w.Header().Set("Content-Type", "application/json")
			writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if candidate := strings.TrimSpace(first); candidate != "" {
			return candidate
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
