// Package ratelimit enforces per-client request quotas. The algorithm is a
// plain fixed window per client key; only the rejection effect matters to
// the rest of the system.
package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/apperr"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/metrics"
)

// Quotas carried over from the reference deployment.
const (
	UploadWindow = 15 * time.Minute
	UploadMax    = 5
	APIWindow    = 1 * time.Minute
	APIMax       = 100
)

type window struct {
	start time.Time
	count int
}

// Limiter tracks request counts per client key within a fixed window.
type Limiter struct {
	mu      sync.Mutex
	max     int
	span    time.Duration
	windows map[string]*window
	now     func() time.Time
}

// NewLimiter creates a limiter allowing max requests per span per key.
func NewLimiter(max int, span time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		span:    span,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// SetClock replaces the time source. Test hook.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// Allow records one request for key and reports whether it is within quota.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.span {
		l.windows[key] = &window{start: now, count: 1}
		return true
	}
	if w.count >= l.max {
		return false
	}
	w.count++
	return true
}

// Middleware rejects over-quota requests with 429, keyed by client IP.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientKey(r)) {
			metrics.RateLimitRejections.Inc()
			err := apperr.RateLimited()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(err.Code)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey extracts the client IP, ignoring the port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
