// Per-client request limiting for the live stream endpoint. Each remote
// address gets its own token bucket, so one client cannot exhaust the
// connection budget of another.
package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter hands out a token bucket per client address.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	every   rate.Limit
	burst   int
	period  time.Duration
	now     func() time.Time
	swept   time.Time
}

type clientLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewRateLimiter allows limit requests per client per period, all of which
// may arrive at once.
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	every := rate.Limit(0)
	if limit > 0 {
		every = rate.Every(period / time.Duration(limit))
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		every:   every,
		burst:   max(limit, 0),
		period:  period,
		now:     time.Now,
	}
}

// Allow consumes one request for client and reports whether it was within
// the limit.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	c, ok := rl.clients[client]
	if !ok {
		c = &clientLimiter{lim: rate.NewLimiter(rl.every, rl.burst)}
		rl.clients[client] = c
	}
	c.seen = now
	return c.lim.AllowN(now, 1)
}

// RetryAfter returns whole seconds until client may make another request.
func (rl *RateLimiter) RetryAfter(client string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[client]
	if !ok {
		return 0
	}
	now := rl.now()
	r := c.lim.ReserveN(now, 1)
	if !r.OK() {
		return int(math.Ceil(rl.period.Seconds()))
	}
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return int(math.Ceil(delay.Seconds()))
}

// sweep drops clients idle for a full period at most once per period. Their
// buckets have refilled by then. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.swept) < rl.period {
		return
	}
	rl.swept = now
	for client, c := range rl.clients {
		if now.Sub(c.seen) >= rl.period {
			delete(rl.clients, client)
		}
	}
}

// clientAddr returns the first X-Forwarded-For hop, or the remote host.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware wraps a handler with rate limiting. Returns 429 if exceeded.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := clientAddr(r)
		if !rl.Allow(client) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter(client)))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
