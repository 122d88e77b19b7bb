package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cipherstudio/cipherstudio/internal/config"
)

// maxTrackedClients caps the visitor map so hostile traffic cannot grow
// it without bound.
const maxTrackedClients = 100000

// exemptFromLimit lists paths the limiter waves through. Probes must not
// burn tokens, and the editor's WebSocket upgrade is a single long-lived
// request whose traffic is governed by the hub, not by HTTP rates.
var exemptFromLimit = map[string]bool{
	"/health":       true,
	"/health/ready": true,
	"/ws":           true,
}

// RateLimiter throttles REST traffic per client IP with a token bucket.
// Workspace edits arrive as bursts of small requests while someone types,
// so the burst size is what matters for editor responsiveness and the
// sustained rate is what protects the backend.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     float64
	burst    int
}

type visitor struct {
	tokens     float64
	refilledAt time.Time
	seenAt     time.Time
}

// NewRateLimiter builds a limiter from the rate section of the config.
func NewRateLimiter(cfg config.Rate) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     cfg.RequestsPerSecond,
		burst:    cfg.Burst,
	}
}

// Handler returns HTTP middleware enforcing the per-IP limit.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptFromLimit[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		remaining, retryAfter, allowed := rl.take(clientIP(r))

		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(time.Second).Unix()))

		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", math.Ceil(retryAfter)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// take consumes one token for the given IP. It reports the remaining
// tokens, how long until the next token when rejected, and whether the
// request may proceed.
func (rl *RateLimiter) take(ip string) (remaining int, retryAfter float64, allowed bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, ok := rl.visitors[ip]
	if !ok {
		if len(rl.visitors) >= maxTrackedClients {
			return 0, 1.0 / rl.rate, false
		}
		v = &visitor{
			tokens:     float64(rl.burst) - 1,
			refilledAt: now,
			seenAt:     now,
		}
		rl.visitors[ip] = v
		return int(v.tokens), 0, true
	}

	v.tokens = math.Min(float64(rl.burst), v.tokens+now.Sub(v.refilledAt).Seconds()*rl.rate)
	v.refilledAt = now
	v.seenAt = now

	if v.tokens < 1 {
		return 0, (1 - v.tokens) / rl.rate, false
	}
	v.tokens--
	return int(v.tokens), 0, true
}

// StartPrune spawns a goroutine that drops visitors idle longer than
// maxIdle, checking every interval. The returned func stops it.
func (rl *RateLimiter) StartPrune(interval, maxIdle time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.prune(maxIdle)
			}
		}
	}()
	return cancel
}

func (rl *RateLimiter) prune(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	for ip, v := range rl.visitors {
		if v.seenAt.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

// TrackedClients reports how many client IPs currently hold a bucket.
func (rl *RateLimiter) TrackedClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// clientIP uses RemoteAddr only. Forwarding headers are spoofable and
// would let a client dodge the limit.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
