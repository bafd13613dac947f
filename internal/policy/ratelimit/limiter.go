// Package ratelimit implements a per-client token bucket for the submission API.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/plotter-web/internal/metrics"
)

const (
	defaultIdleTTL    = 10 * time.Minute
	defaultMaxClients = 10000
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter manages per-client rate limits.
type Limiter struct {
	mu             sync.Mutex
	buckets        map[string]*bucket
	defaultRate    rate.Limit
	defaultBurst   int
	trustForwarded bool
	idleTTL        time.Duration
	maxClients     int
	lastSweep      time.Time
	now            func() time.Time
}

// Config holds rate limiter configuration.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
	// TrustForwarded keys clients on X-Forwarded-For. Only enable behind a proxy that
	// overwrites the header.
	TrustForwarded bool
	// IdleTTL is how long an unused bucket is kept. Defaults to 10 minutes.
	IdleTTL time.Duration
	// MaxClients caps tracked buckets; the least recently seen is evicted first.
	MaxClients int
}

// New creates a new Limiter. A non-positive RPS disables limiting.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = defaultIdleTTL
	}
	maxClients := cfg.MaxClients
	if maxClients <= 0 {
		maxClients = defaultMaxClients
	}
	return &Limiter{
		buckets:        make(map[string]*bucket),
		defaultRate:    r,
		defaultBurst:   burst,
		trustForwarded: cfg.TrustForwarded,
		idleTTL:        ttl,
		maxClients:     maxClients,
		now:            time.Now,
	}
}

// Wait blocks until a token is available for client, respecting the context.
func (l *Limiter) Wait(ctx context.Context, client string) error {
	if client == "" {
		client = "unknown"
	}
	limiter := l.limiterFor(client)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(waited)
	}
	return nil
}

func (l *Limiter) limiterFor(client string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweep(now)
	}
	b, exists := l.buckets[client]
	if !exists {
		if len(l.buckets) >= l.maxClients {
			l.evictOldest()
		}
		b = &bucket{limiter: rate.NewLimiter(l.defaultRate, l.defaultBurst)}
		l.buckets[client] = b
	}
	b.lastSeen = now
	return b.limiter
}

// sweep drops buckets idle for longer than idleTTL. Callers hold mu.
func (l *Limiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// evictOldest drops the least recently seen bucket. Callers hold mu.
func (l *Limiter) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, b := range l.buckets {
		if oldestKey == "" || b.lastSeen.Before(oldest) {
			oldestKey, oldest = key, b.lastSeen
		}
	}
	delete(l.buckets, oldestKey)
}

// Clients reports how many distinct clients are currently tracked.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Key derives the limiter key for r using the limiter's forwarding policy.
func (l *Limiter) Key(r *http.Request) string {
	return ClientKey(r, l.trustForwarded)
}

// Middleware delays requests until the caller's bucket has a token. Requests are queued rather
// than rejected; only a canceled or expired request context yields 429.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := l.Wait(r.Context(), l.Key(r)); err != nil {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientKey identifies the caller: the host part of RemoteAddr, or the first X-Forwarded-For
// hop when trustForwarded is set and the header is present.
func ClientKey(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
