// Package ratelimit implements a per-client sliding-window request limiter.
package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Decision is the outcome of one Take.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Store records hits and counts them over a trailing window. A hit at t
// counts while now-t < window. Rejected requests are not recorded.
type Store interface {
	Take(ctx context.Context, key string, now time.Time, limit int, window time.Duration) (Decision, error)
}

// Config holds rate limiter configuration
type Config struct {
	Requests        int
	Window          time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig allows 100 requests per client per minute.
func DefaultConfig() Config {
	return Config{
		Requests:        100,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Requests <= 0 {
		c.Requests = def.Requests
	}
	if c.Window <= 0 {
		c.Window = def.Window
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = def.CleanupInterval
	}
	return c
}

// Limiter gates requests through a Store.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewLimiter(config Config, store Store) *Limiter {
	config = config.withDefaults()
	return &Limiter{
		store:  store,
		limit:  config.Requests,
		window: config.Window,
		now:    time.Now,
	}
}

// WithClock replaces the limiter clock.
func (rl *Limiter) WithClock(now func() time.Time) *Limiter {
	rl.now = now
	return rl
}

// Allow records a request for key. Store failures let the request through.
func (rl *Limiter) Allow(ctx context.Context, key string) Decision {
	d, err := rl.store.Take(ctx, key, rl.now(), rl.limit, rl.window)
	if err != nil {
		slog.WarnContext(ctx, "Rate limit store unavailable, allowing request",
			"component", "ratelimit", "client_ip", key, "error", err)
		return Decision{Allowed: true, Remaining: rl.limit}
	}
	return d
}

// Middleware rejects over-limit clients before the request reaches next.
// onLimit writes the rejection; nil falls back to a plain 429.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request, Decision)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := rl.Allow(r.Context(), extractIP(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds(d.RetryAfter)))
				if onLimit != nil {
					onLimit(w, r, d)
				} else {
					http.Error(w, "Rate limit exceeded. Too many requests.", http.StatusTooManyRequests)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RetryAfterSeconds rounds up to whole seconds, minimum one.
func RetryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
