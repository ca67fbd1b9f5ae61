// Package middleware holds HTTP middleware for the API surface.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimiter limits requests per client IP.
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*rate.Limiter

	ratePerSecond rate.Limit
	burst         int
}

// NewRateLimiter creates a per-key limiter. The LLM path is the expensive
// leg, so the defaults are deliberately low.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &RateLimiter{
		limits:        make(map[string]*rate.Limiter),
		ratePerSecond: rate.Limit(perSecond),
		burst:         burst,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limits[key]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rl.ratePerSecond, rl.burst)
	rl.limits[key] = limiter
	return limiter
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Middleware returns an echo middleware rejecting over-limit clients with
// 429.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(c.RealIP()) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}

// Prune drops limiters that have been idle long enough to refill
// completely. Called periodically by the server loop.
func (rl *RateLimiter) Prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, limiter := range rl.limits {
		if limiter.Tokens() >= float64(rl.burst) {
			delete(rl.limits, key)
		}
	}
}

// StartPruning prunes idle limiters on the given interval until stop is
// closed.
func (rl *RateLimiter) StartPruning(stop <-chan struct{}, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.Prune()
		case <-stop:
			return
		}
	}
}
