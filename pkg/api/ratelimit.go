package api

import (
	"net/http"
	"sync"
	"time"

	echo "github.com/labstack/echo/v5"
	"golang.org/x/time/rate"
)

// rateLimiter throttles requests per authenticated user. Location updates are
// routed around it because they carry their own ingest throttle.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*userLimiter
	rps      rate.Limit
	burst    int
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	return &rateLimiter{
		limiters: make(map[string]*userLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (r *rateLimiter) allow(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	ul, ok := r.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(r.rps, r.burst)}
		r.limiters[userID] = ul
		if len(r.limiters) > 4096 {
			r.prune(now)
		}
	}
	ul.lastSeen = now
	return ul.limiter.Allow()
}

// prune drops limiters idle for more than ten minutes. Caller holds the lock.
func (r *rateLimiter) prune(now time.Time) {
	for id, ul := range r.limiters {
		if now.Sub(ul.lastSeen) > 10*time.Minute {
			delete(r.limiters, id)
		}
	}
}

func (r *rateLimiter) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			if !r.allow(currentUser(c)) {
				return newAPIError(http.StatusTooManyRequests, kindRateLimited, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
