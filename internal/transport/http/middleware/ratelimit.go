package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/reviewhub/pkg/logger"
	"golang.org/x/time/rate"
)

// UserRateLimiter keeps one token bucket per user.
type UserRateLimiter struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*limiterEntry
	r       rate.Limit
	burst   int
	idleTTL time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUserRateLimiter allows perMinute events per user with the given burst.
func NewUserRateLimiter(perMinute float64, burst int) *UserRateLimiter {
	return &UserRateLimiter{
		users:   make(map[uuid.UUID]*limiterEntry),
		r:       rate.Limit(perMinute / 60.0),
		burst:   burst,
		idleTTL: 3 * time.Minute,
	}
}

// Allow reports whether userID may act now.
func (rl *UserRateLimiter) Allow(userID uuid.UUID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, ok := rl.users[userID]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.r, rl.burst)}
		rl.users[userID] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Sweep drops limiters idle for longer than the TTL.
func (rl *UserRateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for id, entry := range rl.users {
		if time.Since(entry.lastSeen) > rl.idleTTL {
			delete(rl.users, id)
		}
	}
}

// RunSweeper sweeps every interval until stop is closed.
func (rl *UserRateLimiter) RunSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}

// RateLimit rejects authenticated requests over the user's limit. It must run after Auth.
func RateLimit(rl *UserRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if !rl.Allow(userID) {
				logger.Warn().
					Str("user_id", userID.String()).
					Str("path", r.URL.Path).
					Msg("rate limit exceeded")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":"RATE_LIMITED","message":"Too many messages. Please slow down."}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
