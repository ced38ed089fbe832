package intent

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRatePerMinute is the per-user oracle quota when none is configured.
const DefaultRatePerMinute = 20

// RateLimiter holds one token bucket per user. Buckets for users that have
// been idle for longer than idleTTL are dropped on the next call.
type RateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	users   map[string]*userBucket
	now     func() time.Time
}

type userBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute calls per user per minute, with bursts
// of up to perMinute. perMinute <= 0 uses DefaultRatePerMinute.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = DefaultRatePerMinute
	}
	return &RateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		idleTTL: 10 * time.Minute,
		users:   make(map[string]*userBucket),
		now:     time.Now,
	}
}

// Allow reports whether user may make another call now and consumes a
// token if so.
func (r *RateLimiter) Allow(user string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, b := range r.users {
		if now.Sub(b.lastSeen) > r.idleTTL {
			delete(r.users, id)
		}
	}

	b, ok := r.users[user]
	if !ok {
		b = &userBucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.users[user] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}
