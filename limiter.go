package auth

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	limiterCacheSize = 4096
	limiterIdleTTL   = 15 * time.Minute
)

// AttemptLimiter keeps one token bucket per identifier. Idle buckets are
// evicted so arbitrary identifiers cannot grow memory without bound.
type AttemptLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
	clock    clockwork.Clock
}

// NewAttemptLimiter allows perMinute attempts per identifier with burst
func NewAttemptLimiter(perMinute, burst int) *AttemptLimiter {
	if perMinute <= 0 {
		perMinute = 5
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &AttemptLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](limiterCacheSize, nil, limiterIdleTTL),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		clock:    clockwork.NewRealClock(),
	}
}

// WithClock sets the clock buckets refill against
func (l *AttemptLimiter) WithClock(clock clockwork.Clock) *AttemptLimiter {
	if clock != nil {
		l.clock = clock
	}
	return l
}

// Allow consumes one attempt for key
func (l *AttemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(key, limiter)
	}
	return limiter.AllowN(l.clock.Now(), 1)
}

// Reset forgets the bucket for key, used after a successful login
func (l *AttemptLimiter) Reset(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiters.Remove(key)
}
