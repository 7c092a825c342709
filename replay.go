package auth

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
)

// AssertionLedger remembers consumed identity assertions until they
// expire so each one completes at most one login.
type AssertionLedger struct {
	mu    sync.Mutex
	seen  *expirable.LRU[string, time.Time]
	clock clockwork.Clock
}

// NewAssertionLedger keeps at most size entries, each for at most ttl
func NewAssertionLedger(size int, ttl time.Duration) *AssertionLedger {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AssertionLedger{
		seen:  expirable.NewLRU[string, time.Time](size, nil, ttl),
		clock: clockwork.NewRealClock(),
	}
}

// WithClock sets the clock used to age entries
func (l *AssertionLedger) WithClock(clock clockwork.Clock) *AssertionLedger {
	if clock != nil {
		l.clock = clock
	}
	return l
}

// Consume records id and reports whether it was unused. expiresAt is the
// assertion expiry, after which a stored entry no longer blocks.
func (l *AssertionLedger) Consume(id string, expiresAt time.Time) bool {
	if id == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if until, ok := l.seen.Get(id); ok && now.Before(until) {
		return false
	}
	if expiresAt.IsZero() || !expiresAt.After(now) {
		expiresAt = now.Add(time.Hour)
	}
	l.seen.Add(id, expiresAt)
	return true
}
