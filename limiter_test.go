package auth_test

import (
	"testing"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestAttemptLimiter(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	limiter := auth.NewAttemptLimiter(3, 3).WithClock(clock)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("dev:+917073829447"), "attempt %d", i)
	}
	assert.False(t, limiter.Allow("dev:+917073829447"))
	assert.True(t, limiter.Allow("dev:+910000000000"), "buckets are per identifier")

	clock.Advance(20 * time.Second)
	assert.True(t, limiter.Allow("dev:+917073829447"))
	assert.False(t, limiter.Allow("dev:+917073829447"))

	limiter.Reset("dev:+917073829447")
	assert.True(t, limiter.Allow("dev:+917073829447"))

	var nilLimiter *auth.AttemptLimiter
	assert.True(t, nilLimiter.Allow("x"))
}

func TestAssertionLedger(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	ledger := auth.NewAssertionLedger(16, time.Hour).WithClock(clock)

	exp := testEpoch.Add(10 * time.Minute)
	assert.True(t, ledger.Consume("a1", exp))
	assert.False(t, ledger.Consume("a1", exp))
	assert.True(t, ledger.Consume("a2", exp))
	assert.False(t, ledger.Consume("", exp))

	clock.Advance(11 * time.Minute)
	assert.True(t, ledger.Consume("a1", testEpoch.Add(time.Hour)), "expired assertions no longer block")
}
