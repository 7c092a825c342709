package client_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/client"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInactivityMonitorLogsOutWhenIdle(t *testing.T) {
	m, api, clock, rec := newTestManager(t, client.WithRefreshBuffer(0))
	api.ttl = time.Hour
	monitor := client.NewInactivityMonitor(m, client.WithMonitorClock(clock))
	detach := monitor.Bind(m)
	defer detach()

	require.NoError(t, m.SetTokens(api.pair("login", auth.ModeProd)))
	assert.True(t, monitor.Running())

	clock.Advance(29 * time.Minute)
	assert.True(t, m.IsAuthenticated())

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool {
		_, logouts := api.counts()
		return logouts == 1
	}, waitFor, tick)

	assert.False(t, m.IsAuthenticated())
	assert.False(t, monitor.Running())
	assert.Equal(t, []bool{true, false}, rec.get())
}

func TestInactivityMonitorActivityResetsTimer(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	var fired atomic.Int32
	monitor := client.NewInactivityMonitor(nil,
		client.WithMonitorClock(clock),
		client.WithIdleHandler(func(context.Context) { fired.Add(1) }),
	)
	monitor.Start()

	clock.Advance(29 * time.Minute)
	assert.True(t, monitor.RecordActivity(client.ActivityKey))

	clock.Advance(29 * time.Minute)
	assert.Never(t, func() bool { return fired.Load() > 0 }, 50*time.Millisecond, tick)

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, waitFor, tick)
}

func TestInactivityMonitorDebounce(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	monitor := client.NewInactivityMonitor(nil,
		client.WithMonitorClock(clock),
		client.WithIdleHandler(func(context.Context) {}),
	)

	assert.False(t, monitor.RecordActivity(client.ActivityPointer), "stopped monitor ignores activity")

	monitor.Start()
	clock.Advance(500 * time.Millisecond)
	assert.False(t, monitor.RecordActivity(client.ActivityPointer))

	clock.Advance(600 * time.Millisecond)
	assert.True(t, monitor.RecordActivity(client.ActivityScroll))
	assert.False(t, monitor.RecordActivity(client.ActivityTouch))

	clock.Advance(2 * time.Second)
	assert.False(t, monitor.RecordActivity(client.ActivityKind("resize")))
	assert.True(t, monitor.RecordActivity(client.ActivityFocus))
}

func TestInactivityMonitorBindFollowsAuthState(t *testing.T) {
	m, api, clock, _ := newTestManager(t)
	monitor := client.NewInactivityMonitor(m, client.WithMonitorClock(clock))
	detach := monitor.Bind(m)

	assert.False(t, monitor.Running())
	require.NoError(t, m.SetTokens(api.pair("login", auth.ModeDev)))
	assert.True(t, monitor.Running())

	m.Clear()
	assert.False(t, monitor.Running())

	require.NoError(t, m.SetTokens(api.pair("login", auth.ModeDev)))
	detach()
	assert.False(t, monitor.Running())
}
