package client_test

import (
	"testing"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/client"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func click(g *client.EntryGate, n int) bool {
	opened := false
	for i := 0; i < n; i++ {
		opened = g.RegisterInteraction()
	}
	return opened
}

func TestEntryGateOpensOnThreshold(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	gate := client.NewEntryGate(client.WithGateClock(clock))

	assert.ErrorIs(t, gate.CheckGrant(), auth.ErrGrantExpired)
	assert.False(t, click(gate, 9))
	assert.True(t, gate.RegisterInteraction())
	assert.NoError(t, gate.CheckGrant())

	// the count starts over after a grant: 11 to 19 do nothing, 20 grants
	assert.False(t, gate.RegisterInteraction())
	assert.False(t, click(gate, 8))
	assert.True(t, gate.RegisterInteraction())

	gate.Revoke()
	assert.ErrorIs(t, gate.CheckGrant(), auth.ErrGrantExpired)
}

func TestEntryGatePauseResetsCount(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	gate := client.NewEntryGate(client.WithGateClock(clock))

	assert.False(t, click(gate, 9))
	clock.Advance(4 * time.Second)
	assert.False(t, gate.RegisterInteraction())
	assert.ErrorIs(t, gate.CheckGrant(), auth.ErrGrantExpired)

	// short gaps keep counting
	assert.False(t, click(gate, 8))
	clock.Advance(2 * time.Second)
	assert.True(t, gate.RegisterInteraction())
}

func TestEntryGateFreshWindow(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	store := client.NewMemoryGrantStore()
	gate := client.NewEntryGate(client.WithGateClock(clock), client.WithGrantStore(store))

	require.True(t, click(gate, 10))
	stored, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)

	clock.Advance(30 * time.Second)
	assert.NoError(t, gate.CheckGrant())

	clock.Advance(time.Second)
	assert.ErrorIs(t, gate.CheckGrant(), auth.ErrGrantExpired)

	stored, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, stored, "stale grant is removed from the store too")
}

func TestEntryGateRecoveredGrant(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	store := client.NewFileGrantStore(t.TempDir() + "/grant.json")

	first := client.NewEntryGate(client.WithGateClock(clock), client.WithGrantStore(store))
	require.True(t, click(first, 10))

	clock.Advance(4 * time.Minute)
	reloaded := client.NewEntryGate(client.WithGateClock(clock), client.WithGrantStore(store))
	assert.NoError(t, reloaded.CheckGrant())

	clock.Advance(2 * time.Minute)
	again := client.NewEntryGate(client.WithGateClock(clock), client.WithGrantStore(store))
	assert.ErrorIs(t, again.CheckGrant(), auth.ErrGrantExpired)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestEntryGateRejectsFutureGrant(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	store := client.NewMemoryGrantStore()
	require.NoError(t, store.Save(client.Grant{GrantedAt: testEpoch.AddDate(1, 0, 0)}))

	gate := client.NewEntryGate(client.WithGateClock(clock), client.WithGrantStore(store))
	clock.Advance(24 * time.Hour)
	assert.ErrorIs(t, gate.CheckGrant(), auth.ErrGrantExpired)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)
}
