package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-admin-auth"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestTokenService(clock clockwork.Clock) *auth.TokenServiceImpl {
	return auth.NewTokenService([]byte(testSigningKey), 15*time.Minute, "test-issuer", jwt.ClaimStrings{"admin"}, nil).
		WithClock(clock)
}

func testRecord(clock clockwork.Clock) *auth.SessionRecord {
	return &auth.SessionRecord{
		ID:        uuid.New(),
		AdminID:   "admin",
		Mode:      auth.ModeProd,
		CreatedAt: clock.Now(),
		ExpiresAt: clock.Now().Add(12 * time.Hour),
	}
}

func TestMintAccessToken(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	ts := newTestTokenService(clock)
	record := testRecord(clock)

	token, exp, err := auth.MintAccessToken(ts, record, auth.AccessTokenOptions{})
	require.NoError(t, err)
	assert.Equal(t, testEpoch.Add(15*time.Minute), exp)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.AdminID())
	assert.Equal(t, record.ID.String(), claims.SessionID())
	assert.Equal(t, auth.ModeProd, claims.Mode)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, claims.Expires().Equal(exp))
	assert.True(t, claims.IssuedAt().Equal(testEpoch))
}

func TestMintAccessTokenClampedToSession(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	ts := newTestTokenService(clock)
	record := testRecord(clock)
	record.ExpiresAt = testEpoch.Add(5 * time.Minute)

	_, exp, err := auth.MintAccessToken(ts, record, auth.AccessTokenOptions{})
	require.NoError(t, err)
	assert.Equal(t, record.ExpiresAt, exp)

	record.ExpiresAt = testEpoch
	_, _, err = auth.MintAccessToken(ts, record, auth.AccessTokenOptions{})
	assert.ErrorIs(t, err, auth.ErrSessionInvalid)
}

func TestMintAccessTokenRequiresInputs(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	_, _, err := auth.MintAccessToken(nil, testRecord(clock), auth.AccessTokenOptions{})
	assert.Error(t, err)

	_, _, err = auth.MintAccessToken(newTestTokenService(clock), nil, auth.AccessTokenOptions{})
	assert.Error(t, err)
}

func TestTokenServiceValidateExpiry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	ts := newTestTokenService(clock)

	token, _, err := auth.MintAccessToken(ts, testRecord(clock), auth.AccessTokenOptions{})
	require.NoError(t, err)

	clock.Advance(16 * time.Minute)

	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)

	claims, err := ts.Inspect(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.AdminID())
}

func TestTokenServiceRejectsForeignTokens(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	ts := newTestTokenService(clock)
	record := testRecord(clock)

	t.Run("other signing key", func(t *testing.T) {
		other := auth.NewTokenService([]byte("another-key-another-key-another!!"), time.Minute, "test-issuer", jwt.ClaimStrings{"admin"}, nil).
			WithClock(clock)
		token, _, err := auth.MintAccessToken(other, record, auth.AccessTokenOptions{})
		require.NoError(t, err)

		_, err = ts.Validate(token)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
		_, err = ts.Inspect(token)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})

	t.Run("other issuer", func(t *testing.T) {
		token, _, err := auth.MintAccessToken(ts, record, auth.AccessTokenOptions{Issuer: "someone-else"})
		require.NoError(t, err)

		_, err = ts.Validate(token)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
		_, err = ts.Inspect(token)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})

	t.Run("other audience", func(t *testing.T) {
		token, _, err := auth.MintAccessToken(ts, record, auth.AccessTokenOptions{Audience: []string{"public"}})
		require.NoError(t, err)

		_, err = ts.Inspect(token)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ts.Validate("not-a-token")
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})

	t.Run("none algorithm", func(t *testing.T) {
		claims := &auth.AccessClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "test-issuer",
				Subject:   "admin",
				Audience:  jwt.ClaimStrings{"admin"},
				ExpiresAt: jwt.NewNumericDate(testEpoch.Add(time.Hour)),
			},
			SID: uuid.NewString(),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = ts.Inspect(token)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed)
	})
}
