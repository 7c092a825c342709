package auth_test

import (
	"testing"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/stretchr/testify/assert"
)

func TestSessionRecordActive(t *testing.T) {
	revokedAt := testEpoch.Add(-time.Minute)

	cases := []struct {
		name   string
		record *auth.SessionRecord
		at     time.Time
		active bool
	}{
		{
			name:   "nil record",
			record: nil,
			at:     testEpoch,
			active: false,
		},
		{
			name:   "live",
			record: &auth.SessionRecord{ExpiresAt: testEpoch.Add(time.Hour)},
			at:     testEpoch,
			active: true,
		},
		{
			name:   "expiry is exclusive",
			record: &auth.SessionRecord{ExpiresAt: testEpoch},
			at:     testEpoch,
			active: false,
		},
		{
			name:   "revoked",
			record: &auth.SessionRecord{ExpiresAt: testEpoch.Add(time.Hour), RevokedAt: &revokedAt},
			at:     testEpoch,
			active: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.active, tc.record.Active(tc.at))
		})
	}
}

func TestSessionModeValid(t *testing.T) {
	assert.True(t, auth.ModeDev.Valid())
	assert.True(t, auth.ModeProd.Valid())
	assert.False(t, auth.SessionMode("").Valid())
	assert.False(t, auth.SessionMode("staging").Valid())
	assert.Equal(t, "prod", auth.ModeProd.String())
}
