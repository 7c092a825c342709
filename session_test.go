package auth_test

import (
	"encoding/json"
	"testing"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/middleware/jwtware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionObject(t *testing.T) {
	session := &auth.Session{
		ID:               "4c2b0c3e-1f7a-4b57-9d6c-3a1e8a7f0b11",
		AdminID:          "admin",
		Mode:             auth.ModeProd,
		IssuedAt:         testEpoch,
		ExpiresAt:        testEpoch.Add(15 * time.Minute),
		SessionExpiresAt: testEpoch.Add(12 * time.Hour),
	}

	var view jwtware.Session = session
	assert.Equal(t, "admin", view.GetAdminID())
	assert.Equal(t, session.ID, view.GetSessionID())
	assert.Equal(t, "prod", view.GetMode())
	assert.Equal(t, testEpoch.Add(15*time.Minute), view.GetExpiresAt())

	raw, err := json.Marshal(session)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "admin", decoded["adminId"])
	assert.Equal(t, "prod", decoded["mode"])
	assert.Contains(t, decoded, "sessionExpiresAt")
	assert.NotContains(t, decoded, "token_hash")
}
