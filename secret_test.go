package auth_test

import (
	"encoding/base64"
	"testing"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecretToken(t *testing.T) {
	a, err := auth.NewSecretToken()
	require.NoError(t, err)
	b, err := auth.NewSecretToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)

	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestSecretMatches(t *testing.T) {
	token, err := auth.NewSecretToken()
	require.NoError(t, err)

	hash := auth.HashSecret(token)
	assert.Len(t, hash, 64)
	assert.NotContains(t, hash, token)

	assert.True(t, auth.SecretMatches(token, hash))
	assert.False(t, auth.SecretMatches(token+"x", hash))
	assert.False(t, auth.SecretMatches("", hash))
	assert.False(t, auth.SecretMatches(token, ""))
}
