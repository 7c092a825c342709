package client

import (
	"time"

	auth "github.com/goliatone/go-admin-auth"
)

// AuthState is the client side view of the current session
type AuthState struct {
	AccessToken  string
	SessionToken string
	Expiry       time.Time
	DevMode      bool
	AdminID      string
}

// Valid reports whether both tokens are present and the access token
// has not expired at now.
func (s AuthState) Valid(now time.Time) bool {
	return s.AccessToken != "" && s.SessionToken != "" && now.Before(s.Expiry)
}

func (s AuthState) Mode() auth.SessionMode {
	if s.DevMode {
		return auth.ModeDev
	}
	return auth.ModeProd
}

func stateFromPair(pair *auth.TokenPair) AuthState {
	return AuthState{
		AccessToken:  pair.AccessToken,
		SessionToken: pair.SessionToken,
		Expiry:       pair.ExpiresAt,
		DevMode:      pair.Mode == auth.ModeDev,
		AdminID:      pair.AdminID,
	}
}
