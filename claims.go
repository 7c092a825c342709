package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the payload of a short lived access token. The sid
// claim binds the token to exactly one server side session record.
type AccessClaims struct {
	jwt.RegisteredClaims
	SID  string      `json:"sid"`
	Mode SessionMode `json:"mode"`
}

// AdminID returns the subject claim
func (c *AccessClaims) AdminID() string {
	return c.RegisteredClaims.Subject
}

// SessionID returns the session record the token belongs to
func (c *AccessClaims) SessionID() string {
	return c.SID
}

// Expires returns the expiration time
func (c *AccessClaims) Expires() time.Time {
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns when the token was issued
func (c *AccessClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims == nil || claims.ID != "" {
		return
	}
	claims.ID = uuid.NewString()
}
