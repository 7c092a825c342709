package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AdminCredential stores the hash of the admin QR payload. There is at most
// one row per admin, reissuing overwrites it.
type AdminCredential struct {
	bun.BaseModel `bun:"table:admin_credentials,alias:acr"`
	AdminID       string     `bun:"admin_id,pk" json:"admin_id"`
	SecretHash    string     `bun:"secret_hash,notnull" json:"-"`
	IssuedAt      time.Time  `bun:"issued_at,notnull" json:"issued_at"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// SessionRecord is the server side half of a session. Only the hash of the
// session token is stored.
type SessionRecord struct {
	bun.BaseModel `bun:"table:admin_sessions,alias:ses"`
	ID            uuid.UUID   `bun:"id,pk,type:uuid" json:"id"`
	TokenHash     string      `bun:"token_hash,notnull,unique" json:"token_hash"`
	AdminID       string      `bun:"admin_id,notnull" json:"admin_id"`
	Mode          SessionMode `bun:"mode,notnull" json:"mode"`
	CreatedAt     time.Time   `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt     time.Time   `bun:"expires_at,notnull" json:"expires_at"`
	RefreshedAt   *time.Time  `bun:"refreshed_at,nullzero" json:"refreshed_at,omitempty"`
	RevokedAt     *time.Time  `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
}

// Active reports whether the record can still back a token at t
func (r *SessionRecord) Active(t time.Time) bool {
	if r == nil || r.RevokedAt != nil {
		return false
	}
	return t.Before(r.ExpiresAt)
}
