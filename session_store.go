package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// ErrSessionNotFound the store has no usable record for the token hash
var ErrSessionNotFound = errors.New("session not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// SessionStore persists session records keyed by the session token hash
type SessionStore interface {
	Create(ctx context.Context, record *SessionRecord) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*SessionRecord, error)
	// Touch marks a refresh. It fails with ErrSessionNotFound for revoked
	// records so a refresh racing a revocation can not win.
	Touch(ctx context.Context, tokenHash string, at time.Time) error
	Revoke(ctx context.Context, tokenHash string, at time.Time) (bool, error)
	RevokeAdmin(ctx context.Context, adminID string, at time.Time) (int, error)
}

// SessionPruner is implemented by stores that need explicit cleanup
type SessionPruner interface {
	PruneExpired(ctx context.Context, before time.Time) (int, error)
}
