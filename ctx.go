package auth

import (
	"context"
)

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSessionContext sets the Session in the given context
func WithSessionContext(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext finds the session a protected request carries.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(sessionCtxKey).(*Session)
	return session, ok && session != nil
}

// AdminIDFromContext returns the admin behind the request session
func AdminIDFromContext(ctx context.Context) (string, bool) {
	session, ok := SessionFromContext(ctx)
	if !ok || session.AdminID == "" {
		return "", false
	}
	return session.AdminID, true
}

// InMode is a convenience function to check how the request session was
// established.
func InMode(ctx context.Context, mode SessionMode) bool {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return false
	}
	return session.Mode == mode
}
