package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-admin-auth/middleware/jwtware"
)

// ValidationListener aliases the jwtware listener so consumers can use auth helpers directly.
type ValidationListener = jwtware.ValidationListener

// ContextEnricherAdapter stores the validated *Session in the standard
// context for downstream handlers.
func ContextEnricherAdapter(c context.Context, s jwtware.Session) context.Context {
	session, ok := s.(*Session)
	if !ok || session == nil {
		return c
	}
	return WithSessionContext(c, session)
}

// RegisterValidationListeners appends listeners to a jwtware.Config in a safe, reusable way.
func RegisterValidationListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	cfg.ValidationListeners = append(cfg.ValidationListeners, listeners...)
}

// RequireMode rejects sessions that were not established in mode.
func RequireMode(mode SessionMode) ValidationListener {
	return func(_ *fiber.Ctx, s jwtware.Session) error {
		if s == nil || s.GetMode() != mode.String() {
			return ErrSessionInvalid
		}
		return nil
	}
}
