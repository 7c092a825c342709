package jwtware_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-admin-auth/middleware/jwtware"
)

type fakeSession struct {
	adminID string
}

func (s fakeSession) GetAdminID() string      { return s.adminID }
func (s fakeSession) GetSessionID() string    { return "sid" }
func (s fakeSession) GetMode() string         { return "prod" }
func (s fakeSession) GetExpiresAt() time.Time { return time.Now().Add(time.Minute) }

var errRejected = errors.New("rejected")

type ctxKey struct{}

func newValidator(wantAccess, wantSession string) jwtware.Validator {
	return jwtware.ValidatorFunc(func(_ context.Context, access, session string) (jwtware.Session, error) {
		if access != wantAccess || session != wantSession {
			return nil, errRejected
		}
		return fakeSession{adminID: "admin"}, nil
	})
}

func newApp(cfg jwtware.Config) *fiber.App {
	app := fiber.New()
	app.Get("/protected", jwtware.New(cfg), func(c *fiber.Ctx) error {
		session, _ := c.Locals("session").(jwtware.Session)
		if session == nil {
			return c.SendStatus(fiber.StatusTeapot)
		}
		enriched, _ := c.UserContext().Value(ctxKey{}).(string)
		return c.SendString(session.GetAdminID() + ":" + enriched)
	})
	return app
}

func do(t *testing.T, app *fiber.App, headers map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestJWTWareValidTokens(t *testing.T) {
	app := newApp(jwtware.Config{
		Validator: newValidator("access", "session"),
		ContextEnricher: func(ctx context.Context, s jwtware.Session) context.Context {
			return context.WithValue(ctx, ctxKey{}, "enriched")
		},
	})

	status, body := do(t, app, map[string]string{
		"Authorization":   "Bearer access",
		"X-Session-Token": "session",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin:enriched", body)
}

func TestJWTWareMissingTokens(t *testing.T) {
	app := newApp(jwtware.Config{Validator: newValidator("access", "session")})

	status, _ := do(t, app, map[string]string{"X-Session-Token": "session"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, map[string]string{"Authorization": "Basic access", "X-Session-Token": "session"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, map[string]string{"Authorization": "Bearer access"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestJWTWareRejectedTokens(t *testing.T) {
	var seen error
	app := newApp(jwtware.Config{
		Validator: newValidator("access", "session"),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			seen = err
			return c.SendStatus(fiber.StatusUnauthorized)
		},
	})

	status, _ := do(t, app, map[string]string{
		"Authorization":   "Bearer access",
		"X-Session-Token": "other",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.ErrorIs(t, seen, errRejected)
}

func TestJWTWareFilterAndListeners(t *testing.T) {
	var listened string
	app := newApp(jwtware.Config{
		Validator: newValidator("access", "session"),
		Filter: func(c *fiber.Ctx) bool {
			return c.Get("X-Skip") != ""
		},
		ValidationListeners: []jwtware.ValidationListener{
			nil,
			func(c *fiber.Ctx, s jwtware.Session) error {
				listened = s.GetAdminID()
				return nil
			},
		},
	})

	status, _ := do(t, app, map[string]string{"X-Skip": "1"})
	assert.Equal(t, http.StatusTeapot, status)

	status, _ = do(t, app, map[string]string{
		"Authorization":   "Bearer access",
		"X-Session-Token": "session",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin", listened)
}

func TestJWTWareCustomLookups(t *testing.T) {
	app := fiber.New()
	app.Get("/protected", jwtware.New(jwtware.Config{
		Validator:     newValidator("access", "session"),
		TokenLookup:   "header:Authorization,query:token",
		SessionLookup: "cookie:admin_session",
	}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected?token=access", nil)
	req.AddCookie(&http.Cookie{Name: "admin_session", Value: "session"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestJWTWareRequiresValidator(t *testing.T) {
	assert.Panics(t, func() { jwtware.New() })
}
