package auth_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-admin-auth"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionContext(t *testing.T) {
	ctx := context.Background()

	_, ok := auth.SessionFromContext(ctx)
	assert.False(t, ok)
	assert.False(t, auth.InMode(ctx, auth.ModeProd))

	_, ok = auth.SessionFromContext(auth.WithSessionContext(ctx, nil))
	assert.False(t, ok, "nil sessions are not returned")

	session := &auth.Session{ID: "sid", AdminID: "admin", Mode: auth.ModeProd}
	ctx = auth.WithSessionContext(ctx, session)

	got, ok := auth.SessionFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, session, got)

	adminID, ok := auth.AdminIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "admin", adminID)

	assert.True(t, auth.InMode(ctx, auth.ModeProd))
	assert.False(t, auth.InMode(ctx, auth.ModeDev))
}

func TestProtectedRouteEnrichesContext(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(testEpoch)
	issuer := newTestIssuer(t, newTestRepositories(t).Sessions(), clock)

	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler(nil)})
	handler := func(c *fiber.Ctx) error {
		adminID, ok := auth.AdminIDFromContext(c.UserContext())
		if !ok {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.SendString(adminID)
	}
	app.Get("/any", auth.ProtectedRoute(issuer, ""), handler)
	app.Get("/prod", auth.ProtectedRoute(issuer, "", auth.RequireMode(auth.ModeProd)), handler)

	devPair, err := issuer.Issue(ctx, auth.SessionSubject{AdminID: "dev-admin"}, auth.ModeDev)
	require.NoError(t, err)

	headers := map[string]string{
		fiber.HeaderAuthorization: "Bearer " + devPair.AccessToken,
		auth.DefaultSessionHeader: devPair.SessionToken,
	}

	res, body := doJSON(t, app, http.MethodGet, "/any", nil, headers)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "dev-admin", string(body))

	res, body = doJSON(t, app, http.MethodGet, "/prod", nil, headers)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, auth.TextCodeSessionInvalid, decodeError(t, body).Code)

	prodPair, err := issuer.Issue(ctx, auth.SessionSubject{AdminID: "admin"}, auth.ModeProd)
	require.NoError(t, err)

	res, body = doJSON(t, app, http.MethodGet, "/prod", nil, map[string]string{
		fiber.HeaderAuthorization: "Bearer " + prodPair.AccessToken,
		auth.DefaultSessionHeader: prodPair.SessionToken,
	})
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "admin", string(body))
}
