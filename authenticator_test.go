package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-admin-auth"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testDevPassword = "correct horse battery staple"

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, e auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type prodFixture struct {
	auther   *auth.Auther
	issuer   *auth.SessionIssuer
	registry *auth.QRRegistry
	provider *testProvider
	clock    *clockwork.FakeClock
	sink     *recordingSink
	qr       *auth.IssuedCredential
}

func newProdFixture(t *testing.T) *prodFixture {
	t.Helper()
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(testEpoch)
	repos := newTestRepositories(t)
	opts := prodOptions()

	issuer := auth.NewSessionIssuer(repos.Sessions(), newTestTokenService(clock), opts).WithClock(clock)
	registry := auth.NewQRRegistry(repos.Credentials(), auth.WithQRClock(clock))
	provider := newTestProvider(t, clock)
	sink := &recordingSink{}

	auther, err := auth.NewAuthenticator(opts, issuer)
	require.NoError(t, err)
	auther.WithCredentialVerifier(provider.jwksVerifier()).
		WithSecondFactor(registry).
		WithAttemptLimiter(auth.NewAttemptLimiter(5, 5).WithClock(clock)).
		WithAssertionLedger(auth.NewAssertionLedger(64, time.Hour).WithClock(clock)).
		WithClock(clock).
		WithActivitySink(sink)
	require.NoError(t, auther.Validate())

	qr, err := registry.Issue(ctx, opts.AdminID)
	require.NoError(t, err)

	return &prodFixture{
		auther:   auther,
		issuer:   issuer,
		registry: registry,
		provider: provider,
		clock:    clock,
		sink:     sink,
		qr:       qr,
	}
}

func newDevAuther(t *testing.T) (*auth.Auther, *auth.SessionIssuer) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testEpoch)
	hash, err := bcrypt.GenerateFromPassword([]byte(testDevPassword), bcrypt.MinCost)
	require.NoError(t, err)

	opts := devOptions()
	opts.DevPasswordHash = string(hash)

	issuer := auth.NewSessionIssuer(newTestRepositories(t).Sessions(), newTestTokenService(clock), opts).WithClock(clock)
	auther, err := auth.NewAuthenticator(opts, issuer)
	require.NoError(t, err)
	auther.WithClock(clock).WithAttemptLimiter(auth.NewAttemptLimiter(3, 3).WithClock(clock))
	require.NoError(t, auther.Validate())
	return auther, issuer
}

func TestDevLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("correct credentials", func(t *testing.T) {
		auther, issuer := newDevAuther(t)
		pair, err := auther.DevLogin(ctx, "+917073829447", testDevPassword)
		require.NoError(t, err)
		assert.Equal(t, auth.ModeDev, pair.Mode)
		assert.Equal(t, "admin", pair.AdminID)

		session, err := issuer.Validate(ctx, pair.AccessToken, pair.SessionToken)
		require.NoError(t, err)
		assert.Equal(t, auth.ModeDev, session.Mode)
	})

	t.Run("local number format", func(t *testing.T) {
		auther, _ := newDevAuther(t)
		_, err := auther.DevLogin(ctx, "070738 29447", testDevPassword)
		require.NoError(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		auther, _ := newDevAuther(t)
		pair, err := auther.DevLogin(ctx, "+917073829447", "wrong")
		assert.ErrorIs(t, err, auth.ErrCredentialMismatch)
		assert.Nil(t, pair)
	})

	t.Run("wrong phone", func(t *testing.T) {
		auther, _ := newDevAuther(t)
		_, err := auther.DevLogin(ctx, "+917073829448", testDevPassword)
		assert.ErrorIs(t, err, auth.ErrCredentialMismatch)

		_, err = auther.DevLogin(ctx, "garbage", testDevPassword)
		assert.ErrorIs(t, err, auth.ErrCredentialMismatch)
	})

	t.Run("throttled", func(t *testing.T) {
		auther, _ := newDevAuther(t)
		for i := 0; i < 3; i++ {
			_, err := auther.DevLogin(ctx, "+917073829447", "wrong")
			assert.ErrorIs(t, err, auth.ErrCredentialMismatch)
		}
		_, err := auther.DevLogin(ctx, "+917073829447", testDevPassword)
		assert.ErrorIs(t, err, auth.ErrTooManyAttempts)
	})

	t.Run("disabled in prod", func(t *testing.T) {
		f := newProdFixture(t)
		_, err := f.auther.DevLogin(ctx, "+917073829447", testDevPassword)
		assert.ErrorIs(t, err, auth.ErrDevLoginDisabled)
	})
}

func TestProdLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("authorized identity and current qr", func(t *testing.T) {
		f := newProdFixture(t)
		assertion := f.provider.sign(t, testAdminPhone, nil)

		identity, err := f.auther.CheckIdentity(ctx, assertion)
		require.NoError(t, err)
		assert.Equal(t, testAdminPhone, identity.Contact)

		pair, err := f.auther.VerifyAdminQR(ctx, assertion, f.qr.PNG)
		require.NoError(t, err)
		assert.Equal(t, auth.ModeProd, pair.Mode)

		_, err = f.issuer.Validate(ctx, pair.AccessToken, pair.SessionToken)
		require.NoError(t, err)

		assert.Contains(t, f.sink.types(), auth.ActivityEventLoginSuccess)
	})

	t.Run("identity mismatch is rejected before qr", func(t *testing.T) {
		f := newProdFixture(t)
		assertion := f.provider.sign(t, "+919999999999", nil)

		_, err := f.auther.CheckIdentity(ctx, assertion)
		assert.ErrorIs(t, err, auth.ErrIdentityMismatch)
		assert.NotContains(t, err.Error(), testAdminPhone)

		_, err = f.auther.VerifyAdminQR(ctx, assertion, f.qr.PNG)
		assert.ErrorIs(t, err, auth.ErrIdentityMismatch)
		assert.Contains(t, f.sink.types(), auth.ActivityEventIdentityRejected)
	})

	t.Run("invalid assertion", func(t *testing.T) {
		f := newProdFixture(t)
		_, err := f.auther.CheckIdentity(ctx, "garbage")
		assert.ErrorIs(t, err, auth.ErrAssertionInvalid)

		expired := f.provider.sign(t, testAdminPhone, func(c jwt.MapClaims) {
			c["exp"] = testEpoch.Add(-time.Minute).Unix()
		})
		_, err = f.auther.CheckIdentity(ctx, expired)
		assert.ErrorIs(t, err, auth.ErrAssertionInvalid)
	})

	t.Run("reissued qr invalidates the old one", func(t *testing.T) {
		f := newProdFixture(t)
		old := f.qr.PNG
		fresh, err := f.registry.Issue(ctx, "admin")
		require.NoError(t, err)

		assertion := f.provider.sign(t, testAdminPhone, nil)
		_, err = f.auther.VerifyAdminQR(ctx, assertion, old)
		assert.ErrorIs(t, err, auth.ErrCredentialMismatch)

		_, err = f.auther.VerifyAdminQR(ctx, assertion, fresh.PNG)
		require.NoError(t, err)
	})

	t.Run("missing qr", func(t *testing.T) {
		f := newProdFixture(t)
		_, err := f.auther.VerifyAdminQR(ctx, f.provider.sign(t, testAdminPhone, nil), nil)
		assert.ErrorIs(t, err, auth.ErrMissingArtifact)
	})

	t.Run("assertion can not be replayed", func(t *testing.T) {
		f := newProdFixture(t)
		assertion := f.provider.sign(t, testAdminPhone, func(c jwt.MapClaims) { c["jti"] = "one-shot" })

		_, err := f.auther.VerifyAdminQR(ctx, assertion, f.qr.PNG)
		require.NoError(t, err)

		_, err = f.auther.VerifyAdminQR(ctx, assertion, f.qr.PNG)
		assert.ErrorIs(t, err, auth.ErrAssertionReplayed)
	})

	t.Run("validate requires prod collaborators", func(t *testing.T) {
		opts := prodOptions()
		auther, err := auth.NewAuthenticator(opts, newTestIssuer(t, newTestRepositories(t).Sessions(), clockwork.NewFakeClock()))
		require.NoError(t, err)
		assert.Error(t, auther.Validate())
	})
}

func TestCheckIdentityMatchesAnyVerifiedContact(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(testEpoch)
	repos := newTestRepositories(t)
	opts := prodOptions()
	opts.AuthorizedContact = "Admin@Example.com"

	issuer := auth.NewSessionIssuer(repos.Sessions(), newTestTokenService(clock), opts).WithClock(clock)
	provider := newTestProvider(t, clock)
	auther, err := auth.NewAuthenticator(opts, issuer)
	require.NoError(t, err)
	auther.WithCredentialVerifier(provider.jwksVerifier()).
		WithSecondFactor(auth.NewQRRegistry(repos.Credentials(), auth.WithQRClock(clock))).
		WithClock(clock)
	require.NoError(t, auther.Validate())

	withEmail := provider.sign(t, testAdminPhone, func(c jwt.MapClaims) {
		c["email"] = "admin@example.com"
		c["email_verified"] = true
	})
	identity, err := auther.CheckIdentity(ctx, withEmail)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", identity.Contact)
	assert.Equal(t, auth.ContactEmail, identity.ContactKind)

	phoneOnly := provider.sign(t, testAdminPhone, nil)
	_, err = auther.CheckIdentity(ctx, phoneOnly)
	assert.ErrorIs(t, err, auth.ErrIdentityMismatch)
}
