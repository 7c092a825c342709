package auth

import (
	"context"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/jonboulle/clockwork"
)

// JWKSVerifier verifies provider assertions signed with keys published
// at a JWKS endpoint.
type JWKSVerifier struct {
	jwks     *keyfunc.JWKS
	keyfunc  jwt.Keyfunc
	issuer   string
	audience string
	clock    clockwork.Clock
	logger   Logger
}

// NewJWKSVerifier fetches the key set and keeps it refreshed in the background.
func NewJWKSVerifier(opts VerifierOptions, logger Logger) (*JWKSVerifier, error) {
	if logger == nil {
		logger = defaultLogger()
	}

	jwks, err := keyfunc.Get(opts.JWKSURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Warn("JWKS refresh failed", "url", opts.JWKSURL, "error", err)
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to load identity provider keys")
	}

	v := NewJWKSVerifierWithKeyfunc(jwks.Keyfunc, opts, logger)
	v.jwks = jwks
	return v, nil
}

// NewJWKSVerifierWithKeyfunc uses a caller supplied key lookup
func NewJWKSVerifierWithKeyfunc(kf jwt.Keyfunc, opts VerifierOptions, logger Logger) *JWKSVerifier {
	if logger == nil {
		logger = defaultLogger()
	}
	return &JWKSVerifier{
		keyfunc:  kf,
		issuer:   opts.IssuerURL,
		audience: opts.ClientID,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
	}
}

// WithClock replaces the clock used for expiry checks
func (v *JWKSVerifier) WithClock(clock clockwork.Clock) *JWKSVerifier {
	if clock != nil {
		v.clock = clock
	}
	return v
}

// Close stops background key refreshes
func (v *JWKSVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// VerifyIdentity satisfies the CredentialVerifier interface.
func (v *JWKSVerifier) VerifyIdentity(_ context.Context, assertion string) (*VerifiedIdentity, error) {
	if assertion == "" {
		return nil, ErrAssertionInvalid
	}

	claims := &assertionClaims{}
	token, err := jwt.ParseWithClaims(assertion, claims, v.keyfunc,
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil || !token.Valid {
		v.logger.Info("identity assertion rejected", "error", err)
		return nil, ErrAssertionInvalid
	}

	identity, ok := claims.identity(assertion)
	if !ok {
		v.logger.Info("identity assertion carries no verified contact", "subject", claims.Subject)
		return nil, ErrAssertionInvalid
	}

	return identity, nil
}
