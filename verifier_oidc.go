package auth

import (
	"context"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/goliatone/go-errors"
	"github.com/jonboulle/clockwork"
)

// OIDCVerifier verifies id tokens of an OpenID Connect provider found
// through discovery.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
	clock    clockwork.Clock
	logger   Logger
}

// NewOIDCVerifier discovers the provider at opts.IssuerURL
func NewOIDCVerifier(ctx context.Context, opts VerifierOptions, logger Logger) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, opts.IssuerURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to discover OIDC provider")
	}

	v := newOIDCVerifier(logger)
	v.verifier = provider.Verifier(v.config(opts))
	return v, nil
}

// NewOIDCVerifierWithKeySet skips discovery and verifies against keySet
func NewOIDCVerifierWithKeySet(keySet oidc.KeySet, opts VerifierOptions, logger Logger, clock clockwork.Clock) *OIDCVerifier {
	v := newOIDCVerifier(logger)
	if clock != nil {
		v.clock = clock
	}
	v.verifier = oidc.NewVerifier(opts.IssuerURL, keySet, v.config(opts))
	return v
}

func newOIDCVerifier(logger Logger) *OIDCVerifier {
	if logger == nil {
		logger = defaultLogger()
	}
	return &OIDCVerifier{
		clock:  clockwork.NewRealClock(),
		logger: logger,
	}
}

func (v *OIDCVerifier) config(opts VerifierOptions) *oidc.Config {
	return &oidc.Config{
		ClientID: opts.ClientID,
		Now: func() time.Time {
			return v.clock.Now()
		},
	}
}

// VerifyIdentity satisfies the CredentialVerifier interface.
func (v *OIDCVerifier) VerifyIdentity(ctx context.Context, assertion string) (*VerifiedIdentity, error) {
	if assertion == "" {
		return nil, ErrAssertionInvalid
	}

	idToken, err := v.verifier.Verify(ctx, assertion)
	if err != nil {
		v.logger.Info("identity assertion rejected", "error", err)
		return nil, ErrAssertionInvalid
	}

	claims := &assertionClaims{}
	if err := idToken.Claims(claims); err != nil {
		v.logger.Warn("identity assertion claims unreadable", "error", err)
		return nil, ErrAssertionInvalid
	}

	identity, ok := claims.identity(assertion)
	if !ok {
		v.logger.Info("identity assertion carries no verified contact", "subject", idToken.Subject)
		return nil, ErrAssertionInvalid
	}
	identity.ExpiresAt = idToken.Expiry

	return identity, nil
}
