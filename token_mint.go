package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// AccessTokenOptions controls how MintAccessToken issues tokens.
type AccessTokenOptions struct {
	// TTL overrides the default token expiration. Zero uses TokenService defaults.
	TTL time.Duration
	// Issuer overrides the default issuer if provided.
	Issuer string
	// Audience overrides the default audience if provided.
	Audience []string
	// IssuedAt overrides the issuance time. Zero uses the TokenService clock.
	IssuedAt time.Time
}

type tokenDefaults struct {
	issuer   string
	audience jwt.ClaimStrings
	ttl      time.Duration
	now      func() time.Time
}

type tokenDefaultsProvider interface {
	tokenDefaults() tokenDefaults
}

// MintAccessToken mints an access token bound to the given session record.
// The expiry is clamped so it never outlives the session.
func MintAccessToken(tokenService TokenService, record *SessionRecord, opts AccessTokenOptions) (string, time.Time, error) {
	if tokenService == nil {
		return "", time.Time{}, goerrors.New("token service is required", goerrors.CategoryBadInput)
	}
	if record == nil || record.AdminID == "" {
		return "", time.Time{}, goerrors.New("session record is required", goerrors.CategoryBadInput)
	}

	issuer := opts.Issuer
	audience := opts.Audience
	ttl := opts.TTL
	now := time.Now

	if defaultsProvider, ok := tokenService.(tokenDefaultsProvider); ok {
		defaults := defaultsProvider.tokenDefaults()
		if issuer == "" {
			issuer = defaults.issuer
		}
		if len(audience) == 0 {
			audience = defaults.audience
		}
		if ttl == 0 {
			ttl = defaults.ttl
		}
		if defaults.now != nil {
			now = defaults.now
		}
	}

	if ttl <= 0 {
		return "", time.Time{}, goerrors.New("token TTL must be positive", goerrors.CategoryBadInput)
	}

	issuedAt := opts.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = now()
	}

	expiresAt := issuedAt.Add(ttl)
	if !record.ExpiresAt.IsZero() && expiresAt.After(record.ExpiresAt) {
		expiresAt = record.ExpiresAt.UTC()
	}
	if !expiresAt.After(issuedAt) {
		return "", time.Time{}, ErrSessionInvalid
	}

	var aud jwt.ClaimStrings
	if len(audience) > 0 {
		aud = make(jwt.ClaimStrings, len(audience))
		copy(aud, audience)
	}

	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   record.AdminID,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SID:  record.ID.String(),
		Mode: record.Mode,
	}

	ensureTokenID(&claims.RegisteredClaims)

	token, err := tokenService.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}
