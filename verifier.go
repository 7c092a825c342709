package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ContactKind tells which kind of contact an identity proved
type ContactKind string

const (
	ContactPhone ContactKind = "phone"
	ContactEmail ContactKind = "email"
)

// VerifiedContact is one contact the provider vouched for
type VerifiedContact struct {
	Value string      `json:"value"`
	Kind  ContactKind `json:"kind"`
}

// VerifiedIdentity is what an identity provider assertion proved.
// Contact is the preferred contact (phone first); Contacts lists every
// verified one.
type VerifiedIdentity struct {
	Subject     string            `json:"subject"`
	Contact     string            `json:"contact"`
	ContactKind ContactKind       `json:"contactKind"`
	VerifiedAt  time.Time         `json:"verifiedAt"`
	ExpiresAt   time.Time         `json:"expiresAt"`
	Contacts    []VerifiedContact `json:"-"`
	// AssertionID identifies the assertion for replay detection. It is
	// the jti claim when present and a digest of the raw token otherwise.
	AssertionID string `json:"-"`
}

// SessionSubject is the identity a session is issued to
type SessionSubject struct {
	AdminID string
	Contact string
}

// CredentialVerifier validates identity provider assertions. It is the
// only trust boundary with the external provider.
type CredentialVerifier interface {
	VerifyIdentity(ctx context.Context, assertion string) (*VerifiedIdentity, error)
}

// CredentialVerifierFunc adapts a function into a CredentialVerifier.
type CredentialVerifierFunc func(ctx context.Context, assertion string) (*VerifiedIdentity, error)

// VerifyIdentity satisfies the CredentialVerifier interface.
func (f CredentialVerifierFunc) VerifyIdentity(ctx context.Context, assertion string) (*VerifiedIdentity, error) {
	if f == nil {
		return nil, ErrAssertionInvalid
	}
	return f(ctx, assertion)
}

// assertionClaims covers the claim names used by Firebase style and
// standard OIDC id tokens.
type assertionClaims struct {
	jwt.RegisteredClaims
	PhoneNumber         string `json:"phone_number"`
	PhoneNumberVerified *bool  `json:"phone_number_verified,omitempty"`
	Email               string `json:"email"`
	EmailVerified       bool   `json:"email_verified"`
	AuthTime            int64  `json:"auth_time"`
}

func (c *assertionClaims) identity(raw string) (*VerifiedIdentity, bool) {
	id := &VerifiedIdentity{
		Subject:     c.Subject,
		AssertionID: c.ID,
	}

	if c.PhoneNumber != "" && (c.PhoneNumberVerified == nil || *c.PhoneNumberVerified) {
		id.Contacts = append(id.Contacts, VerifiedContact{Value: c.PhoneNumber, Kind: ContactPhone})
	}
	if c.Email != "" && c.EmailVerified {
		id.Contacts = append(id.Contacts, VerifiedContact{Value: strings.ToLower(c.Email), Kind: ContactEmail})
	}
	if len(id.Contacts) == 0 {
		return nil, false
	}
	id.Contact = id.Contacts[0].Value
	id.ContactKind = id.Contacts[0].Kind

	if c.AuthTime > 0 {
		id.VerifiedAt = time.Unix(c.AuthTime, 0).UTC()
	} else if c.IssuedAt != nil {
		id.VerifiedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	if id.AssertionID == "" {
		id.AssertionID = HashSecret(raw)
	}

	return id, id.Subject != ""
}

// NewCredentialVerifier builds the verifier selected in opts. The
// returned closer releases background resources such as JWKS refreshes.
func NewCredentialVerifier(ctx context.Context, opts VerifierOptions, logger Logger) (CredentialVerifier, func(), error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}

	switch opts.Kind {
	case VerifierOIDC:
		v, err := NewOIDCVerifier(ctx, opts, logger)
		if err != nil {
			return nil, nil, err
		}
		return v, func() {}, nil
	default:
		v, err := NewJWKSVerifier(opts, logger)
		if err != nil {
			return nil, nil, err
		}
		return v, v.Close, nil
	}
}
