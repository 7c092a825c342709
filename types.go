package auth

import (
	"context"
	"time"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SessionMode records how a session was established.
type SessionMode string

const (
	// ModeDev sessions come from the shared password fallback.
	ModeDev SessionMode = "dev"
	// ModeProd sessions come from identity provider proof plus the QR credential.
	ModeProd SessionMode = "prod"
)

// Valid reports whether the mode is one of the known modes.
func (m SessionMode) Valid() bool {
	return m == ModeDev || m == ModeProd
}

func (m SessionMode) String() string {
	return string(m)
}

// TokenPair is the result of a login or a refresh.
type TokenPair struct {
	AccessToken  string      `json:"accessToken"`
	SessionToken string      `json:"sessionToken"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	Mode         SessionMode `json:"mode"`
	AdminID      string      `json:"adminId"`
}

// Authenticator holds the login entry points of the verification protocol
type Authenticator interface {
	DevLogin(ctx context.Context, phone, password string) (*TokenPair, error)
	CheckIdentity(ctx context.Context, assertion string) (*VerifiedIdentity, error)
	VerifyAdminQR(ctx context.Context, assertion string, image []byte) (*TokenPair, error)
}

// SessionManager is the sole authority minting sessions
type SessionManager interface {
	Issue(ctx context.Context, subject SessionSubject, mode SessionMode) (*TokenPair, error)
	Refresh(ctx context.Context, accessToken, sessionToken string) (*TokenPair, error)
	Validate(ctx context.Context, accessToken, sessionToken string) (*Session, error)
	Revoke(ctx context.Context, sessionToken string) error
	RevokeAdmin(ctx context.Context, adminID string) (int, error)
}

// SecondFactorVerifier checks the QR artifact presented for an admin
type SecondFactorVerifier interface {
	Verify(ctx context.Context, adminID string, image []byte) error
}

// Config holds auth options
type Config interface {
	GetMode() SessionMode
	GetAdminID() string
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAccessTokenTTL() time.Duration
	GetSessionTTL() time.Duration
	GetAuthorizedContact() string
	GetDefaultRegion() string
	GetDevPhone() string
	GetDevPasswordHash() string
	GetSessionHeader() string
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}
