package auth

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeIdentityMismatch   = "IDENTITY_MISMATCH"
	TextCodeCredentialMismatch = "CREDENTIAL_MISMATCH"
	TextCodeSessionInvalid     = "SESSION_INVALID"
	TextCodeNetworkFailure     = "NETWORK_FAILURE"
	TextCodeGrantExpired       = "GRANT_EXPIRED"
	TextCodeDevLoginDisabled   = "DEV_LOGIN_DISABLED"
	TextCodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	TextCodeAssertionInvalid   = "ASSERTION_INVALID"
	TextCodeAssertionReplayed  = "ASSERTION_REPLAYED"
	TextCodeMissingArtifact    = "MISSING_ARTIFACT"
	TextCodeInvalidTransition  = "INVALID_TRANSITION"
	TextCodeFlowBusy           = "FLOW_BUSY"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodePasswordMismatch   = "PASSWORD_MISMATCH"
	TextCodeInvalidPayload     = "INVALID_PAYLOAD"
)

// ErrIdentityMismatch the verified identity is not the authorized administrator.
// The message never carries the expected value.
var ErrIdentityMismatch = errors.New("identity is not authorized", errors.CategoryAuth).
	WithTextCode(TextCodeIdentityMismatch).
	WithCode(errors.CodeForbidden)

// ErrCredentialMismatch wrong QR credential or wrong password
var ErrCredentialMismatch = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeCredentialMismatch).
	WithCode(errors.CodeUnauthorized)

// ErrSessionInvalid covers expired, revoked, unknown and mismatched sessions alike.
var ErrSessionInvalid = errors.New("session is not valid", errors.CategoryAuth).
	WithTextCode(TextCodeSessionInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrNetworkFailure the auth server could not be reached or answered garbage
var ErrNetworkFailure = errors.New("authentication service unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeNetworkFailure).
	WithCode(http.StatusServiceUnavailable)

// ErrGrantExpired the hidden entry grant is absent or stale
var ErrGrantExpired = errors.New("entry grant expired", errors.CategoryAuth).
	WithTextCode(TextCodeGrantExpired).
	WithCode(errors.CodeNotFound)

// ErrDevLoginDisabled the password fallback is not available in this deployment
var ErrDevLoginDisabled = errors.New("not found", errors.CategoryAuthz).
	WithTextCode(TextCodeDevLoginDisabled).
	WithCode(errors.CodeNotFound)

// ErrTooManyAttempts is returned while an identifier is throttled
var ErrTooManyAttempts = errors.New("too many attempts, try again later", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(http.StatusTooManyRequests)

// ErrAssertionInvalid the identity assertion failed verification
var ErrAssertionInvalid = errors.New("identity assertion is not valid", errors.CategoryAuth).
	WithTextCode(TextCodeAssertionInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrAssertionReplayed the identity assertion was already used for a login
var ErrAssertionReplayed = errors.New("identity assertion already used", errors.CategoryAuth).
	WithTextCode(TextCodeAssertionReplayed).
	WithCode(errors.CodeUnauthorized)

// ErrMissingArtifact no QR image was supplied
var ErrMissingArtifact = errors.New("credential artifact is required", errors.CategoryBadInput).
	WithTextCode(TextCodeMissingArtifact).
	WithCode(errors.CodeBadRequest)

// ErrInvalidTransition is returned when the login flow cannot move to the requested step.
var ErrInvalidTransition = errors.New("invalid login step", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(errors.CodeBadRequest)

// ErrFlowBusy a submission is already in flight
var ErrFlowBusy = errors.New("login step in progress", errors.CategoryConflict).
	WithTextCode(TextCodeFlowBusy).
	WithCode(errors.CodeConflict)

// ErrTokenExpired access token expiry elapsed
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed access token could not be parsed or verified
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString empty passwords are never hashed
var ErrNoEmptyString = errors.New("password can not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword bcrypt comparison failed
var ErrMismatchedHashAndPassword = errors.New("password does not match", errors.CategoryAuth).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidPayload request payload failed validation
var ErrInvalidPayload = errors.New("invalid request payload", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidPayload).
	WithCode(errors.CodeBadRequest)

var textCodeErrors = map[string]*errors.Error{
	TextCodeIdentityMismatch:   ErrIdentityMismatch,
	TextCodeCredentialMismatch: ErrCredentialMismatch,
	TextCodeSessionInvalid:     ErrSessionInvalid,
	TextCodeNetworkFailure:     ErrNetworkFailure,
	TextCodeGrantExpired:       ErrGrantExpired,
	TextCodeDevLoginDisabled:   ErrDevLoginDisabled,
	TextCodeTooManyAttempts:    ErrTooManyAttempts,
	TextCodeAssertionInvalid:   ErrAssertionInvalid,
	TextCodeAssertionReplayed:  ErrAssertionReplayed,
	TextCodeMissingArtifact:    ErrMissingArtifact,
	TextCodeInvalidPayload:     ErrInvalidPayload,
}

// ErrorFromTextCode maps a wire text code back to its sentinel.
func ErrorFromTextCode(code string) (*errors.Error, bool) {
	err, ok := textCodeErrors[strings.ToUpper(strings.TrimSpace(code))]
	return err, ok
}

// IsSessionError reports whether err means the session is gone and the
// caller must de-authenticate.
func IsSessionError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrSessionInvalid) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenMalformed)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}
