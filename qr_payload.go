package auth

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

const qrPayloadVersion = "ADMQR1"

// ErrQRPayloadMalformed the decoded text is not an admin QR payload
var ErrQRPayloadMalformed = errors.New("qr payload is malformed", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest)

// QRPayload is the text encoded in an admin QR credential:
//
//	ADMQR1.<base64url admin id>.<issued at unix>.<base64url 32 byte nonce>
type QRPayload struct {
	AdminID  string
	IssuedAt time.Time
	Nonce    []byte
}

// NewQRPayload draws a fresh nonce for adminID
func NewQRPayload(adminID string, issuedAt time.Time) (QRPayload, error) {
	nonce, err := randomBytes(secretBytes)
	if err != nil {
		return QRPayload{}, err
	}
	return QRPayload{AdminID: adminID, IssuedAt: issuedAt.UTC().Truncate(time.Second), Nonce: nonce}, nil
}

func (p QRPayload) String() string {
	return strings.Join([]string{
		qrPayloadVersion,
		base64.RawURLEncoding.EncodeToString([]byte(p.AdminID)),
		strconv.FormatInt(p.IssuedAt.Unix(), 10),
		base64.RawURLEncoding.EncodeToString(p.Nonce),
	}, ".")
}

// ParseQRPayload is strict about structure but never about the secret,
// which is only compared through its hash.
func ParseQRPayload(s string) (QRPayload, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 4 || parts[0] != qrPayloadVersion {
		return QRPayload{}, ErrQRPayloadMalformed
	}

	admin, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil || len(admin) == 0 {
		return QRPayload{}, ErrQRPayloadMalformed
	}

	issued, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return QRPayload{}, ErrQRPayloadMalformed
	}

	nonce, err := base64.RawURLEncoding.DecodeString(parts[3])
	if err != nil || len(nonce) != secretBytes {
		return QRPayload{}, ErrQRPayloadMalformed
	}

	return QRPayload{AdminID: string(admin), IssuedAt: time.Unix(issued, 0).UTC(), Nonce: nonce}, nil
}
