package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// NormalizePhone returns the E.164 form of raw. Numbers without a country
// prefix are read in region.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("phone number is required", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}

	num, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryValidation, "phone number could not be parsed").
			WithCode(errors.CodeBadRequest)
	}

	if !phonenumbers.IsPossibleNumber(num) {
		return "", errors.New("phone number is not possible", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// ContactMatcher decides whether a verified contact belongs to the single
// authorized administrator.
type ContactMatcher struct {
	expected string
	kind     ContactKind
	region   string
}

// NewContactMatcher normalizes the authorized contact once. Values with an
// @ are treated as emails, anything else as a phone number.
func NewContactMatcher(authorized, region string) (*ContactMatcher, error) {
	kind, normalized, err := normalizeContact(authorized, region)
	if err != nil {
		return nil, err
	}
	return &ContactMatcher{expected: normalized, kind: kind, region: region}, nil
}

// Matches compares in constant time. It never reports the expected value.
func (m *ContactMatcher) Matches(contact string, kind ContactKind) bool {
	if m == nil || kind != m.kind {
		return false
	}
	_, normalized, err := normalizeContact(contact, m.region)
	if err != nil {
		return false
	}
	return constantTimeEqual(normalized, m.expected)
}

// MatchIdentity checks every verified contact of id and returns the one
// that belongs to the administrator.
func (m *ContactMatcher) MatchIdentity(id *VerifiedIdentity) (VerifiedContact, bool) {
	if m == nil || id == nil {
		return VerifiedContact{}, false
	}
	contacts := id.Contacts
	if len(contacts) == 0 {
		contacts = []VerifiedContact{{Value: id.Contact, Kind: id.ContactKind}}
	}
	for _, c := range contacts {
		if m.Matches(c.Value, c.Kind) {
			return c, true
		}
	}
	return VerifiedContact{}, false
}

func normalizeContact(raw, region string) (ContactKind, string, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "@") {
		return ContactEmail, strings.ToLower(raw), nil
	}
	phone, err := NormalizePhone(raw, region)
	return ContactPhone, phone, err
}
