package auth

import "time"

// Session is the validated view of a request's session
type Session struct {
	ID               string      `json:"id"`
	AdminID          string      `json:"adminId"`
	Mode             SessionMode `json:"mode"`
	IssuedAt         time.Time   `json:"issuedAt"`
	ExpiresAt        time.Time   `json:"expiresAt"`
	SessionExpiresAt time.Time   `json:"sessionExpiresAt"`
}

func (s *Session) GetAdminID() string {
	return s.AdminID
}

func (s *Session) GetSessionID() string {
	return s.ID
}

func (s *Session) GetMode() string {
	return string(s.Mode)
}

func (s *Session) GetExpiresAt() time.Time {
	return s.ExpiresAt
}
