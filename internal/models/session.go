package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is one operator sign-in. DeviceID names the handset the token was
// issued on, so signing out everywhere can be audited per device. The JWT
// carries the session ID as its jti; revoking the session revokes the token.
type Session struct {
	ID        string    `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	DeviceID  string    `json:"device_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Remaining is how long the session stays valid after now, or zero once it
// has expired.
func (s *Session) Remaining(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
