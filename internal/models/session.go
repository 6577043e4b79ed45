package models

import (
	"time"
)

// Session represents one authenticated browser session.
type Session struct {
	ID             string
	UserID         string
	ExpirationDate time.Time
	CreatedAt      time.Time
}

// IsExpired reports whether the session has passed its expiration date.
func (s *Session) IsExpired() bool {
	return !s.ExpirationDate.After(time.Now())
}
