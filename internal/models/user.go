package models

import (
	"time"
)

type User struct {
	ID        string
	Username  string // Unique, lowercase alphanumeric and underscore
	Email     string // Unique, stored lowercase
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Password is the one-to-one credential record for a user.
// Only the bcrypt hash is ever held; it is replaced wholesale on change.
type Password struct {
	UserID    string
	Hash      string
	UpdatedAt time.Time
}
