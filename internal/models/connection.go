package models

import (
	"time"
)

// Connection links a local user to an external-provider identity.
// A given (ProviderName, ProviderID) pair maps to at most one user.
type Connection struct {
	ID           string
	ProviderName string // e.g. "github"
	ProviderID   string // User ID at the provider
	UserID       string
	CreatedAt    time.Time
}
