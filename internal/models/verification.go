package models

import (
	"time"
)

// Verification types. At most one record exists per (target, type) pair.
const (
	// VerificationTypeTwoFA is an active two-factor secret for a user.
	VerificationTypeTwoFA = "2fa"
	// VerificationTypeTwoFAVerify is a staged two-factor secret awaiting
	// the first valid code before enrollment completes.
	VerificationTypeTwoFAVerify = "2fa-verify"
	// VerificationTypeOnboarding is a short-lived email code sent at signup.
	VerificationTypeOnboarding = "onboarding"
)

// Verification holds a secret and one-time-code parameters for a
// (target, type) pair. The target is a user ID for two-factor records
// and an email address for onboarding records.
type Verification struct {
	ID        string
	Type      string
	Target    string
	Secret    string // Base32-encoded TOTP secret
	Algorithm string // "SHA1", "SHA256", or "SHA512"
	Digits    int
	Period    int        // Seconds per code window
	ExpiresAt *time.Time // nil for records that do not expire (2fa)
	CreatedAt time.Time
}

// IsExpired reports whether the record has an expiry in the past.
func (v *Verification) IsExpired() bool {
	return v.ExpiresAt != nil && !v.ExpiresAt.After(time.Now())
}
